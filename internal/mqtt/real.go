package mqtt

import (
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/sensor-gateway/internal/device"
	"go.uber.org/zap"
)

// pahoClient adapts a paho client to Client.
type pahoClient struct {
	client  paho.Client
	timeout time.Duration
}

func (p *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

func (p *pahoClient) Subscribe(topic string, qos byte, handle func(topic string, payload []byte)) error {
	token := p.client.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		handle(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("subscribe timeout")
	}
	return token.Error()
}

func (p *pahoClient) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

func (p *pahoClient) Disconnect() {
	p.client.Disconnect(1000)
}

// Dial connects to cfg.Broker. The broker holds a retained OFFLINE will on the
// system topic that fires if the gateway drops without a clean shutdown.
// If the first connection attempt times out, paho keeps retrying in the
// background and messages are buffered until it succeeds.
func Dial(cfg Config, log *zap.Logger) (*Communicator, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker required: %w", device.ErrInitialization)
	}
	c := newCommunicator(cfg, log)
	cfg = c.cfg

	will, err := FormatSystemPayload(cfg.Gateway, SystemEvent{
		Timestamp: time.Now(),
		Event:     EventOffline,
		Reason:    "CONNECTION_LOST",
	})
	if err != nil {
		return nil, fmt.Errorf("mqtt: will payload: %w", err)
	}

	var connects atomic.Int32
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(cfg.SystemTopic, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			setup := c.OnConnect
			if connects.Add(1) > 1 {
				c.log.Info("reconnected")
				setup = c.OnReconnect
			} else {
				c.log.Info("connected")
			}
			if err := setup(); err != nil {
				c.log.Warn("post-connect setup failed", zap.Error(err))
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.log.Warn("connection lost", zap.Error(err))
		})

	client := paho.NewClient(opts)
	c.client = &pahoClient{client: client, timeout: cfg.PublishTimeout}

	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		c.log.Warn("initial connection timed out, retrying in background")
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w: %v", cfg.Broker, device.ErrInitialization, err)
	}
	return c, nil
}
