// Package mqtt forwards readings to an MQTT broker with at-least-once delivery.
// Messages published while the broker is unreachable are held in a ring buffer
// and replayed on reconnect.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/sensor-gateway/internal/device"
	"go.uber.org/zap"
)

// Default topics.
const (
	DefaultTopic       = "sensors/readings"
	DefaultSystemTopic = "sensors/system"
)

// DefaultBufferSize is how many unsent messages are kept while disconnected.
const DefaultBufferSize = 100

// Lifecycle events published on the system topic.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventReconnected = "RECONNECTED"
	EventOffline     = "OFFLINE"
)

// Config configures the communicator.
type Config struct {
	Broker   string
	ClientID string
	Gateway  string

	Topic        string
	SystemTopic  string
	CommandTopic string // empty disables Receive

	QoS      byte
	Retained bool

	BufferSize     int
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.SystemTopic == "" {
		c.SystemTopic = DefaultSystemTopic
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 5 * time.Second
	}
}

// Client is the broker connection the communicator publishes through.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handle func(topic string, payload []byte)) error
	IsConnected() bool
	Disconnect()
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event (startup, shutdown, reconnect).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // if set, FormatSystemPayload returns it directly
	Retained   bool
}

// SystemPayload is the JSON form of a SystemEvent.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Gateway   string `json:"gateway,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(gateway string, event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Gateway:   gateway,
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// Communicator sends readings to the broker and receives commands from it.
type Communicator struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	client   Client
	buffer   *backlog
	commands chan device.Response
}

// New creates a communicator over an existing client. If the client is
// already connected, the command topic is subscribed immediately.
func New(cfg Config, client Client, log *zap.Logger) (*Communicator, error) {
	c := newCommunicator(cfg, log)
	c.client = client
	if client.IsConnected() {
		if err := c.OnConnect(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func newCommunicator(cfg Config, log *zap.Logger) *Communicator {
	cfg.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Communicator{
		cfg:      cfg,
		log:      log.With(zap.String("broker", cfg.Broker)),
		buffer:   newBacklog(cfg.BufferSize),
		commands: make(chan device.Response, cfg.BufferSize),
	}
}

// Config returns the effective configuration.
func (c *Communicator) Config() Config {
	return c.cfg
}

// Send publishes r on the readings topic. While disconnected the message is
// buffered and Send succeeds; it is delivered on reconnect.
func (c *Communicator) Send(ctx context.Context, r device.Reading) (device.Response, error) {
	if err := ctx.Err(); err != nil {
		return device.Response{}, err
	}
	payload, err := device.FormatPayload(c.cfg.Gateway, r)
	if err != nil {
		return device.Response{}, fmt.Errorf("mqtt: %w: %v", device.ErrSend, err)
	}
	resp := device.Response{Channel: c.cfg.Topic, Payload: payload}
	if err := c.publish(outgoing{
		topic:    c.cfg.Topic,
		payload:  payload,
		qos:      c.cfg.QoS,
		retained: c.cfg.Retained,
	}); err != nil {
		return resp, err
	}
	return resp, nil
}

// PublishSystem publishes a lifecycle event on the system topic with QoS 1.
func (c *Communicator) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(c.cfg.Gateway, event)
	if err != nil {
		return fmt.Errorf("mqtt: format system payload: %w", err)
	}
	return c.publish(outgoing{
		topic:    c.cfg.SystemTopic,
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

func (c *Communicator) publish(msg outgoing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.client.IsConnected() {
		c.bufferLocked(msg)
		c.log.Debug("disconnected, message buffered",
			zap.String("topic", msg.topic), zap.Int("buffered", c.buffer.size()))
		return nil
	}
	if err := c.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload); err != nil {
		c.bufferLocked(msg)
		return fmt.Errorf("mqtt publish %s: %w: %v", msg.topic, device.ErrSend, err)
	}
	return nil
}

func (c *Communicator) bufferLocked(msg outgoing) {
	if c.buffer.add(msg) {
		c.log.Warn("buffer full, dropping oldest message", zap.Int("capacity", c.cfg.BufferSize))
	}
}

// OnConnect runs on every (re)connect: it resubscribes the command topic
// and replays buffered messages in order.
func (c *Communicator) OnConnect() error {
	if c.cfg.CommandTopic != "" {
		if err := c.client.Subscribe(c.cfg.CommandTopic, 1, c.handleCommand); err != nil {
			return fmt.Errorf("mqtt subscribe %s: %w: %v", c.cfg.CommandTopic, device.ErrInitialization, err)
		}
	}
	return c.flush()
}

// OnReconnect runs OnConnect and then announces the reconnect with a retained
// RECONNECTED event, replacing the OFFLINE will the broker may have published.
func (c *Communicator) OnReconnect() error {
	err := c.OnConnect()
	if perr := c.PublishSystem(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventReconnected,
		Retained:  true,
	}); perr != nil {
		c.log.Warn("failed to publish reconnect event", zap.Error(perr))
	}
	return err
}

func (c *Communicator) flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.buffer.takeAll()
	if len(pending) == 0 {
		return nil
	}
	for i, msg := range pending {
		if err := c.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload); err != nil {
			for _, m := range pending[i:] {
				c.buffer.add(m)
			}
			return fmt.Errorf("mqtt flush: %w: %v", device.ErrSend, err)
		}
	}
	c.log.Info("flushed buffered messages", zap.Int("count", len(pending)))
	return nil
}

func (c *Communicator) handleCommand(topic string, payload []byte) {
	msg := device.Response{Channel: topic, Payload: append([]byte(nil), payload...)}
	select {
	case c.commands <- msg:
	default:
		c.log.Warn("command queue full, dropping message", zap.String("topic", topic))
	}
}

// Receive returns the next message from the command topic.
func (c *Communicator) Receive(ctx context.Context) (device.Response, error) {
	if c.cfg.CommandTopic == "" {
		return device.Response{}, fmt.Errorf("mqtt receive: no command topic: %w", device.ErrUnsupported)
	}
	select {
	case <-ctx.Done():
		return device.Response{}, ctx.Err()
	case msg := <-c.commands:
		return msg, nil
	}
}

// Buffered returns the number of messages waiting for a connection.
func (c *Communicator) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.size()
}

// IsConnected reports whether the broker connection is up.
func (c *Communicator) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker.
func (c *Communicator) Close() error {
	c.client.Disconnect()
	return nil
}
