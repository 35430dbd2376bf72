// Package kafka forwards readings to a Kafka topic, keyed by sensor name so a
// sensor's readings stay ordered within one partition.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sweeney/sensor-gateway/internal/device"
	"go.uber.org/multierr"
)

// Config configures the communicator.
type Config struct {
	Brokers []string
	Topic   string
	Gateway string

	// CommandTopic, if set, is consumed by Receive under GroupID.
	CommandTopic string
	GroupID      string

	WriteTimeout time.Duration
}

// Writer is the part of a kafka.Writer the communicator uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Reader is the part of a kafka.Reader the communicator uses.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Communicator publishes readings to Kafka.
type Communicator struct {
	cfg    Config
	writer Writer
	reader Reader // nil without a command topic
}

// Dial creates a communicator with real kafka-go clients. Connections are
// opened lazily on first use.
func Dial(cfg Config) (*Communicator, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers required: %w", device.ErrInitialization)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required: %w", device.ErrInitialization)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
	}
	var r Reader
	if cfg.CommandTopic != "" {
		group := cfg.GroupID
		if group == "" {
			group = cfg.Gateway
		}
		r = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  group,
			Topic:    cfg.CommandTopic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		})
	}
	return New(cfg, w, r), nil
}

// New creates a communicator over existing clients. r may be nil.
func New(cfg Config, w Writer, r Reader) *Communicator {
	return &Communicator{cfg: cfg, writer: w, reader: r}
}

// Send writes one message keyed by the reading's sensor.
func (c *Communicator) Send(ctx context.Context, r device.Reading) (device.Response, error) {
	payload, err := device.FormatPayload(c.cfg.Gateway, r)
	if err != nil {
		return device.Response{}, fmt.Errorf("kafka: %w: %v", device.ErrSend, err)
	}
	msg := kafka.Message{
		Key:   []byte(r.Source),
		Value: payload,
		Time:  r.Time,
	}
	if err := c.writer.WriteMessages(ctx, msg); err != nil {
		return device.Response{}, fmt.Errorf("kafka write %s: %w: %v", c.cfg.Topic, device.ErrSend, err)
	}
	return device.Response{Channel: c.cfg.Topic, Payload: payload}, nil
}

// Receive returns the next message from the command topic.
func (c *Communicator) Receive(ctx context.Context) (device.Response, error) {
	if c.reader == nil {
		return device.Response{}, fmt.Errorf("kafka receive: no command topic: %w", device.ErrUnsupported)
	}
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return device.Response{}, err
		}
		return device.Response{}, fmt.Errorf("kafka read %s: %w: %v", c.cfg.CommandTopic, device.ErrIO, err)
	}
	return device.Response{Channel: m.Topic, Payload: m.Value}, nil
}

// Close flushes the writer and closes both clients.
func (c *Communicator) Close() error {
	err := c.writer.Close()
	if c.reader != nil {
		err = multierr.Append(err, c.reader.Close())
	}
	return err
}
