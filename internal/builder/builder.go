// Package builder turns a validated configuration into the devices one
// gateway owns. A device that cannot be constructed is logged and left out;
// the rest of the gateway still starts.
package builder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/sensor-gateway/internal/actuators"
	"github.com/sweeney/sensor-gateway/internal/config"
	"github.com/sweeney/sensor-gateway/internal/console"
	"github.com/sweeney/sensor-gateway/internal/device"
	"github.com/sweeney/sensor-gateway/internal/dht"
	"github.com/sweeney/sensor-gateway/internal/gateway"
	"github.com/sweeney/sensor-gateway/internal/kafka"
	"github.com/sweeney/sensor-gateway/internal/mqtt"
	"github.com/sweeney/sensor-gateway/internal/pin"
	"github.com/sweeney/sensor-gateway/internal/retry"
	"github.com/sweeney/sensor-gateway/internal/sensors"
	"github.com/sweeney/sensor-gateway/internal/status"
	"github.com/sweeney/sensor-gateway/internal/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Devices is what Build produced.
type Devices struct {
	// InstanceID is unique per process start.
	InstanceID string

	Sensors   []Named[device.Sensor]
	Actuators []BoundActuator

	// Communicator is nil if none could be built.
	Communicator device.Communicator
	// MQTT is set when Communicator is an MQTT communicator, for lifecycle events.
	MQTT *mqtt.Communicator

	Storage device.Storage

	// Skipped holds one error per device that was left out.
	Skipped []error
}

// Named pairs a device with its configured name.
type Named[T any] struct {
	Name   string
	Device T
}

// BoundActuator is an actuator and the sensors it listens to.
type BoundActuator struct {
	Named[device.Actuator]
	Sources []string
}

// Options returns the gateway options that register every built device.
func (d *Devices) Options() []gateway.Option {
	var opts []gateway.Option
	for _, s := range d.Sensors {
		opts = append(opts, gateway.WithSensor(s.Name, s.Device))
	}
	for _, a := range d.Actuators {
		opts = append(opts, gateway.WithActuator(a.Name, a.Device, a.Sources...))
	}
	if d.Communicator != nil {
		opts = append(opts, gateway.WithCommunicator(d.Communicator))
	}
	if d.Storage != nil {
		opts = append(opts, gateway.WithStorage(d.Storage))
	}
	return opts
}

// SensorNames lists built sensors in configuration order.
func (d *Devices) SensorNames() []string {
	names := make([]string, len(d.Sensors))
	for i, s := range d.Sensors {
		names[i] = s.Name
	}
	return names
}

// Close releases every device. It is only needed when the devices never
// reached a gateway; gateway.Close does the same.
func (d *Devices) Close() error {
	var err error
	closeIf := func(v any) {
		if c, ok := v.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	for _, s := range d.Sensors {
		closeIf(s.Device)
	}
	for _, a := range d.Actuators {
		closeIf(a.Device)
	}
	if d.Communicator != nil {
		closeIf(d.Communicator)
	}
	if d.Storage != nil {
		closeIf(d.Storage)
	}
	return err
}

// StatusConfig summarises cfg for the status page and lifecycle events.
func (d *Devices) StatusConfig(cfg *config.Config) status.Config {
	sc := status.Config{
		Gateway:       cfg.Gateway.Name,
		Location:      cfg.Gateway.Location,
		InstanceID:    d.InstanceID,
		IntervalMs:    int64(cfg.Gateway.IntervalMs),
		Communication: cfg.Communication.Type,
		Storage:       cfg.Storage.Type,
		HTTPPort:      cfg.HTTP.Addr,
	}
	switch cfg.Communication.Type {
	case config.CommMQTT:
		sc.Broker = cfg.Communication.Broker
	case config.CommKafka:
		if len(cfg.Communication.Brokers) > 0 {
			sc.Broker = cfg.Communication.Brokers[0]
		}
	}
	return sc
}

// Builder constructs devices. The zero value is not usable; use New.
type Builder struct {
	log    *zap.Logger
	stdout io.Writer
	newID  func() string

	openPin    func(backend, chip string, offset int) (pin.Pin, error)
	dialModbus func(sensors.ModbusConfig) (device.Sensor, error)
	dialMQTT   func(mqtt.Config, *zap.Logger) (*mqtt.Communicator, error)
	dialKafka  func(kafka.Config) (*kafka.Communicator, error)
	dhtOptions []dht.Option
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for skipped devices and passed to devices.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// WithOutput sets where the console communicator writes. Default os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(b *Builder) { b.stdout = w }
}

// WithPinOpener replaces how GPIO lines are acquired.
func WithPinOpener(open func(backend, chip string, offset int) (pin.Pin, error)) Option {
	return func(b *Builder) { b.openPin = open }
}

// WithDHTOptions passes decoder options to every DHT sensor.
func WithDHTOptions(opts ...dht.Option) Option {
	return func(b *Builder) { b.dhtOptions = opts }
}

// WithModbusDialer replaces how Modbus sensors connect.
func WithModbusDialer(dial func(sensors.ModbusConfig) (device.Sensor, error)) Option {
	return func(b *Builder) { b.dialModbus = dial }
}

// WithMQTTDialer replaces how the MQTT communicator connects.
func WithMQTTDialer(dial func(mqtt.Config, *zap.Logger) (*mqtt.Communicator, error)) Option {
	return func(b *Builder) { b.dialMQTT = dial }
}

// WithInstanceID fixes the instance id instead of generating one.
func WithInstanceID(id string) Option {
	return func(b *Builder) { b.newID = func() string { return id } }
}

// New creates a Builder backed by real hardware and network clients.
func New(opts ...Option) *Builder {
	b := &Builder{
		log:     zap.NewNop(),
		stdout:  os.Stdout,
		newID:   uuid.NewString,
		openPin: pin.Open,
		dialModbus: func(cfg sensors.ModbusConfig) (device.Sensor, error) {
			m, err := sensors.DialModbus(cfg)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		dialMQTT:  mqtt.Dial,
		dialKafka: kafka.Dial,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build constructs every configured device. cfg must have passed
// config.Validate and config.Normalize. Device failures are collected in
// Devices.Skipped; Build itself only fails on a nil config.
func (b *Builder) Build(cfg *config.Config) (*Devices, error) {
	if cfg == nil {
		return nil, errors.New("builder: nil config")
	}
	d := &Devices{InstanceID: b.newID()}

	skip := func(kind, name string, err error) {
		err = fmt.Errorf("%s %q: %w", kind, name, err)
		d.Skipped = append(d.Skipped, err)
		b.log.Error("device skipped", zap.String("kind", kind), zap.String("name", name), zap.Error(err))
	}

	for _, sc := range cfg.Sensors {
		s, err := b.sensor(sc)
		if err != nil {
			skip("sensor", sc.Name, err)
			continue
		}
		if sc.Retry.MaxAttempts > 1 {
			s = retry.WrapSensor(s, retry.Policy{
				MaxAttempts: sc.Retry.MaxAttempts,
				Backoff:     sc.Retry.Backoff(),
			}, retry.WithLogger(b.log.With(zap.String("sensor", sc.Name))))
		}
		d.Sensors = append(d.Sensors, Named[device.Sensor]{Name: sc.Name, Device: s})
	}

	for _, ac := range cfg.Actuators {
		a, err := b.actuator(ac)
		if err != nil {
			skip("actuator", ac.Name, err)
			continue
		}
		d.Actuators = append(d.Actuators, BoundActuator{
			Named:   Named[device.Actuator]{Name: ac.Name, Device: a},
			Sources: ac.Sources,
		})
	}

	if err := b.communicator(cfg, d); err != nil {
		skip("communicator", cfg.Communication.Type, err)
	}

	st, err := storage.Open(cfg.Storage.Type, cfg.Storage.Path)
	if err != nil {
		skip("storage", cfg.Storage.Type, err)
	} else if st != nil {
		d.Storage = st
	}

	return d, nil
}

func (b *Builder) sensor(sc config.SensorConfig) (device.Sensor, error) {
	switch sc.Type {
	case config.SensorDHT:
		family, err := dht.ParseFamily(sc.Family)
		if err != nil {
			return nil, err
		}
		metric, err := sensors.ParseMetric(sc.Metric)
		if err != nil {
			return nil, err
		}
		p, err := b.line(sc.Backend, sc.Chip, sc.Pin)
		if err != nil {
			return nil, err
		}
		s, err := sensors.NewDHT(p, family, metric, b.dhtOptions...)
		if err != nil {
			p.Close()
			return nil, err
		}
		return s, nil

	case config.SensorDS18B20:
		s, err := sensors.NewDS18B20(sc.W1Dir, sc.DeviceID)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.SensorRain:
		p, err := b.line(sc.Backend, sc.Chip, sc.Pin)
		if err != nil {
			return nil, err
		}
		var opts []sensors.RainOption
		if sc.DebounceMs > 0 {
			opts = append(opts, sensors.WithDebounce(time.Duration(sc.DebounceMs)*time.Millisecond))
		}
		s, err := sensors.NewRain(p, sc.ActiveLow, opts...)
		if err != nil {
			p.Close()
			return nil, err
		}
		return s, nil

	case config.SensorModbus:
		m := sc.Modbus
		return b.dialModbus(sensors.ModbusConfig{
			Endpoint: m.Endpoint,
			UnitID:   m.UnitID,
			Timeout:  time.Duration(m.TimeoutMs) * time.Millisecond,
			Register: m.Register,
			Function: m.Function,
			Scale:    m.Scale,
			Signed:   m.Signed,
		})

	case config.SensorSimulated:
		metric, err := sensors.ParseMetric(sc.Metric)
		if err != nil {
			return nil, err
		}
		seed := sc.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return sensors.NewSimulated(metric, seed), nil
	}
	return nil, fmt.Errorf("unknown sensor type %q: %w", sc.Type, device.ErrUnsupported)
}

func (b *Builder) actuator(ac config.ActuatorConfig) (device.Actuator, error) {
	switch ac.Type {
	case config.ActuatorLog:
		return actuators.NewLog(ac.Name, b.log), nil
	case config.ActuatorRelay:
		p, err := b.line(ac.Backend, ac.Chip, ac.Pin)
		if err != nil {
			return nil, err
		}
		r, err := actuators.NewRelay(p, ac.Threshold, ac.ActiveLow)
		if err != nil {
			p.Close()
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown actuator type %q: %w", ac.Type, device.ErrUnsupported)
}

func (b *Builder) line(backend, chip string, offset *int) (pin.Pin, error) {
	if offset == nil {
		return nil, fmt.Errorf("no pin configured: %w", device.ErrInitialization)
	}
	p, err := b.openPin(backend, chip, *offset)
	if err != nil {
		return nil, fmt.Errorf("open pin %d: %w", *offset, err)
	}
	return p, nil
}

func (b *Builder) communicator(cfg *config.Config, d *Devices) error {
	c := cfg.Communication
	switch c.Type {
	case "", config.CommConsole:
		d.Communicator = console.New(b.stdout, cfg.Gateway.Name)
		return nil

	case config.CommMQTT:
		clientID := c.ClientID
		if clientID == "" {
			clientID = cfg.Gateway.Name
		}
		// Two processes sharing a config must not share a client id.
		clientID += "-" + d.InstanceID[:min(8, len(d.InstanceID))]
		m, err := b.dialMQTT(mqtt.Config{
			Broker:       c.Broker,
			ClientID:     clientID,
			Gateway:      cfg.Gateway.Name,
			Topic:        c.Topic,
			SystemTopic:  c.SystemTopic,
			CommandTopic: c.CommandTopic,
			QoS:          byte(c.EffectiveQoS()),
			Retained:     c.EffectiveRetained(),
			BufferSize:   c.BufferSize,
		}, b.log.Named("mqtt"))
		if err != nil {
			return err
		}
		d.Communicator = m
		d.MQTT = m
		return nil

	case config.CommKafka:
		k, err := b.dialKafka(kafka.Config{
			Brokers:      c.Brokers,
			Topic:        c.Topic,
			Gateway:      cfg.Gateway.Name,
			CommandTopic: c.CommandTopic,
			GroupID:      c.GroupID,
		})
		if err != nil {
			return err
		}
		d.Communicator = k
		return nil
	}
	return fmt.Errorf("unknown communicator %q: %w", c.Type, device.ErrUnsupported)
}
