// Package gateway runs the polling loop: on every tick it reads each sensor in
// registration order and hands the reading to the communicator, the bound
// actuators and storage. A failure in any one device is logged and isolated.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sweeney/sensor-gateway/internal/device"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 2 * time.Second

// Config holds the loop settings.
type Config struct {
	// Name identifies this gateway in payloads and logs.
	Name     string
	Interval time.Duration
}

type namedSensor struct {
	name   string
	sensor device.Sensor
}

type boundActuator struct {
	name     string
	actuator device.Actuator
	sources  map[string]bool // empty: every sensor
}

func (b boundActuator) accepts(sensor string) bool {
	return len(b.sources) == 0 || b.sources[sensor]
}

// Gateway owns its registered devices. The registration set is fixed once New
// returns.
type Gateway struct {
	cfg       Config
	sensors   []namedSensor
	actuators []boundActuator
	comm      device.Communicator
	store     device.Storage
	observers []Observer
	log       *zap.Logger
	now       func() time.Time

	seq uint64
}

// Option configures a Gateway.
type Option func(*Gateway) error

// WithSensor registers a sensor. Sensors are polled in registration order.
func WithSensor(name string, s device.Sensor) Option {
	return func(g *Gateway) error {
		if s == nil {
			return fmt.Errorf("sensor %q is nil", name)
		}
		for _, ns := range g.sensors {
			if ns.name == name {
				return fmt.Errorf("duplicate sensor %q", name)
			}
		}
		g.sensors = append(g.sensors, namedSensor{name: name, sensor: s})
		return nil
	}
}

// WithActuator registers an actuator. With sources it only receives readings
// from those sensors; without, it receives every reading.
func WithActuator(name string, a device.Actuator, sources ...string) Option {
	return func(g *Gateway) error {
		if a == nil {
			return fmt.Errorf("actuator %q is nil", name)
		}
		b := boundActuator{name: name, actuator: a}
		if len(sources) > 0 {
			b.sources = make(map[string]bool, len(sources))
			for _, s := range sources {
				b.sources[s] = true
			}
		}
		g.actuators = append(g.actuators, b)
		return nil
	}
}

// WithCommunicator sets the channel readings are sent to.
func WithCommunicator(c device.Communicator) Option {
	return func(g *Gateway) error {
		g.comm = c
		return nil
	}
}

// WithStorage sets where readings are persisted.
func WithStorage(s device.Storage) Option {
	return func(g *Gateway) error {
		g.store = s
		return nil
	}
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(g *Gateway) error {
		if o != nil {
			g.observers = append(g.observers, o)
		}
		return nil
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) error {
		if l != nil {
			g.log = l
		}
		return nil
	}
}

// WithClock replaces the clock used to stamp readings.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) error {
		g.now = now
		return nil
	}
}

// New creates a gateway.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("negative interval %v", cfg.Interval)
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	g := &Gateway{cfg: cfg, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		if err := o(g); err != nil {
			return nil, err
		}
	}
	for _, a := range g.actuators {
		for src := range a.sources {
			if !g.hasSensor(src) {
				g.log.Warn("actuator bound to unknown sensor",
					zap.String("actuator", a.name), zap.String("sensor", src))
			}
		}
	}
	return g, nil
}

func (g *Gateway) hasSensor(name string) bool {
	for _, s := range g.sensors {
		if s.name == name {
			return true
		}
	}
	return false
}

// Config returns the effective loop settings.
func (g *Gateway) Config() Config {
	return g.cfg
}

// Sensors returns the registered sensor names in polling order.
func (g *Gateway) Sensors() []string {
	names := make([]string, len(g.sensors))
	for i, s := range g.sensors {
		names[i] = s.name
	}
	return names
}

// Run polls once immediately and then every interval until ctx is cancelled.
// Cycles never overlap: a tick that arrives during a cycle is handled after
// it finishes.
func (g *Gateway) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	g.log.Info("gateway started",
		zap.String("gateway", g.cfg.Name),
		zap.Duration("interval", g.cfg.Interval),
		zap.Int("sensors", len(g.sensors)),
		zap.Int("actuators", len(g.actuators)))

	return g.run(ctx, ticker.C)
}

func (g *Gateway) run(ctx context.Context, tick <-chan time.Time) error {
	if ctx.Err() == nil {
		g.RunCycle(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			g.log.Info("gateway stopped", zap.Uint64("cycles", g.seq))
			return nil
		case <-tick:
			g.RunCycle(ctx)
		}
	}
}

// RunCycle performs one pass over every sensor. Cancellation is checked
// between sensors.
func (g *Gateway) RunCycle(ctx context.Context) Cycle {
	g.seq++
	c := Cycle{Seq: g.seq, Started: g.now()}

	for _, ns := range g.sensors {
		if ctx.Err() != nil {
			c.Interrupted = true
			break
		}
		g.process(ctx, ns, &c)
	}

	c.Duration = g.now().Sub(c.Started)
	if c.Failed() {
		g.log.Debug("cycle finished with errors",
			zap.Uint64("cycle", c.Seq),
			zap.Int("read_errors", c.ReadErrors),
			zap.Int("send_errors", c.SendErrors),
			zap.Int("execute_errors", c.ExecuteErrors),
			zap.Int("save_errors", c.SaveErrors))
	}
	for _, o := range g.observers {
		o.CycleDone(c)
	}
	return c
}

func (g *Gateway) process(ctx context.Context, ns namedSensor, c *Cycle) {
	log := g.log.With(zap.String("sensor", ns.name))

	start := g.now()
	r, err := ns.sensor.Read(ctx)
	took := g.now().Sub(start)
	if err == nil && r.IsZero() {
		err = fmt.Errorf("%w: empty reading", device.ErrInvalidData)
	}
	if err != nil {
		r = device.Reading{}
	} else {
		r = r.With(ns.name, start)
	}
	for _, o := range g.observers {
		o.ReadDone(ns.name, r, err, took)
	}
	if err != nil {
		c.ReadErrors++
		if !errors.Is(err, context.Canceled) {
			log.Warn("read failed", zap.Error(err))
		}
		return
	}
	c.Reads++
	log.Debug("reading", zap.Stringer("value", r), zap.String("kind", string(r.Kind())))

	if g.comm != nil {
		resp, err := g.comm.Send(ctx, r)
		for _, o := range g.observers {
			o.SendDone(ns.name, resp, err)
		}
		if err != nil {
			c.SendErrors++
			log.Warn("send failed", zap.Error(err))
		}
	}

	for _, a := range g.actuators {
		if !a.accepts(ns.name) {
			continue
		}
		err := a.actuator.Execute(ctx, r)
		for _, o := range g.observers {
			o.ExecuteDone(a.name, ns.name, err)
		}
		if err != nil {
			c.ExecuteErrors++
			log.Warn("execute failed", zap.String("actuator", a.name), zap.Error(err))
		}
	}

	if g.store != nil {
		err := g.store.Save(r)
		for _, o := range g.observers {
			o.SaveDone(ns.name, err)
		}
		if err != nil {
			c.SaveErrors++
			log.Warn("save failed", zap.Error(err))
		}
	}
}

// Close releases every registered device that holds resources.
func (g *Gateway) Close() error {
	var err error
	closeIf := func(kind, name string, v any) {
		if c, ok := v.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("close %s %q: %w", kind, name, cerr))
			}
		}
	}
	for _, s := range g.sensors {
		closeIf("sensor", s.name, s.sensor)
	}
	for _, a := range g.actuators {
		closeIf("actuator", a.name, a.actuator)
	}
	if g.comm != nil {
		closeIf("communicator", "", g.comm)
	}
	if g.store != nil {
		closeIf("storage", "", g.store)
	}
	return err
}
