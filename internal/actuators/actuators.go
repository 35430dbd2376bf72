// Package actuators holds the concrete Actuator implementations.
package actuators

import (
	"context"
	"fmt"
	"sync"

	"github.com/sweeney/sensor-gateway/internal/device"
	"github.com/sweeney/sensor-gateway/internal/pin"
	"go.uber.org/zap"
)

// Log records every command it receives. It stands in for real hardware.
type Log struct {
	name string
	log  *zap.Logger

	mu       sync.Mutex
	commands []device.Reading
}

// NewLog creates a logging actuator. A nil logger discards output.
func NewLog(name string, l *zap.Logger) *Log {
	if l == nil {
		l = zap.NewNop()
	}
	return &Log{name: name, log: l}
}

// Execute logs the command.
func (a *Log) Execute(ctx context.Context, command device.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if command.IsZero() {
		return fmt.Errorf("%s: empty command: %w", a.name, device.ErrExecute)
	}
	a.log.Info("actuator command",
		zap.String("actuator", a.name),
		zap.String("sensor", command.Source),
		zap.String("kind", string(command.Kind())),
		zap.Stringer("value", command))

	a.mu.Lock()
	a.commands = append(a.commands, command)
	a.mu.Unlock()
	return nil
}

// Commands returns every command executed so far.
func (a *Log) Commands() []device.Reading {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]device.Reading, len(a.commands))
	copy(out, a.commands)
	return out
}

// Relay drives a digital output. Bool commands set the relay directly;
// numeric commands switch it on at or above the threshold.
type Relay struct {
	pin       pin.Pin
	threshold float64
	activeLow bool

	on bool
}

// NewRelay takes ownership of p, switches it to output and drives it off.
func NewRelay(p pin.Pin, threshold float64, activeLow bool) (*Relay, error) {
	if p == nil {
		return nil, fmt.Errorf("relay: no pin: %w", device.ErrInitialization)
	}
	r := &Relay{pin: p, threshold: threshold, activeLow: activeLow}
	if err := p.SetMode(pin.Output); err != nil {
		return nil, fmt.Errorf("relay: %w: %v", device.ErrInitialization, err)
	}
	if err := r.drive(false); err != nil {
		return nil, fmt.Errorf("relay: %w: %v", device.ErrInitialization, err)
	}
	return r, nil
}

// Execute switches the relay according to command.
func (r *Relay) Execute(ctx context.Context, command device.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var on bool
	if b, ok := command.Bool(); ok {
		on = b
	} else if n, ok := command.Number(); ok {
		on = n >= r.threshold
	} else {
		return fmt.Errorf("relay: %w: %w: %s command", device.ErrExecute, device.ErrUnsupported, command.Kind())
	}
	if err := r.drive(on); err != nil {
		return fmt.Errorf("relay: %w: %v", device.ErrExecute, err)
	}
	return nil
}

func (r *Relay) drive(on bool) error {
	level := on
	if r.activeLow {
		level = !on
	}
	if err := r.pin.Write(level); err != nil {
		return err
	}
	r.on = on
	return nil
}

// On reports the last state the relay was driven to.
func (r *Relay) On() bool {
	return r.on
}

// Close switches the relay off and releases the pin.
func (r *Relay) Close() error {
	if err := r.drive(false); err != nil {
		r.pin.Close()
		return fmt.Errorf("relay off: %w", err)
	}
	return r.pin.Close()
}
