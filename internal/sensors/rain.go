package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/sensor-gateway/internal/debounce"
	"github.com/sweeney/sensor-gateway/internal/device"
	"github.com/sweeney/sensor-gateway/internal/pin"
)

// Rain reads an MH-RD rain module's digital output. It reports true while wet.
// Most modules pull DO low when water is detected (active low).
type Rain struct {
	pin       pin.Pin
	activeLow bool
	filter    *debounce.Filter
	now       func() time.Time
}

// RainOption configures a Rain sensor.
type RainOption func(*Rain)

// WithDebounce filters the wet state through a debounce window.
func WithDebounce(d time.Duration) RainOption {
	return func(r *Rain) { r.filter = debounce.New(d) }
}

// WithNow replaces the clock used to timestamp samples.
func WithNow(now func() time.Time) RainOption {
	return func(r *Rain) { r.now = now }
}

// NewRain creates a rain sensor on p and switches the line to input.
func NewRain(p pin.Pin, activeLow bool, opts ...RainOption) (*Rain, error) {
	if p == nil {
		return nil, fmt.Errorf("rain: no pin: %w", device.ErrInitialization)
	}
	r := &Rain{pin: p, activeLow: activeLow, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	if err := p.SetMode(pin.Input); err != nil {
		return nil, fmt.Errorf("rain: %w: %v", device.ErrInitialization, err)
	}
	return r, nil
}

// Read samples the line. With debouncing enabled, the debounced state is
// reported once established and the raw state before that.
func (r *Rain) Read(ctx context.Context) (device.Reading, error) {
	if err := ctx.Err(); err != nil {
		return device.Reading{}, err
	}
	high, err := r.pin.Read()
	if err != nil {
		return device.Reading{}, fmt.Errorf("rain: %w", err)
	}
	wet := high
	if r.activeLow {
		wet = !high
	}
	if r.filter == nil {
		return device.Bool(wet), nil
	}
	r.filter.Process(wet, r.now())
	if stable, ok := r.filter.Stable(); ok {
		return device.Bool(stable), nil
	}
	return device.Bool(wet), nil
}

// Close releases the pin.
func (r *Rain) Close() error {
	return r.pin.Close()
}
