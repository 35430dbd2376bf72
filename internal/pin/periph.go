package pin

import (
	"fmt"

	"github.com/sweeney/sensor-gateway/internal/device"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Periph is a line driven through periph.io, for boards where the character
// device is unavailable (older kernels, sysfs-only images).
type Periph struct {
	p    gpio.PinIO
	mode Mode
}

// NewPeriph initializes the periph host drivers and looks the pin up by name.
func NewPeriph(name string) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w: %v", device.ErrInitialization, err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("periph pin %s: %w: not found", name, device.ErrInitialization)
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("periph pin %s: %w: %v", name, device.ErrInitialization, err)
	}
	return &Periph{p: p, mode: Input}, nil
}

// SetMode reconfigures the pin direction. Switching to output drives it high.
func (p *Periph) SetMode(m Mode) error {
	var err error
	if m == Output {
		err = p.p.Out(gpio.High)
	} else {
		err = p.p.In(gpio.PullUp, gpio.NoEdge)
	}
	if err != nil {
		return fmt.Errorf("set %s %s: %w: %v", p.p.Name(), m, device.ErrIO, err)
	}
	p.mode = m
	return nil
}

// Read returns the current level.
func (p *Periph) Read() (bool, error) {
	return p.p.Read() == gpio.High, nil
}

// Write drives the pin.
func (p *Periph) Write(level bool) error {
	if err := p.p.Out(gpio.Level(level)); err != nil {
		return fmt.Errorf("write %s: %w: %v", p.p.Name(), device.ErrIO, err)
	}
	return nil
}

// Close halts any activity on the pin and leaves it as input.
func (p *Periph) Close() error {
	if err := p.p.Halt(); err != nil {
		return err
	}
	return p.p.In(gpio.PullUp, gpio.NoEdge)
}
