// Package pin provides the raw single-line GPIO primitive used by every
// hardware-bound device. The real implementations use the Linux GPIO character
// device (go-gpiocdev) or periph.io; the fake replays scripted waveforms so
// protocol decoders can be tested without hardware.
package pin

import (
	"fmt"
	"strings"
)

// Logic levels.
const (
	Low  = false
	High = true
)

// Mode is the line direction.
type Mode int

const (
	Input Mode = iota
	Output
)

func (m Mode) String() string {
	if m == Output {
		return "output"
	}
	return "input"
}

// Pin is a single addressable digital line.
// A Pin is owned by exactly one device; implementations are not safe for concurrent use.
type Pin interface {
	// SetMode switches the line between input and output.
	SetMode(m Mode) error

	// Read returns the current level (true = high).
	Read() (bool, error)

	// Write drives the line to the given level. The line must be in output mode.
	Write(level bool) error

	// Close releases the line.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendGPIOCDev = "gpiocdev"
	BackendPeriph   = "periph"
)

// DefaultChip is the GPIO character device used when none is configured.
const DefaultChip = "gpiochip0"

// Open acquires a line using the named backend. For gpiocdev, chip and offset
// address the line; for periph, offset is resolved as a GPIO number.
func Open(backend, chip string, offset int) (Pin, error) {
	switch strings.ToLower(backend) {
	case "", BackendGPIOCDev:
		if chip == "" {
			chip = DefaultChip
		}
		l, err := NewLine(chip, offset)
		if err != nil {
			return nil, err
		}
		return l, nil
	case BackendPeriph:
		p, err := NewPeriph(fmt.Sprintf("GPIO%d", offset))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("pin: unknown backend %q", backend)
	}
}
