//go:build linux

package pin

import (
	"fmt"

	"github.com/sweeney/sensor-gateway/internal/device"
	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

const consumer = "sensor-gateway"

// Line is a GPIO line on the Linux GPIO character device.
type Line struct {
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	offset int
	mode   Mode
}

// NewLine requests the line as input with pull-up, which is the idle state
// single-wire sensors expect.
func NewLine(chipName string, offset int) (*Line, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w: %v", chipName, device.ErrInitialization, err)
	}

	line, err := chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w: %v", offset, device.ErrInitialization, err)
	}

	return &Line{chip: chip, line: line, offset: offset, mode: Input}, nil
}

// SetMode reconfigures the line direction. Switching to output drives it high.
func (l *Line) SetMode(m Mode) error {
	if m == l.mode {
		return nil
	}
	var err error
	if m == Output {
		err = l.line.Reconfigure(gpiocdev.AsOutput(1))
	} else {
		err = l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp)
	}
	if err != nil {
		return fmt.Errorf("set pin %d %s: %w: %v", l.offset, m, device.ErrIO, err)
	}
	l.mode = m
	return nil
}

// Read returns the current line level.
func (l *Line) Read() (bool, error) {
	v, err := l.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w: %v", l.offset, device.ErrIO, err)
	}
	return v != 0, nil
}

// Write drives the line.
func (l *Line) Write(level bool) error {
	v := 0
	if level {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("write pin %d: %w: %v", l.offset, device.ErrIO, err)
	}
	return nil
}

// Close returns the line to input with pull-up before releasing it, so an
// output left high or low does not fight the sensor after shutdown.
func (l *Line) Close() error {
	var err error
	if l.line != nil {
		if rerr := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("reconfigure pin %d: %w", l.offset, rerr))
		}
		if cerr := l.line.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close pin %d: %w", l.offset, cerr))
		}
	}
	if l.chip != nil {
		if cerr := l.chip.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close chip: %w", cerr))
		}
	}
	return err
}
