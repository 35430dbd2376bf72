//go:build !linux

package pin

import (
	"fmt"

	"github.com/sweeney/sensor-gateway/internal/device"
)

// Line is not available on non-Linux platforms.
type Line struct{}

// NewLine returns an error on non-Linux platforms.
func NewLine(chipName string, offset int) (*Line, error) {
	return nil, fmt.Errorf("pin: %w: gpio character device requires Linux", device.ErrInitialization)
}

func (l *Line) SetMode(m Mode) error   { return device.ErrUnsupported }
func (l *Line) Read() (bool, error)    { return false, device.ErrUnsupported }
func (l *Line) Write(level bool) error { return device.ErrUnsupported }
func (l *Line) Close() error           { return nil }
