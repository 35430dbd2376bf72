package sensors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sweeney/sensor-gateway/internal/device"
)

// DefaultW1Dir is where the kernel one-wire driver exposes devices.
const DefaultW1Dir = "/sys/bus/w1/devices"

// DS18B20 physical range in °C.
const (
	ds18b20Min = -55.0
	ds18b20Max = 125.0
)

// DS18B20 reads a one-wire temperature probe through the kernel w1_slave file.
type DS18B20 struct {
	path string
}

// NewDS18B20 creates a probe reader for the device id (e.g. "28-00000abcdef")
// under dir. An empty dir means DefaultW1Dir.
func NewDS18B20(dir, id string) (*DS18B20, error) {
	if id == "" {
		return nil, fmt.Errorf("ds18b20: device id required: %w", device.ErrInitialization)
	}
	if dir == "" {
		dir = DefaultW1Dir
	}
	return &DS18B20{path: filepath.Join(dir, id, "w1_slave")}, nil
}

// Path returns the w1_slave file being read.
func (s *DS18B20) Path() string {
	return s.path
}

// Read parses the w1_slave file. The first line must end in YES (CRC ok) and
// the second carries t=<millidegrees>.
func (s *DS18B20) Read(ctx context.Context) (device.Reading, error) {
	if err := ctx.Err(); err != nil {
		return device.Reading{}, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return device.Reading{}, fmt.Errorf("ds18b20: %w: %v", device.ErrIO, err)
	}
	c, err := ParseW1Slave(string(data))
	if err != nil {
		return device.Reading{}, fmt.Errorf("ds18b20: %w", err)
	}
	return device.Float(c), nil
}

// ParseW1Slave extracts the temperature in °C from w1_slave contents.
func ParseW1Slave(data string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("%w: short w1_slave output", device.ErrInvalidData)
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("%w: crc check failed", device.ErrInvalidData)
	}
	i := strings.Index(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("%w: no t= marker", device.ErrInvalidData)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(lines[1][i+2:]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: temperature: %v", device.ErrInvalidData, err)
	}
	c := float64(milli) / 1000
	if c < ds18b20Min || c > ds18b20Max {
		return 0, fmt.Errorf("%w: temperature %.3f out of range", device.ErrInvalidData, c)
	}
	return c, nil
}
