package sensors

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/goburrow/modbus"
	"github.com/sweeney/sensor-gateway/internal/device"
)

// Register functions.
const (
	FunctionHolding = "holding" // FC 3
	FunctionInput   = "input"   // FC 4
)

// RegisterReader is the part of a Modbus client the sensor uses.
type RegisterReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
}

// ModbusConfig addresses one register on a Modbus TCP device.
type ModbusConfig struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
	Register uint16
	Function string
	// Scale multiplies the raw register. Zero or one reports the raw value
	// as an integer; anything else reports a float.
	Scale float64
	// Signed interprets the register as a two's-complement int16.
	Signed bool
}

// Modbus reads a single 16-bit register.
type Modbus struct {
	cfg     ModbusConfig
	client  RegisterReader
	handler *modbus.TCPClientHandler
}

// DialModbus connects to cfg.Endpoint.
func DialModbus(cfg ModbusConfig) (*Modbus, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("modbus: endpoint required: %w", device.ErrInitialization)
	}
	if err := checkFunction(cfg.Function); err != nil {
		return nil, err
	}
	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus %s: %w: %v", cfg.Endpoint, device.ErrInitialization, err)
	}
	return &Modbus{cfg: cfg, client: modbus.NewClient(h), handler: h}, nil
}

// NewModbus creates a sensor over an existing register reader.
func NewModbus(cfg ModbusConfig, client RegisterReader) (*Modbus, error) {
	if err := checkFunction(cfg.Function); err != nil {
		return nil, err
	}
	return &Modbus{cfg: cfg, client: client}, nil
}

func checkFunction(fn string) error {
	switch strings.ToLower(fn) {
	case "", FunctionHolding, FunctionInput:
		return nil
	default:
		return fmt.Errorf("modbus: function %q: %w", fn, device.ErrUnsupported)
	}
}

// Read fetches the register and applies the scale.
func (m *Modbus) Read(ctx context.Context) (device.Reading, error) {
	if err := ctx.Err(); err != nil {
		return device.Reading{}, err
	}
	var (
		raw []byte
		err error
	)
	if strings.EqualFold(m.cfg.Function, FunctionInput) {
		raw, err = m.client.ReadInputRegisters(m.cfg.Register, 1)
	} else {
		raw, err = m.client.ReadHoldingRegisters(m.cfg.Register, 1)
	}
	if err != nil {
		return device.Reading{}, fmt.Errorf("modbus register %d: %w: %v", m.cfg.Register, device.ErrIO, err)
	}
	if len(raw) < 2 {
		return device.Reading{}, fmt.Errorf("modbus register %d: %w: %d bytes", m.cfg.Register, device.ErrInvalidData, len(raw))
	}

	u := binary.BigEndian.Uint16(raw)
	v := int64(u)
	if m.cfg.Signed {
		v = int64(int16(u))
	}
	if m.cfg.Scale == 0 || m.cfg.Scale == 1 {
		return device.Int(v), nil
	}
	return device.Float(float64(v) * m.cfg.Scale), nil
}

// Close closes the TCP connection if this sensor opened it.
func (m *Modbus) Close() error {
	if m.handler == nil {
		return nil
	}
	return m.handler.Close()
}
