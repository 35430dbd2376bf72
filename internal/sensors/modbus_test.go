package sensors

import (
	"context"
	"errors"
	"testing"

	"github.com/sweeney/sensor-gateway/internal/device"
)

type fakeRegisters struct {
	holding map[uint16][]byte
	input   map[uint16][]byte
	err     error
	calls   []string
}

func (f *fakeRegisters) ReadHoldingRegisters(addr, qty uint16) ([]byte, error) {
	f.calls = append(f.calls, "holding")
	if f.err != nil {
		return nil, f.err
	}
	return f.holding[addr], nil
}

func (f *fakeRegisters) ReadInputRegisters(addr, qty uint16) ([]byte, error) {
	f.calls = append(f.calls, "input")
	if f.err != nil {
		return nil, f.err
	}
	return f.input[addr], nil
}

func TestModbusRead(t *testing.T) {
	regs := &fakeRegisters{
		holding: map[uint16][]byte{10: {0x00, 0xd7}, 11: {0xff, 0x9c}},
		input:   map[uint16][]byte{20: {0x01, 0x0a}},
	}

	tests := []struct {
		name string
		cfg  ModbusConfig
		want device.Reading
	}{
		{"raw holding", ModbusConfig{Register: 10}, device.Int(215)},
		{"scaled holding", ModbusConfig{Register: 10, Scale: 0.1}, device.Float(21.5)},
		{"unsigned", ModbusConfig{Register: 11}, device.Int(65436)},
		{"signed", ModbusConfig{Register: 11, Signed: true}, device.Int(-100)},
		{"input", ModbusConfig{Register: 20, Function: FunctionInput}, device.Int(266)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewModbus(tt.cfg, regs)
			if err != nil {
				t.Fatal(err)
			}
			got, err := s.Read(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind() != tt.want.Kind() {
				t.Fatalf("expected kind %s, got %s", tt.want.Kind(), got.Kind())
			}
			g, _ := got.Number()
			w, _ := tt.want.Number()
			if g-w > 1e-9 || w-g > 1e-9 {
				t.Errorf("expected %v, got %v", w, g)
			}
		})
	}
}

func TestModbusErrors(t *testing.T) {
	s, _ := NewModbus(ModbusConfig{Register: 1}, &fakeRegisters{err: errors.New("connection reset")})
	if _, err := s.Read(context.Background()); !errors.Is(err, device.ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}

	s, _ = NewModbus(ModbusConfig{Register: 99}, &fakeRegisters{})
	if _, err := s.Read(context.Background()); !errors.Is(err, device.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for an empty response, got %v", err)
	}

	if _, err := NewModbus(ModbusConfig{Function: "coil"}, &fakeRegisters{}); !errors.Is(err, device.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestDialModbusRequiresEndpoint(t *testing.T) {
	if _, err := DialModbus(ModbusConfig{}); !errors.Is(err, device.ErrInitialization) {
		t.Fatalf("expected ErrInitialization, got %v", err)
	}
}
