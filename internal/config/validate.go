package config

import (
	"fmt"
	"strings"

	"github.com/sweeney/sensor-gateway/internal/dht"
	"github.com/sweeney/sensor-gateway/internal/pin"
	"github.com/sweeney/sensor-gateway/internal/sensors"
	"github.com/sweeney/sensor-gateway/internal/storage"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if cfg.Gateway.IntervalMs < 0 {
		return fmt.Errorf("gateway: interval_ms must not be negative (got %d)", cfg.Gateway.IntervalMs)
	}

	// ------------------------------------------------------------
	// SENSORS
	// ------------------------------------------------------------

	names := make(map[string]bool, len(cfg.Sensors))
	for i, s := range cfg.Sensors {
		if s.Name == "" {
			return fmt.Errorf("sensors[%d]: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("sensor %q: duplicate name", s.Name)
		}
		names[s.Name] = true

		if err := validateSensor(s); err != nil {
			return fmt.Errorf("sensor %q: %w", s.Name, err)
		}
	}

	// ------------------------------------------------------------
	// ACTUATORS
	// ------------------------------------------------------------

	actuators := make(map[string]bool, len(cfg.Actuators))
	for i, a := range cfg.Actuators {
		if a.Name == "" {
			return fmt.Errorf("actuators[%d]: name is required", i)
		}
		if actuators[a.Name] {
			return fmt.Errorf("actuator %q: duplicate name", a.Name)
		}
		actuators[a.Name] = true

		switch strings.ToLower(a.Type) {
		case ActuatorLog:
		case ActuatorRelay:
			if a.Pin == nil {
				return fmt.Errorf("actuator %q: relay requires pin", a.Name)
			}
			if err := validateBackend(a.Backend); err != nil {
				return fmt.Errorf("actuator %q: %w", a.Name, err)
			}
		default:
			return fmt.Errorf("actuator %q: unknown type %q", a.Name, a.Type)
		}

		for _, src := range a.Sources {
			if !names[src] {
				return fmt.Errorf("actuator %q: source %q is not a configured sensor", a.Name, src)
			}
		}
	}

	// ------------------------------------------------------------
	// COMMUNICATION
	// ------------------------------------------------------------

	c := cfg.Communication
	switch strings.ToLower(c.Type) {
	case "", CommConsole:
	case CommMQTT:
		if c.Broker == "" {
			return fmt.Errorf("communication: mqtt requires broker")
		}
		if c.QoS != nil && (*c.QoS < 0 || *c.QoS > 2) {
			return fmt.Errorf("communication: qos must be 0, 1 or 2 (got %d)", *c.QoS)
		}
		if c.BufferSize < 0 {
			return fmt.Errorf("communication: buffer_size must not be negative")
		}
	case CommKafka:
		if len(c.Brokers) == 0 {
			return fmt.Errorf("communication: kafka requires brokers")
		}
	default:
		return fmt.Errorf("communication: unknown type %q", c.Type)
	}

	// ------------------------------------------------------------
	// STORAGE
	// ------------------------------------------------------------

	switch strings.ToLower(cfg.Storage.Type) {
	case "", storage.KindNone, storage.KindMemory:
	case storage.KindFile:
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage: file requires path")
		}
	default:
		return fmt.Errorf("storage: unknown type %q", cfg.Storage.Type)
	}

	return nil
}

func validateSensor(s SensorConfig) error {
	if s.Retry.MaxAttempts < 0 || s.Retry.BackoffMs < 0 {
		return fmt.Errorf("retry values must not be negative")
	}

	switch strings.ToLower(s.Type) {
	case SensorDHT:
		if s.Pin == nil {
			return fmt.Errorf("dht requires pin")
		}
		if s.Family != "" {
			if _, err := dht.ParseFamily(s.Family); err != nil {
				return err
			}
		}
		if _, err := sensors.ParseMetric(s.Metric); err != nil {
			return err
		}
		return validateBackend(s.Backend)

	case SensorDS18B20:
		if s.DeviceID == "" {
			return fmt.Errorf("ds18b20 requires device_id")
		}

	case SensorRain:
		if s.Pin == nil {
			return fmt.Errorf("rain requires pin")
		}
		if s.DebounceMs < 0 {
			return fmt.Errorf("debounce_ms must not be negative")
		}
		return validateBackend(s.Backend)

	case SensorModbus:
		m := s.Modbus
		if m == nil || m.Endpoint == "" {
			return fmt.Errorf("modbus requires modbus.endpoint")
		}
		switch strings.ToLower(m.Function) {
		case "", sensors.FunctionHolding, sensors.FunctionInput:
		default:
			return fmt.Errorf("modbus function must be %q or %q (got %q)",
				sensors.FunctionHolding, sensors.FunctionInput, m.Function)
		}
		if m.TimeoutMs < 0 {
			return fmt.Errorf("modbus timeout_ms must not be negative")
		}

	case SensorSimulated:
		if _, err := sensors.ParseMetric(s.Metric); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown type %q", s.Type)
	}
	return nil
}

func validateBackend(b string) error {
	switch strings.ToLower(b) {
	case "", pin.BackendGPIOCDev, pin.BackendPeriph:
		return nil
	}
	return fmt.Errorf("unknown pin backend %q", b)
}
