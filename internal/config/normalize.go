package config

import (
	"strings"

	"github.com/sweeney/sensor-gateway/internal/mqtt"
	"github.com/sweeney/sensor-gateway/internal/pin"
	"github.com/sweeney/sensor-gateway/internal/sensors"
	"github.com/sweeney/sensor-gateway/internal/storage"
)

// Defaults applied by Normalize.
const (
	DefaultName          = "sensor-gateway"
	DefaultIntervalMs    = 2000
	DefaultFamily        = "DHT22"
	DefaultModbusTimeout = 1000
	DefaultKafkaTopic    = "sensor-readings"
	DefaultQoS           = 1
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	g := &cfg.Gateway
	if g.Name == "" {
		g.Name = DefaultName
	}
	if g.IntervalMs == 0 {
		g.IntervalMs = DefaultIntervalMs
	}

	for i := range cfg.Sensors {
		normalizeSensor(&cfg.Sensors[i])
	}

	for i := range cfg.Actuators {
		a := &cfg.Actuators[i]
		a.Type = strings.ToLower(a.Type)
		if a.Type == ActuatorRelay {
			normalizeLine(&a.Chip, &a.Backend)
		}
	}

	c := &cfg.Communication
	c.Type = strings.ToLower(c.Type)
	switch c.Type {
	case "":
		c.Type = CommConsole
	case CommMQTT:
		if c.Topic == "" {
			c.Topic = mqtt.DefaultTopic
		}
		if c.SystemTopic == "" {
			c.SystemTopic = mqtt.DefaultSystemTopic
		}
		if c.BufferSize == 0 {
			c.BufferSize = mqtt.DefaultBufferSize
		}
		if c.ClientID == "" {
			c.ClientID = g.Name
		}
		if c.QoS == nil {
			qos := DefaultQoS
			c.QoS = &qos
		}
		if c.Retained == nil {
			retained := true
			c.Retained = &retained
		}
	case CommKafka:
		if c.Topic == "" {
			c.Topic = DefaultKafkaTopic
		}
		if c.CommandTopic != "" && c.GroupID == "" {
			c.GroupID = g.Name
		}
	}

	s := &cfg.Storage
	s.Type = strings.ToLower(s.Type)
	if s.Type == "" {
		s.Type = storage.KindNone
	}
}

func normalizeSensor(s *SensorConfig) {
	s.Type = strings.ToLower(s.Type)
	if s.Retry.MaxAttempts == 0 {
		s.Retry.MaxAttempts = 1
	}

	switch s.Type {
	case SensorDHT:
		if s.Family == "" {
			s.Family = DefaultFamily
		}
		s.Family = strings.ToUpper(s.Family)
		normalizeMetric(&s.Metric)
		normalizeLine(&s.Chip, &s.Backend)
	case SensorDS18B20:
		if s.W1Dir == "" {
			s.W1Dir = sensors.DefaultW1Dir
		}
	case SensorRain:
		normalizeLine(&s.Chip, &s.Backend)
	case SensorModbus:
		m := s.Modbus
		if m == nil {
			break
		}
		if m.Function == "" {
			m.Function = sensors.FunctionHolding
		}
		m.Function = strings.ToLower(m.Function)
		if m.TimeoutMs == 0 {
			m.TimeoutMs = DefaultModbusTimeout
		}
		if m.UnitID == 0 {
			m.UnitID = 1
		}
	case SensorSimulated:
		normalizeMetric(&s.Metric)
	}
}

func normalizeMetric(m *string) {
	*m = strings.ToLower(strings.TrimSpace(*m))
	if *m == "" {
		*m = string(sensors.MetricTemperature)
	}
}

func normalizeLine(chip, backend *string) {
	*backend = strings.ToLower(*backend)
	if *backend == "" {
		*backend = pin.BackendGPIOCDev
	}
	if *backend == pin.BackendGPIOCDev && *chip == "" {
		*chip = pin.DefaultChip
	}
}
