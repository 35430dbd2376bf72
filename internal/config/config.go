// Package config loads the gateway's YAML configuration.
//
// The lifecycle is Load, then Validate (declarative, never mutates), then
// Normalize (fills defaults).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor types.
const (
	SensorDHT       = "dht"
	SensorDS18B20   = "ds18b20"
	SensorRain      = "rain"
	SensorModbus    = "modbus"
	SensorSimulated = "simulated"
)

// Actuator types.
const (
	ActuatorLog   = "log"
	ActuatorRelay = "relay"
)

// Communicator types.
const (
	CommConsole = "console"
	CommMQTT    = "mqtt"
	CommKafka   = "kafka"
)

type Config struct {
	Gateway       GatewayConfig       `yaml:"gateway"`
	Sensors       []SensorConfig      `yaml:"sensors"`
	Actuators     []ActuatorConfig    `yaml:"actuators"`
	Communication CommunicationConfig `yaml:"communication"`
	Storage       StorageConfig       `yaml:"storage"`
	HTTP          HTTPConfig          `yaml:"http"`
}

// ---- GATEWAY ----

type GatewayConfig struct {
	Name       string `yaml:"name"`
	Location   string `yaml:"location"`
	IntervalMs int    `yaml:"interval_ms"`
}

// Interval is the polling period.
func (g GatewayConfig) Interval() time.Duration {
	return time.Duration(g.IntervalMs) * time.Millisecond
}

// ---- SENSORS ----

type SensorConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// GPIO line (dht, rain)
	Pin     *int   `yaml:"pin"`
	Chip    string `yaml:"chip"`
	Backend string `yaml:"backend"`

	// dht
	Family string `yaml:"family"`
	// dht, simulated
	Metric string `yaml:"metric"`

	// ds18b20
	DeviceID string `yaml:"device_id"`
	W1Dir    string `yaml:"w1_dir"`

	// rain
	ActiveLow  bool `yaml:"active_low"`
	DebounceMs int  `yaml:"debounce_ms"`

	Modbus *ModbusConfig `yaml:"modbus"`

	// simulated
	Seed int64 `yaml:"seed"`

	Retry RetryConfig `yaml:"retry"`
}

type ModbusConfig struct {
	Endpoint  string  `yaml:"endpoint"`
	UnitID    uint8   `yaml:"unit_id"`
	TimeoutMs int     `yaml:"timeout_ms"`
	Register  uint16  `yaml:"register"`
	Function  string  `yaml:"function"` // holding | input
	Scale     float64 `yaml:"scale"`
	Signed    bool    `yaml:"signed"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMs   int `yaml:"backoff_ms"`
}

// Backoff is the pause between attempts.
func (r RetryConfig) Backoff() time.Duration {
	return time.Duration(r.BackoffMs) * time.Millisecond
}

// ---- ACTUATORS ----

type ActuatorConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// relay
	Pin       *int    `yaml:"pin"`
	Chip      string  `yaml:"chip"`
	Backend   string  `yaml:"backend"`
	Threshold float64 `yaml:"threshold"`
	ActiveLow bool    `yaml:"active_low"`

	// Sources limits the actuator to readings from these sensors. Empty
	// means every sensor.
	Sources []string `yaml:"sources"`
}

// ---- COMMUNICATION ----

type CommunicationConfig struct {
	Type string `yaml:"type"`

	// mqtt
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	SystemTopic  string `yaml:"system_topic"`
	QoS          *int   `yaml:"qos"`      // nil: DefaultQoS
	Retained     *bool  `yaml:"retained"` // nil: true
	BufferSize   int    `yaml:"buffer_size"`
	CommandTopic string `yaml:"command_topic"`

	// mqtt, kafka
	Topic string `yaml:"topic"`

	// kafka
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// EffectiveQoS returns the configured MQTT QoS, or DefaultQoS when unset.
func (c CommunicationConfig) EffectiveQoS() int {
	if c.QoS == nil {
		return DefaultQoS
	}
	return *c.QoS
}

// EffectiveRetained reports whether readings are published retained.
// Unset means retained.
func (c CommunicationConfig) EffectiveRetained() bool {
	return c.Retained == nil || *c.Retained
}

// ---- STORAGE ----

type StorageConfig struct {
	Type string `yaml:"type"` // none | memory | file
	Path string `yaml:"path"`
}

// ---- HTTP ----

type HTTPConfig struct {
	// Addr is the status server listen address. Empty disables it.
	Addr string `yaml:"addr"`
}

// Load reads and decodes the file at path. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document. An empty document yields a zero Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}
