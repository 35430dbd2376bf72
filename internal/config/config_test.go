package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sample = `
gateway:
  name: greenhouse
  location: north bed
  interval_ms: 5000
sensors:
  - name: air
    type: DHT
    pin: 4
    family: am2302
    metric: humidity
    retry:
      max_attempts: 3
      backoff_ms: 100
  - name: soil
    type: ds18b20
    device_id: 28-00000abcdef
  - name: meter
    type: modbus
    modbus:
      endpoint: 10.0.0.5:502
      register: 30
      scale: 0.1
actuators:
  - name: vent
    type: relay
    pin: 27
    threshold: 70
    sources: [air]
communication:
  type: mqtt
  broker: tcp://broker:1883
  qos: 1
  retained: true
storage:
  type: file
  path: /var/lib/gateway/readings.jsonl
http:
  addr: ":8080"
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeFile(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Gateway.Name != "greenhouse" || cfg.Gateway.Interval() != 5*time.Second {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if len(cfg.Sensors) != 3 {
		t.Fatalf("sensors = %d, want 3", len(cfg.Sensors))
	}
	air := cfg.Sensors[0]
	if air.Pin == nil || *air.Pin != 4 {
		t.Errorf("air pin = %v", air.Pin)
	}
	if air.Retry.MaxAttempts != 3 || air.Retry.Backoff() != 100*time.Millisecond {
		t.Errorf("air retry = %+v", air.Retry)
	}
	if m := cfg.Sensors[2].Modbus; m == nil || m.Register != 30 || m.Scale != 0.1 {
		t.Errorf("modbus = %+v", m)
	}
	if diff := cmp.Diff([]string{"air"}, cfg.Actuators[0].Sources); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http addr = %q", cfg.HTTP.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("gateway:\n  nmae: typo\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "nmae") {
		t.Errorf("error %q does not name the key", err)
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(&Config{}, cfg); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestNormalize(t *testing.T) {
	cfg, err := Load(writeFile(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	Normalize(cfg)

	air := cfg.Sensors[0]
	if air.Type != SensorDHT || air.Family != "AM2302" || air.Backend != "gpiocdev" || air.Chip != "gpiochip0" {
		t.Errorf("air = %+v", air)
	}
	if soil := cfg.Sensors[1]; soil.W1Dir != "/sys/bus/w1/devices" || soil.Retry.MaxAttempts != 1 {
		t.Errorf("soil = %+v", soil)
	}
	m := cfg.Sensors[2].Modbus
	if m.Function != "holding" || m.TimeoutMs != DefaultModbusTimeout || m.UnitID != 1 {
		t.Errorf("modbus = %+v", m)
	}
	c := cfg.Communication
	if c.Topic != "sensors/readings" || c.SystemTopic != "sensors/system" || c.BufferSize != 100 || c.ClientID != "greenhouse" {
		t.Errorf("communication = %+v", c)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{
		Sensors: []SensorConfig{{Name: "sim", Type: "Simulated"}},
	}
	Normalize(cfg)

	want := &Config{
		Gateway: GatewayConfig{Name: DefaultName, IntervalMs: DefaultIntervalMs},
		Sensors: []SensorConfig{{
			Name:   "sim",
			Type:   SensorSimulated,
			Metric: "temperature",
			Retry:  RetryConfig{MaxAttempts: 1},
		}},
		Communication: CommunicationConfig{Type: CommConsole},
		Storage:       StorageConfig{Type: "none"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestNormalizeMQTTDelivery(t *testing.T) {
	tests := []struct {
		name         string
		yaml         string
		wantQoS      int
		wantRetained bool
	}{
		{"defaults", "communication:\n  type: mqtt\n  broker: tcp://b:1883\n", 1, true},
		{"explicit", "communication:\n  type: mqtt\n  broker: tcp://b:1883\n  qos: 0\n  retained: false\n", 0, false},
		{"qos only", "communication:\n  type: mqtt\n  broker: tcp://b:1883\n  qos: 2\n", 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			if err := Validate(cfg); err != nil {
				t.Fatal(err)
			}
			Normalize(cfg)
			c := cfg.Communication
			if c.QoS == nil || *c.QoS != tt.wantQoS {
				t.Errorf("qos = %v, want %d", c.QoS, tt.wantQoS)
			}
			if c.Retained == nil || *c.Retained != tt.wantRetained {
				t.Errorf("retained = %v, want %v", c.Retained, tt.wantRetained)
			}
			if c.EffectiveQoS() != tt.wantQoS || c.EffectiveRetained() != tt.wantRetained {
				t.Errorf("effective = %d/%v", c.EffectiveQoS(), c.EffectiveRetained())
			}
		})
	}
}

func TestNormalizeKafka(t *testing.T) {
	cfg := &Config{
		Gateway:       GatewayConfig{Name: "edge-1"},
		Communication: CommunicationConfig{Type: "Kafka", Brokers: []string{"k:9092"}, CommandTopic: "cmds"},
	}
	Normalize(cfg)
	c := cfg.Communication
	if c.Type != CommKafka || c.Topic != DefaultKafkaTopic || c.GroupID != "edge-1" {
		t.Errorf("communication = %+v", c)
	}
}

func TestNormalizeNil(t *testing.T) {
	Normalize(nil)
}
