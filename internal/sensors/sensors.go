// Package sensors holds the concrete Sensor implementations the gateway can
// poll: DHT family over a raw pin, DS18B20 via the kernel one-wire driver,
// MH-RD rain detector, Modbus registers and a simulated source.
package sensors

import (
	"fmt"
	"strings"

	"github.com/sweeney/sensor-gateway/internal/device"
)

// Metric selects which value a multi-value sensor reports.
type Metric string

// Metrics.
const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricText        Metric = "text"
)

// ParseMetric parses a metric name. The empty string means temperature.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MetricTemperature, nil
	case MetricTemperature, MetricHumidity, MetricText:
		return m, nil
	default:
		return "", fmt.Errorf("unknown metric %q: %w", s, device.ErrUnsupported)
	}
}

// Unit returns the unit a metric is reported in.
func (m Metric) Unit() string {
	switch m {
	case MetricTemperature:
		return "°C"
	case MetricHumidity:
		return "%"
	default:
		return ""
	}
}
