package sensors

import (
	"context"
	"fmt"

	"github.com/sweeney/sensor-gateway/internal/device"
	"github.com/sweeney/sensor-gateway/internal/dht"
	"github.com/sweeney/sensor-gateway/internal/pin"
)

// DHT reads a DHT11/DHT22 on a raw pin and reports one metric.
type DHT struct {
	pin     pin.Pin
	decoder *dht.Decoder
	family  dht.Family
	metric  Metric
}

// NewDHT creates a DHT sensor on p. The sensor owns p and closes it on Close.
func NewDHT(p pin.Pin, family dht.Family, metric Metric, opts ...dht.Option) (*DHT, error) {
	if p == nil {
		return nil, fmt.Errorf("dht: no pin: %w", device.ErrInitialization)
	}
	switch family {
	case dht.DHT11, dht.DHT22:
	default:
		return nil, fmt.Errorf("dht: family %v: %w", family, device.ErrUnsupported)
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, fmt.Errorf("dht: %w", err)
	}
	if metric == "" {
		metric = MetricTemperature
	}
	return &DHT{
		pin:     p,
		decoder: dht.NewDecoder(p, opts...),
		family:  family,
		metric:  metric,
	}, nil
}

// Read runs one full exchange with the sensor.
func (s *DHT) Read(ctx context.Context) (device.Reading, error) {
	if err := ctx.Err(); err != nil {
		return device.Reading{}, err
	}
	m, err := s.decoder.Read(s.family)
	if err != nil {
		return device.Reading{}, fmt.Errorf("%s: %w", s.family, err)
	}
	switch s.metric {
	case MetricHumidity:
		return device.Float(m.Humidity), nil
	case MetricText:
		return device.Text(m.String()), nil
	default:
		return device.Float(m.Temperature), nil
	}
}

// Close releases the pin.
func (s *DHT) Close() error {
	return s.pin.Close()
}
