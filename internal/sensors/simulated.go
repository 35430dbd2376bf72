package sensors

import (
	"context"
	"math/rand"
	"sync"

	"github.com/sweeney/sensor-gateway/internal/device"
	"github.com/sweeney/sensor-gateway/internal/dht"
)

// Simulated ranges.
const (
	simTempMin = 18.0
	simTempMax = 30.0
	simHumMin  = 40.0
	simHumMax  = 80.0
)

// Simulated produces random temperature and humidity values for running the
// gateway without hardware.
type Simulated struct {
	mu     sync.Mutex
	rng    *rand.Rand
	metric Metric
}

// NewSimulated creates a simulated sensor seeded with seed.
func NewSimulated(metric Metric, seed int64) *Simulated {
	if metric == "" {
		metric = MetricTemperature
	}
	return &Simulated{rng: rand.New(rand.NewSource(seed)), metric: metric}
}

// Read returns a new random value.
func (s *Simulated) Read(ctx context.Context) (device.Reading, error) {
	if err := ctx.Err(); err != nil {
		return device.Reading{}, err
	}
	s.mu.Lock()
	m := dht.Measurement{
		Temperature: simTempMin + s.rng.Float64()*(simTempMax-simTempMin),
		Humidity:    simHumMin + s.rng.Float64()*(simHumMax-simHumMin),
	}
	s.mu.Unlock()

	switch s.metric {
	case MetricHumidity:
		return device.Float(m.Humidity), nil
	case MetricText:
		return device.Text(m.String()), nil
	default:
		return device.Float(m.Temperature), nil
	}
}
