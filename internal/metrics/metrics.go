// Package metrics exports gateway activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sweeney/sensor-gateway/internal/device"
	"github.com/sweeney/sensor-gateway/internal/gateway"
)

const namespace = "sensor_gateway"

// Result label values.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Collector implements gateway.Observer.
type Collector struct {
	reads         *prometheus.CounterVec
	readDuration  *prometheus.HistogramVec
	lastValue     *prometheus.GaugeVec
	sends         *prometheus.CounterVec
	executes      *prometheus.CounterVec
	saves         *prometheus.CounterVec
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New creates a collector and registers it with reg. A nil reg uses a fresh
// registry.
func New(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Sensor reads by sensor and result.",
		}, []string{"sensor", "result"}),
		readDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "read_duration_seconds",
			Help:      "Time spent in a sensor read.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"sensor"}),
		lastValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_value",
			Help:      "Last numeric (or boolean as 0/1) reading per sensor.",
		}, []string{"sensor"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Communicator sends by result.",
		}, []string{"result"}),
		executes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executes_total",
			Help:      "Actuator executions by actuator and result.",
		}, []string{"actuator", "result"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Storage saves by result.",
		}, []string{"result"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed polling cycles.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full polling cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		gatherer: reg,
	}

	for _, m := range []prometheus.Collector{
		c.reads, c.readDuration, c.lastValue, c.sends, c.executes, c.saves, c.cycles, c.cycleDuration,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}

// ReadDone implements gateway.Observer.
func (c *Collector) ReadDone(sensor string, r device.Reading, err error, took time.Duration) {
	c.reads.WithLabelValues(sensor, result(err)).Inc()
	c.readDuration.WithLabelValues(sensor).Observe(took.Seconds())
	if err != nil {
		return
	}
	if v, ok := r.Number(); ok {
		c.lastValue.WithLabelValues(sensor).Set(v)
	} else if b, ok := r.Bool(); ok {
		v := 0.0
		if b {
			v = 1
		}
		c.lastValue.WithLabelValues(sensor).Set(v)
	}
}

// SendDone implements gateway.Observer.
func (c *Collector) SendDone(sensor string, resp device.Response, err error) {
	c.sends.WithLabelValues(result(err)).Inc()
}

// ExecuteDone implements gateway.Observer.
func (c *Collector) ExecuteDone(actuator, sensor string, err error) {
	c.executes.WithLabelValues(actuator, result(err)).Inc()
}

// SaveDone implements gateway.Observer.
func (c *Collector) SaveDone(sensor string, err error) {
	c.saves.WithLabelValues(result(err)).Inc()
}

// CycleDone implements gateway.Observer.
func (c *Collector) CycleDone(cy gateway.Cycle) {
	c.cycles.Inc()
	c.cycleDuration.Observe(cy.Duration.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

var _ gateway.Observer = (*Collector)(nil)
