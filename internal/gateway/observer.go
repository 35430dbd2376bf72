package gateway

import (
	"time"

	"github.com/sweeney/sensor-gateway/internal/device"
)

// Observer is notified of every step of a cycle. Hooks run synchronously on
// the loop goroutine and must not block.
type Observer interface {
	ReadDone(sensor string, r device.Reading, err error, took time.Duration)
	SendDone(sensor string, resp device.Response, err error)
	ExecuteDone(actuator, sensor string, err error)
	SaveDone(sensor string, err error)
	CycleDone(c Cycle)
}

// NopObserver implements Observer with no-op hooks. Embed it to implement a
// subset.
type NopObserver struct{}

func (NopObserver) ReadDone(string, device.Reading, error, time.Duration) {}
func (NopObserver) SendDone(string, device.Response, error)               {}
func (NopObserver) ExecuteDone(string, string, error)                     {}
func (NopObserver) SaveDone(string, error)                                {}
func (NopObserver) CycleDone(Cycle)                                       {}

// Cycle summarizes one pass over the registered sensors.
type Cycle struct {
	Seq      uint64
	Started  time.Time
	Duration time.Duration

	Reads         int
	ReadErrors    int
	SendErrors    int
	ExecuteErrors int
	SaveErrors    int

	// Interrupted is set when cancellation stopped the cycle before every
	// sensor was processed.
	Interrupted bool
}

// Failed reports whether any step of the cycle failed.
func (c Cycle) Failed() bool {
	return c.ReadErrors+c.SendErrors+c.ExecuteErrors+c.SaveErrors > 0
}
