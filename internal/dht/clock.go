package dht

import "time"

// Clock is the decoder's time source. The real clock spins for short waits;
// FakePin implements Clock with virtual time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// spinThreshold is the longest wait that busy-loops instead of yielding to the
// scheduler; time.Sleep overshoots by tens of microseconds.
const spinThreshold = time.Millisecond

// RealClock is the wall clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// Sleep blocks for d, busy-waiting when d is below a millisecond.
func (RealClock) Sleep(d time.Duration) {
	if d >= spinThreshold {
		time.Sleep(d)
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
