// Package debounce filters a noisy digital input into a stable state.
// Time is always injected; the package never sleeps or reads a clock.
package debounce

import "time"

// Filter tracks one digital channel and reports a state only after it has been
// held for the debounce duration.
type Filter struct {
	duration time.Duration

	stable       bool
	pending      bool
	hasPending   bool
	pendingSince time.Time
	baselined    bool
}

// New creates a filter with the given debounce duration. A zero duration
// passes every sample through once it has been seen.
func New(duration time.Duration) *Filter {
	return &Filter{duration: duration}
}

// Process feeds one sample taken at now. It returns true when the stable state
// changed with this sample. The first stable state (baseline) is not a change.
func (f *Filter) Process(state bool, now time.Time) bool {
	if !f.baselined {
		if !f.hasPending || f.pending != state {
			// Start observing, or restart if the state moved during baseline
			f.pending = state
			f.hasPending = true
			f.pendingSince = now
		}
		if now.Sub(f.pendingSince) >= f.duration {
			f.stable = state
			f.baselined = true
			f.hasPending = false
		}
		return false
	}

	if state == f.stable {
		f.hasPending = false
		return false
	}

	if !f.hasPending || f.pending != state {
		f.pending = state
		f.hasPending = true
		f.pendingSince = now
	}

	if now.Sub(f.pendingSince) >= f.duration {
		f.stable = state
		f.hasPending = false
		return true
	}
	return false
}

// Stable returns the debounced state and whether a baseline exists yet.
func (f *Filter) Stable() (state bool, baselined bool) {
	return f.stable, f.baselined
}
