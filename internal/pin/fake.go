package pin

import (
	"errors"
	"time"
)

// Segment is one stretch of a scripted waveform: the line holds Level for Duration.
type Segment struct {
	Level    bool
	Duration time.Duration
}

// FakePin is a test double that replays a scripted waveform against a virtual
// clock. The script restarts every time the line switches to input mode, which
// is the moment a real sensor starts answering. Time only moves through Sleep,
// so FakePin also serves as the decoder's clock.
type FakePin struct {
	// Segments is the waveform replayed after each switch to input.
	Segments []Segment

	// Idle is the level once Segments are exhausted. NewFakePin sets it high
	// to match a pulled-up line.
	Idle bool

	// Writes records every level written, in order.
	Writes []bool

	// Modes records every mode switch, in order.
	Modes []Mode

	// Closed tracks if Close was called.
	Closed bool

	// ReadError, WriteError and ModeError, if set, are returned by the matching call.
	ReadError  error
	WriteError error
	ModeError  error

	// Reads counts Read calls.
	Reads int

	now    time.Time
	origin time.Time
	mode   Mode
	driven bool
}

// Epoch is the virtual time a FakePin starts at.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// NewFakePin creates an input-mode FakePin whose script starts immediately.
func NewFakePin(segments ...Segment) *FakePin {
	return &FakePin{
		Segments: segments,
		Idle:     High,
		now:      Epoch,
		origin:   Epoch,
	}
}

// SetMode records the switch and restarts the script on entering input mode.
func (f *FakePin) SetMode(m Mode) error {
	if f.ModeError != nil {
		return f.ModeError
	}
	f.Modes = append(f.Modes, m)
	if m == Input && f.mode != Input {
		f.origin = f.now
	}
	f.mode = m
	return nil
}

// Read returns the scripted level at the current virtual time, or the driven
// level while in output mode.
func (f *FakePin) Read() (bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if f.mode == Output {
		return f.driven, nil
	}
	return f.levelAt(f.now.Sub(f.origin)), nil
}

// Write records the level. Writing in input mode is an error, as on hardware.
func (f *FakePin) Write(level bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if f.mode != Output {
		return errors.New("fake pin: write in input mode")
	}
	f.Writes = append(f.Writes, level)
	f.driven = level
	return nil
}

// Close marks the pin as closed.
func (f *FakePin) Close() error {
	f.Closed = true
	return nil
}

// Now returns the virtual time.
func (f *FakePin) Now() time.Time {
	return f.now
}

// Sleep advances the virtual time.
func (f *FakePin) Sleep(d time.Duration) {
	if d > 0 {
		f.now = f.now.Add(d)
	}
}

// Hold replaces the script with a constant level starting now.
func (f *FakePin) Hold(level bool) {
	f.Segments = nil
	f.Idle = level
	f.origin = f.now
}

// Reset rewinds the script and clears recorded activity.
func (f *FakePin) Reset() {
	f.now = Epoch
	f.origin = Epoch
	f.mode = Input
	f.driven = false
	f.Writes = nil
	f.Modes = nil
	f.Reads = 0
	f.Closed = false
}

func (f *FakePin) levelAt(elapsed time.Duration) bool {
	var start time.Duration
	for _, s := range f.Segments {
		if elapsed < start+s.Duration {
			return s.Level
		}
		start += s.Duration
	}
	return f.Idle
}

// Standard DHT response timings.
const (
	dhtRelease  = 20 * time.Microsecond
	dhtPreamble = 80 * time.Microsecond
	dhtBitLow   = 50 * time.Microsecond
	dhtZeroHigh = 26 * time.Microsecond
	dhtOneHigh  = 70 * time.Microsecond
)

// DHTResponse builds the waveform a DHT sensor produces after the host releases
// the line: a short high, the 80 µs low/high preamble, then 40 bits (50 µs low
// followed by a 26 µs or 70 µs high, most significant bit first) and a final low.
func DHTResponse(data [5]byte) []Segment {
	segs := []Segment{
		{Level: High, Duration: dhtRelease},
		{Level: Low, Duration: dhtPreamble},
		{Level: High, Duration: dhtPreamble},
	}
	for _, b := range data {
		for bit := 7; bit >= 0; bit-- {
			high := dhtZeroHigh
			if b&(1<<uint(bit)) != 0 {
				high = dhtOneHigh
			}
			segs = append(segs,
				Segment{Level: Low, Duration: dhtBitLow},
				Segment{Level: High, Duration: high},
			)
		}
	}
	return append(segs, Segment{Level: Low, Duration: dhtBitLow})
}
