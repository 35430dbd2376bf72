package dht

import (
	"fmt"
	"time"

	"github.com/sweeney/sensor-gateway/internal/device"
	"github.com/sweeney/sensor-gateway/internal/pin"
)

// Protocol timings.
const (
	// DefaultRequestHold is how long the host holds the line low to wake the sensor.
	DefaultRequestHold = 20 * time.Millisecond
	// DefaultReadyHold is the high pulse before the host releases the line.
	DefaultReadyHold = 30 * time.Microsecond
	// DefaultTimeout bounds every single level transition.
	DefaultTimeout = 100 * time.Microsecond
	// DefaultBitThreshold separates a 0 (~26 µs high) from a 1 (~70 µs high).
	DefaultBitThreshold = 40 * time.Microsecond
	// DefaultPollStep is the pause between level samples while waiting.
	DefaultPollStep = time.Microsecond
)

// Decoder runs the DHT exchange over one pin. It keeps no state between
// attempts: every Read re-runs handshake, capture, checksum and decode.
// A Decoder owns its pin exclusively and is not safe for concurrent use.
type Decoder struct {
	pin   pin.Pin
	clock Clock

	requestHold  time.Duration
	readyHold    time.Duration
	timeout      time.Duration
	bitThreshold time.Duration
	pollStep     time.Duration
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(d *Decoder) { d.clock = c }
}

// WithTimeout sets the per-transition timeout.
func WithTimeout(t time.Duration) Option {
	return func(d *Decoder) { d.timeout = t }
}

// WithBitThreshold sets the high-pulse width above which a bit is 1.
func WithBitThreshold(t time.Duration) Option {
	return func(d *Decoder) { d.bitThreshold = t }
}

// WithHandshake sets the request (low) and ready (high) hold times.
func WithHandshake(request, ready time.Duration) Option {
	return func(d *Decoder) {
		d.requestHold = request
		d.readyHold = ready
	}
}

// NewDecoder creates a decoder on p.
func NewDecoder(p pin.Pin, opts ...Option) *Decoder {
	d := &Decoder{
		pin:          p,
		clock:        RealClock{},
		requestHold:  DefaultRequestHold,
		readyHold:    DefaultReadyHold,
		timeout:      DefaultTimeout,
		bitThreshold: DefaultBitThreshold,
		pollStep:     DefaultPollStep,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// StartHandshake pulls the line low for the request hold, high for the ready
// hold, then switches to input so the sensor can answer.
func (d *Decoder) StartHandshake() error {
	if err := d.pin.SetMode(pin.Output); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if err := d.pin.Write(pin.Low); err != nil {
		return fmt.Errorf("handshake request: %w", err)
	}
	d.clock.Sleep(d.requestHold)
	if err := d.pin.Write(pin.High); err != nil {
		return fmt.Errorf("handshake ready: %w", err)
	}
	d.clock.Sleep(d.readyHold)
	if err := d.pin.SetMode(pin.Input); err != nil {
		return fmt.Errorf("handshake listen: %w", err)
	}
	return nil
}

// AwaitLevel polls the line until it shows level or timeout elapses. It returns
// as soon as the level is observed. A read error counts as a miss.
func (d *Decoder) AwaitLevel(level bool, timeout time.Duration) bool {
	start := d.clock.Now()
	for {
		v, err := d.pin.Read()
		if err != nil {
			return false
		}
		if v == level {
			return true
		}
		if d.clock.Now().Sub(start) > timeout {
			return false
		}
		d.clock.Sleep(d.pollStep)
	}
}

// CaptureFrame waits for the sensor's low/high/low preamble and then samples
// 40 bits, most significant bit first. Any missed transition aborts the whole
// capture; a partial frame is never returned.
func (d *Decoder) CaptureFrame() (Frame, error) {
	var f Frame

	sync := [...]struct {
		level bool
		name  string
	}{
		{pin.Low, "response low"},
		{pin.High, "response high"},
		{pin.Low, "data start"},
	}
	for _, s := range sync {
		if !d.AwaitLevel(s.level, d.timeout) {
			return Frame{}, fmt.Errorf("dht: %w: waiting for %s", device.ErrTimeout, s.name)
		}
	}

	for i := 0; i < len(f)*8; i++ {
		if !d.AwaitLevel(pin.High, d.timeout) {
			return Frame{}, fmt.Errorf("dht: %w: bit %d rising edge", device.ErrTimeout, i)
		}
		rose := d.clock.Now()
		if !d.AwaitLevel(pin.Low, d.timeout) {
			return Frame{}, fmt.Errorf("dht: %w: bit %d falling edge", device.ErrTimeout, i)
		}
		if d.clock.Now().Sub(rose) > d.bitThreshold {
			f[i/8] |= 1 << uint(7-i%8)
		}
	}
	return f, nil
}

// Read runs one full exchange and decodes it under family.
func (d *Decoder) Read(family Family) (Measurement, error) {
	if err := d.StartHandshake(); err != nil {
		return Measurement{}, err
	}
	f, err := d.CaptureFrame()
	if err != nil {
		return Measurement{}, err
	}
	if err := ValidateChecksum(f); err != nil {
		return Measurement{}, err
	}
	return Decode(f, family)
}
