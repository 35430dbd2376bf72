package pin

import (
	"errors"
	"testing"
	"time"
)

func TestFakePinReplaysSegments(t *testing.T) {
	f := NewFakePin(
		Segment{Level: Low, Duration: 10 * time.Microsecond},
		Segment{Level: High, Duration: 5 * time.Microsecond},
	)

	checks := []struct {
		at   time.Duration
		want bool
	}{
		{0, Low},
		{9 * time.Microsecond, Low},
		{10 * time.Microsecond, High},
		{14 * time.Microsecond, High},
		{15 * time.Microsecond, High}, // idle
		{time.Second, High},
	}

	var elapsed time.Duration
	for _, c := range checks {
		f.Sleep(c.at - elapsed)
		elapsed = c.at
		got, err := f.Read()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Errorf("at %v: got %v, want %v", c.at, got, c.want)
		}
	}
}

func TestFakePinScriptRestartsOnInput(t *testing.T) {
	f := NewFakePin(Segment{Level: Low, Duration: 10 * time.Microsecond})
	f.Sleep(time.Millisecond)

	if err := f.SetMode(Output); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Write(Low); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := f.Read(); got != Low {
		t.Errorf("output mode should read back driven level")
	}
	if err := f.SetMode(Input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := f.Read()
	if got != Low {
		t.Errorf("script should restart on input, got %v", got)
	}
	if len(f.Modes) != 2 || f.Modes[0] != Output || f.Modes[1] != Input {
		t.Errorf("unexpected modes: %v", f.Modes)
	}
}

func TestFakePinWriteRequiresOutput(t *testing.T) {
	f := NewFakePin()
	if err := f.Write(High); err == nil {
		t.Error("expected error writing in input mode")
	}
}

func TestFakePinErrors(t *testing.T) {
	f := NewFakePin()
	f.ReadError = errors.New("simulated error")

	_, err := f.Read()
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakePinHold(t *testing.T) {
	f := NewFakePin()
	f.Hold(Low)
	if got, _ := f.Read(); got != Low {
		t.Errorf("expected held low level")
	}
	f.Sleep(time.Hour)
	if got, _ := f.Read(); got != Low {
		t.Errorf("held level should not expire")
	}
}

func TestFakePinClose(t *testing.T) {
	f := NewFakePin()
	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestDHTResponseShape(t *testing.T) {
	segs := DHTResponse([5]byte{0x80, 0, 0, 0, 0x80})

	// release + 2 preamble + 40 bits * 2 + trailing low
	if len(segs) != 3+80+1 {
		t.Fatalf("expected %d segments, got %d", 3+80+1, len(segs))
	}
	if segs[4].Duration != dhtOneHigh {
		t.Errorf("first bit of 0x80 should be long, got %v", segs[4].Duration)
	}
	if segs[6].Duration != dhtZeroHigh {
		t.Errorf("second bit of 0x80 should be short, got %v", segs[6].Duration)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("sysfs", "", 4); err == nil {
		t.Error("expected error for unknown backend")
	}
}
