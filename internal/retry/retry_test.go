package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sweeney/sensor-gateway/internal/device"
)

// flaky fails the first n calls, then returns its call number.
type flaky struct {
	failures int
	calls    int
}

func (f *flaky) op(ctx context.Context) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, fmt.Errorf("attempt %d: %w", f.calls, device.ErrTimeout)
	}
	return f.calls, nil
}

func TestDoSucceedsWithinAttempts(t *testing.T) {
	f := &flaky{failures: 2}

	got, err := Do(context.Background(), Policy{MaxAttempts: 3}, f.op)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3 {
		t.Errorf("expected result of third attempt, got %d", got)
	}
	if f.calls != 3 {
		t.Errorf("expected 3 calls, got %d", f.calls)
	}
}

func TestDoReturnsLastFailure(t *testing.T) {
	f := &flaky{failures: 2}

	_, err := Do(context.Background(), Policy{MaxAttempts: 2}, f.op)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "attempt 2: timeout" {
		t.Errorf("expected failure from the second attempt, got %q", err)
	}
	if !errors.Is(err, device.ErrTimeout) {
		t.Errorf("error kind lost: %v", err)
	}
	if f.calls != 2 {
		t.Errorf("expected 2 calls, got %d", f.calls)
	}
}

func TestDoSingleAttempt(t *testing.T) {
	for _, n := range []int{0, 1} {
		f := &flaky{failures: 1}
		if _, err := Do(context.Background(), Policy{MaxAttempts: n}, f.op); err == nil {
			t.Errorf("MaxAttempts=%d: expected error", n)
		}
		if f.calls != 1 {
			t.Errorf("MaxAttempts=%d: expected 1 call, got %d", n, f.calls)
		}
	}
}

func TestDoWaitsBackoff(t *testing.T) {
	f := &flaky{failures: 1}
	start := time.Now()
	if _, err := Do(context.Background(), Policy{MaxAttempts: 2, Backoff: 20 * time.Millisecond}, f.op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected at least one backoff pause, took %v", elapsed)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &flaky{failures: 100}
	op := func(ctx context.Context) (int, error) {
		cancel()
		return f.op(ctx)
	}

	_, err := Do(ctx, Policy{MaxAttempts: 50, Backoff: time.Millisecond}, op)
	if err == nil {
		t.Fatal("expected error")
	}
	if f.calls != 1 {
		t.Errorf("expected retries to stop after cancel, got %d calls", f.calls)
	}
}

func TestDoOrFallback(t *testing.T) {
	f := &flaky{failures: 5}
	got, err := DoOr(context.Background(), Policy{MaxAttempts: 2}, -1, f.op)
	if err == nil {
		t.Error("expected last error alongside the fallback")
	}
	if got != -1 {
		t.Errorf("expected fallback -1, got %d", got)
	}
}

func TestWrapSensor(t *testing.T) {
	calls := 0
	inner := device.SensorFunc(func(ctx context.Context) (device.Reading, error) {
		calls++
		if calls < 3 {
			return device.Reading{}, device.ErrInvalidData
		}
		return device.Float(21.5), nil
	})

	r, err := WrapSensor(inner, Policy{MaxAttempts: 3}).Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := r.Float(); !ok || v != 21.5 {
		t.Errorf("unexpected reading %v", r)
	}
}

func TestWrapSensorExhausted(t *testing.T) {
	inner := device.SensorFunc(func(ctx context.Context) (device.Reading, error) {
		return device.Reading{}, device.ErrTimeout
	})

	_, err := WrapSensor(inner, Policy{MaxAttempts: 2}).Read(context.Background())
	if !errors.Is(err, device.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	r, err := WrapSensor(inner, Policy{MaxAttempts: 2}, WithFallback(device.Text("unavailable"))).Read(context.Background())
	if err != nil {
		t.Fatalf("fallback should suppress the error, got %v", err)
	}
	if s, _ := r.Text(); s != "unavailable" {
		t.Errorf("expected fallback reading, got %v", r)
	}
}
