// Package retry wraps fallible operations in a bounded, fixed-backoff retry.
// It is orthogonal to the gateway loop and the decoders; compose it around a
// single read before that read reaches the loop.
package retry

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sweeney/sensor-gateway/internal/device"
	"go.uber.org/zap"
)

// Policy bounds a retry.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first. Values
	// below 1 are treated as 1.
	MaxAttempts int
	// Backoff is the fixed pause between attempts.
	Backoff time.Duration
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Backoff), uint64(p.attempts()-1))
	return backoff.WithContext(b, ctx)
}

// Do runs op until it succeeds or the policy is exhausted, and returns the
// result of the last attempt. Cancelling ctx stops further attempts.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	return backoff.RetryWithData(func() (T, error) {
		return op(ctx)
	}, p.backOff(ctx))
}

// DoOr is Do with a sentinel: when every attempt fails it returns fallback and
// the last error.
func DoOr[T any](ctx context.Context, p Policy, fallback T, op func(ctx context.Context) (T, error)) (T, error) {
	v, err := Do(ctx, p, op)
	if err != nil {
		return fallback, err
	}
	return v, nil
}

// Sensor retries a sensor's Read under a policy.
type Sensor struct {
	inner    device.Sensor
	policy   Policy
	fallback *device.Reading
	log      *zap.Logger
}

// SensorOption configures a retrying Sensor.
type SensorOption func(*Sensor)

// WithFallback makes an exhausted retry return r instead of an error.
func WithFallback(r device.Reading) SensorOption {
	return func(s *Sensor) { s.fallback = &r }
}

// WithLogger logs every failed attempt at debug level.
func WithLogger(l *zap.Logger) SensorOption {
	return func(s *Sensor) {
		if l != nil {
			s.log = l
		}
	}
}

// WrapSensor returns inner guarded by policy.
func WrapSensor(inner device.Sensor, p Policy, opts ...SensorOption) *Sensor {
	s := &Sensor{inner: inner, policy: p, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Read reads the inner sensor with retries.
func (s *Sensor) Read(ctx context.Context) (device.Reading, error) {
	attempt := 0
	r, err := Do(ctx, s.policy, func(ctx context.Context) (device.Reading, error) {
		attempt++
		r, err := s.inner.Read(ctx)
		if err != nil {
			s.log.Debug("read attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", s.policy.attempts()),
				zap.Error(err))
		}
		return r, err
	})
	if err == nil {
		return r, nil
	}
	if s.fallback != nil {
		s.log.Warn("read failed, using fallback", zap.Int("attempts", attempt), zap.Error(err))
		return *s.fallback, nil
	}
	return device.Reading{}, fmt.Errorf("after %d attempts: %w", attempt, err)
}

// Close closes the wrapped sensor if it holds resources.
func (s *Sensor) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap returns the wrapped sensor.
func (s *Sensor) Unwrap() device.Sensor {
	return s.inner
}
