package throttle

import (
	"context"
	"math/rand/v2"
	"time"
)

// Limiter caps the request rate independently of the jitter
type Limiter interface {
	// Allow reports whether a request may proceed right now
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the limiter to its initial state
	Reset()
}

// Throttle waits a random delay between requests.
type Throttle struct {
	int63n  func(n int64) int64
	limiter Limiter
}

// Option configures a Throttle
type Option func(*Throttle)

// WithRand replaces the random source. f must return a value in [0, n).
func WithRand(f func(n int64) int64) Option {
	return func(t *Throttle) {
		if f != nil {
			t.int63n = f
		}
	}
}

// WithLimiter adds a hard rate cap applied after the random delay
func WithLimiter(l Limiter) Option {
	return func(t *Throttle) {
		t.limiter = l
	}
}

// New creates a Throttle backed by math/rand/v2
func New(opts ...Option) *Throttle {
	t := &Throttle{int63n: rand.Int64N}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Jitter draws a delay uniformly from [0, max). It returns 0 when max <= 0.
func (t *Throttle) Jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(t.int63n(int64(max)))
}

// Wait sleeps for Jitter(max) and then for the limiter, if any.
// The only error it returns is ctx.Err().
func (t *Throttle) Wait(ctx context.Context, max time.Duration) error {
	if err := Sleep(ctx, t.Jitter(max)); err != nil {
		return err
	}
	if t.limiter != nil {
		return t.limiter.Wait(ctx)
	}
	return nil
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PerMinute returns a limiter allowing n requests per minute, or nil when n <= 0.
func PerMinute(n int) Limiter {
	if n <= 0 {
		return nil
	}
	return NewTokenBucket(n, time.Minute)
}
