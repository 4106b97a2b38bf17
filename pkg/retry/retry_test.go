package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
)

func TestExponentialSchedule(t *testing.T) {
	schedule := &Exponential{
		Base:   100 * time.Millisecond,
		Cap:    1 * time.Second,
		Factor: 2.0,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt"},
		{1, 100 * time.Millisecond, "First retry"},
		{2, 200 * time.Millisecond, "Second retry"},
		{3, 400 * time.Millisecond, "Third retry"},
		{4, 800 * time.Millisecond, "Fourth retry"},
		{5, 1 * time.Second, "Fifth retry (capped)"},
		{6, 1 * time.Second, "Sixth retry (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := schedule.Delay(test.attempt); delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestExponentialScheduleSpread(t *testing.T) {
	value := 0.0
	schedule := &Exponential{
		Base:   100 * time.Millisecond,
		Cap:    1 * time.Second,
		Factor: 2.0,
		Spread: 0.25,
		Float:  func() float64 { return value },
	}

	if delay := schedule.Delay(2); delay != 150*time.Millisecond {
		t.Errorf("Expected lower bound 150ms, got %v", delay)
	}
	value = 0.5
	if delay := schedule.Delay(2); delay != 200*time.Millisecond {
		t.Errorf("Expected midpoint 200ms, got %v", delay)
	}

	schedule.Float = nil
	for i := 0; i < 10; i++ {
		if delay := schedule.Delay(2); delay < 150*time.Millisecond || delay > 250*time.Millisecond {
			t.Errorf("Delay %v outside spread range", delay)
		}
	}
}

func TestFixedSchedule(t *testing.T) {
	schedule := Fixed{Interval: 50 * time.Millisecond}
	if delay := schedule.Delay(0); delay != 0 {
		t.Errorf("Expected no delay before the first attempt, got %v", delay)
	}
	if delay := schedule.Delay(7); delay != 50*time.Millisecond {
		t.Errorf("Expected 50ms, got %v", delay)
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Schedule:    Fixed{Interval: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
	}

	if err := Do(context.Background(), op, cfg); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	retries := 0
	persistent := errors.New("persistent error")
	op := func() error {
		attempts++
		return persistent
	}

	cfg := &Config{
		MaxAttempts: 3,
		Schedule:    Fixed{Interval: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		OnRetry:     func(int, error, time.Duration) { retries++ },
	}

	err := Do(context.Background(), op, cfg)
	if !errors.Is(err, persistent) {
		t.Errorf("Expected wrapped persistent error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if retries != 2 {
		t.Errorf("Expected 2 waits between 3 attempts, got %d", retries)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	notFound := errs.Network("fetch stream", "http://x/a.png", 404, errors.New("not found"))

	op := func() error {
		attempts++
		return notFound
	}

	cfg := &Config{
		MaxAttempts: 5,
		Schedule:    Fixed{Interval: 10 * time.Millisecond},
		RetryIf:     DefaultRetryIf,
	}

	err := Do(context.Background(), op, cfg)
	if err != notFound {
		t.Errorf("Expected not found error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for 404), got %d", attempts)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	op := func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}

	cfg := &Config{
		MaxAttempts: 5,
		Schedule:    Fixed{Interval: 100 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
	}

	err := Do(ctx, op, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancellation error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts before cancellation, got %d", attempts)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), true},
		{"context canceled", context.Canceled, false},
		{"canceled record", errs.Canceled(nil), false},
		{"run deadline", context.DeadlineExceeded, false},
		{"request timeout", errs.Network("fetch stream", "u", 0, fmt.Errorf("read body: %w", context.DeadlineExceeded)), true},
		{"connection refused", errs.Network("fetch stream", "u", 0, errors.New("refused")), true},
		{"server error", errs.Network("fetch stream", "u", 503, errors.New("unavailable")), true},
		{"too many requests", errs.Network("fetch stream", "u", 429, errors.New("slow down")), true},
		{"not found", errs.Network("fetch stream", "u", 404, errors.New("gone")), false},
		{"listing 502", errs.Fetch("u", errs.Network("fetch text", "u", 502, errors.New("bad gateway"))), true},
		{"listing 403", errs.Fetch("u", errs.Network("fetch text", "u", 403, errors.New("forbidden"))), false},
		{"storage", errs.Storage("write image", "/tmp", errors.New("disk full")), false},
		{"parse", errs.Parse("parse listing", errors.New("bad")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.expected {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second}, nil)

	if cfg.MaxAttempts != 3 {
		t.Errorf("Expected 3 attempts for 2 retries, got %d", cfg.MaxAttempts)
	}
	schedule, ok := cfg.Schedule.(*Exponential)
	if !ok {
		t.Fatalf("Expected an exponential schedule, got %T", cfg.Schedule)
	}
	if schedule.Base != time.Second || schedule.Cap != 10*time.Second {
		t.Errorf("Unexpected schedule bounds: %v..%v", schedule.Base, schedule.Cap)
	}
	if cfg.Logger == nil {
		t.Error("Expected a default logger")
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}

	cfg := &Config{
		MaxAttempts: 3,
		Schedule:    Fixed{Interval: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
	}

	result, err := DoWithResult(context.Background(), op, cfg)
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got '%s'", result)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}
