package netpulse

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/netpulse/clock"
)

const (
	defaultInterval     = 5 * time.Second
	defaultFetchTimeout = 10 * time.Second
	defaultPollerName   = "poller"
)

// pollerConfig holds mutable state during Poller construction.
type pollerConfig struct {
	name         string
	interval     time.Duration
	initialDelay time.Duration
	timeout      time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	// onChange holds func(Result[T]) values; NewPoller checks the type.
	onChange []any
}

// PollerOption configures a [Poller] during construction.
//
// Built-in options: [WithName], [WithInterval], [WithInitialDelay],
// [WithFetchTimeout], [WithClock], [WithPollerLogger], [WithOnChange].
type PollerOption func(*pollerConfig) error

// WithName sets the name used in logs and metrics labels.
func WithName(name string) PollerOption {
	return func(cfg *pollerConfig) error {
		if name == "" {
			return errors.New("poller name cannot be empty")
		}
		cfg.name = name
		return nil
	}
}

// WithInterval sets the time between ticks. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) PollerOption {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithInitialDelay postpones the first fetch after each Start by d. The
// default of zero fetches immediately.
//
// Returns an error if the duration is negative.
func WithInitialDelay(d time.Duration) PollerOption {
	return func(cfg *pollerConfig) error {
		if d < 0 {
			return errors.New("initial delay cannot be negative")
		}
		cfg.initialDelay = d
		return nil
	}
}

// WithFetchTimeout bounds each attempt. Defaults to 10 seconds. An attempt
// that exceeds it fails with a [*TransportError].
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) PollerOption {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithClock replaces the timer capability. Tests pass a [clock.Fake].
func WithClock(c clock.Clock) PollerOption {
	return func(cfg *pollerConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// WithPollerLogger sets the logger. Defaults to [slog.Default].
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithOnChange registers a callback invoked after every applied state
// transition, including the move to Loading.
//
// Callbacks run one at a time in registration order, never concurrently
// with each other. They must not block for long and must not call Start,
// Stop or Dispose on the same Poller, nor any method of a [Gate] driving
// it. Panics are recovered and logged.
//
// The type parameter must match the Poller's; [NewPoller] rejects a
// mismatch. Nil callbacks are ignored.
func WithOnChange[T any](cb func(Result[T])) PollerOption {
	return func(cfg *pollerConfig) error {
		if cb == nil {
			return nil
		}
		cfg.onChange = append(cfg.onChange, cb)
		return nil
	}
}

// typedCallbacks converts the stored callbacks to func(Result[T]).
func typedCallbacks[T any](raw []any) ([]func(Result[T]), error) {
	out := make([]func(Result[T]), 0, len(raw))
	for i, cb := range raw {
		fn, ok := cb.(func(Result[T]))
		if !ok {
			return nil, fmt.Errorf("on-change callback %d has type %T, want %T", i, cb, fn)
		}
		out = append(out, fn)
	}
	return out, nil
}
