package netpulse

import (
	"errors"
	"strings"
	"time"
)

// widgetConfig holds mutable state during widget construction.
type widgetConfig struct {
	resource     string
	headers      map[string]string
	interval     time.Duration
	initialDelay time.Duration
	timeout      time.Duration
}

// WidgetOption configures a [Widget] during construction.
//
// Built-in options: [WithResource], [WithWidgetHeaders],
// [WithWidgetInterval], [WithWidgetInitialDelay], [WithWidgetTimeout].
type WidgetOption func(*widgetConfig) error

// WithResource overrides the resource path, for backends that serve the
// payloads under different names.
//
// Returns an error if the path is empty.
func WithResource(path string) WidgetOption {
	return func(cfg *widgetConfig) error {
		path = strings.Trim(path, "/ ")
		if path == "" {
			return errors.New("resource cannot be empty")
		}
		cfg.resource = path
		return nil
	}
}

// WithWidgetHeaders adds custom HTTP headers to every request for this
// widget.
//
// Accepts variadic key-value pairs. Returns an error if an odd number of
// arguments is provided.
//
// Example:
//
//	w, err := netpulse.NewWidget("Stats", netpulse.WidgetStats,
//	    netpulse.WithWidgetHeaders("Authorization", "Bearer token123"),
//	)
func WithWidgetHeaders(keyValues ...string) WidgetOption {
	return func(cfg *widgetConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithWidgetHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithWidgetInterval sets a custom polling interval for this widget.
//
// The interval must be at least 1 second and at most 1 hour. If not
// specified, the board's interval is used.
//
// The interval is measured between dispatches, not completions. A slow
// backend therefore sees overlapping requests.
func WithWidgetInterval(d time.Duration) WidgetOption {
	return func(cfg *widgetConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > time.Hour {
			return errors.New("interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}

// WithWidgetInitialDelay postpones the first fetch after every start.
//
// Returns an error if the duration is negative.
func WithWidgetInitialDelay(d time.Duration) WidgetOption {
	return func(cfg *widgetConfig) error {
		if d < 0 {
			return errors.New("initial delay cannot be negative")
		}
		cfg.initialDelay = d
		return nil
	}
}

// WithWidgetTimeout bounds each request for this widget. If not specified,
// the board's timeout is used.
//
// Returns an error if the duration is zero or negative.
func WithWidgetTimeout(d time.Duration) WidgetOption {
	return func(cfg *widgetConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}
