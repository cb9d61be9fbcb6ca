package netpulse

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jpalmerr/netpulse/clock"
	"github.com/jpalmerr/netpulse/visibility"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title             string
	widgets           []Widget
	pollingInterval   time.Duration
	timeout           time.Duration
	port              int
	logger            *slog.Logger
	source            visibility.Source
	clock             clock.Clock
	natsURL           string
	natsPrefix        string
	snapshotCallbacks []func(WidgetSnapshot)
}

// Option configures a [Board] during construction.
//
// Built-in options: [WithWidget], [WithWidgets], [WithPollingInterval],
// [WithTimeout], [WithPort], [WithTitle], [WithLogger], [WithVisibility],
// [WithBoardClock], [WithNATS], [WithSnapshotCallback].
type Option func(*boardConfig) error

// WithWidget adds a single [Widget]. Can be called multiple times.
func WithWidget(w Widget) Option {
	return func(cfg *boardConfig) error {
		cfg.widgets = append(cfg.widgets, w)
		return nil
	}
}

// WithWidgets adds several widgets at once.
//
// Example:
//
//	b, err := netpulse.New(baseURL,
//	    netpulse.WithWidgets(traffic, stats),
//	)
func WithWidgets(widgets ...Widget) Option {
	return func(cfg *boardConfig) error {
		cfg.widgets = append(cfg.widgets, widgets...)
		return nil
	}
}

// WithPollingInterval sets the interval for widgets without their own.
// Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithTimeout sets the per-request timeout for widgets without their own.
// Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the API server. Defaults to 8080. Port 0
// picks a free port; see [Board.Addr].
//
// Returns an error if the port is outside 0-65535.
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("port must be between 0 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the title reported by /api/info. Defaults to "NetPulse".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithVisibility replaces the visibility source that gates polling.
//
// By default the board uses a [visibility.Clients] fed by pages connected
// to /api/visibility, so nothing is polled until a page reports itself
// visible. Pass &visibility.Always{} to poll unconditionally.
//
// Returns an error if the source is nil.
func WithVisibility(source visibility.Source) Option {
	return func(cfg *boardConfig) error {
		if source == nil {
			return errors.New("visibility source cannot be nil")
		}
		cfg.source = source
		return nil
	}
}

// WithBoardClock replaces the timer capability used by every widget poller.
//
// Returns an error if the clock is nil.
func WithBoardClock(c clock.Clock) Option {
	return func(cfg *boardConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// WithNATS publishes every applied snapshot to NATS at url, on subjects
// "<prefix>.widget.<name>.state". An empty prefix means "netpulse".
//
// Returns an error if the URL is empty.
func WithNATS(url, prefix string) Option {
	return func(cfg *boardConfig) error {
		if strings.TrimSpace(url) == "" {
			return errors.New("nats url cannot be empty")
		}
		cfg.natsURL = url
		cfg.natsPrefix = prefix
		return nil
	}
}

// WithSnapshotCallback registers a function called after every widget
// state transition, once the snapshot is stored.
//
// Callbacks run on the widget's notification path and must not block.
// Panics are recovered and logged. Nil callbacks are ignored.
//
// Example:
//
//	b, err := netpulse.New(baseURL,
//	    netpulse.WithSnapshotCallback(func(s netpulse.WidgetSnapshot) {
//	        if s.State == netpulse.Failure {
//	            log.Printf("ALERT: %s: %s", s.Widget, s.Message)
//	        }
//	    }),
//	)
func WithSnapshotCallback(cb func(WidgetSnapshot)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.snapshotCallbacks = append(cfg.snapshotCallbacks, cb)
		return nil
	}
}
