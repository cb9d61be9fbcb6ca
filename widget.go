package netpulse

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// WidgetKind selects which payload a [Widget] polls and how it is decoded.
type WidgetKind string

const (
	// WidgetTraffic polls a series of [TrafficPoint].
	WidgetTraffic WidgetKind = "traffic"

	// WidgetStats polls a [NetworkStats] summary.
	WidgetStats WidgetKind = "stats"
)

// ParseWidgetKind parses "traffic" or "stats" (case-insensitive).
func ParseWidgetKind(s string) (WidgetKind, error) {
	switch WidgetKind(strings.ToLower(strings.TrimSpace(s))) {
	case WidgetTraffic:
		return WidgetTraffic, nil
	case WidgetStats:
		return WidgetStats, nil
	default:
		return "", fmt.Errorf("unknown widget kind %q (expected traffic or stats)", s)
	}
}

// DefaultResource returns the resource path polled when none is set.
func (k WidgetKind) DefaultResource() string {
	if k == WidgetStats {
		return ResourceStats
	}
	return ResourceTraffic
}

// Widget describes one dashboard panel: what to poll and how often.
//
// Widget is immutable after creation via [NewWidget]. Getters return copies
// of mutable data.
type Widget struct {
	name         string
	kind         WidgetKind
	resource     string
	headers      map[string]string
	interval     time.Duration
	initialDelay time.Duration
	timeout      time.Duration
}

// Name returns the widget's display name, unique within a [Board].
func (w Widget) Name() string {
	return w.name
}

// Kind returns the payload kind.
func (w Widget) Kind() WidgetKind {
	return w.kind
}

// Resource returns the path polled relative to the board's base URL.
func (w Widget) Resource() string {
	return w.resource
}

// Headers returns a copy of the custom request headers, or nil.
func (w Widget) Headers() map[string]string {
	return copyMap(w.headers)
}

// Interval returns the widget's polling interval. Zero means the board's
// default interval is used.
func (w Widget) Interval() time.Duration {
	return w.interval
}

// InitialDelay returns the delay before the first fetch after each start.
func (w Widget) InitialDelay() time.Duration {
	return w.initialDelay
}

// Timeout returns the per-attempt timeout. Zero means the board's default.
func (w Widget) Timeout() time.Duration {
	return w.timeout
}

// NewWidget creates a [Widget] with the given name, kind and options.
//
// The kind is matched case-insensitively. The resource defaults to the
// kind's [WidgetKind.DefaultResource].
//
// Returns an error if the name is empty, the kind is unknown or an option
// is invalid.
//
// Example:
//
//	traffic, err := netpulse.NewWidget("Traffic", netpulse.WidgetTraffic,
//	    netpulse.WithWidgetInterval(5*time.Second),
//	)
func NewWidget(name string, kind WidgetKind, opts ...WidgetOption) (Widget, error) {
	if name == "" {
		return Widget{}, errors.New("widget name cannot be empty")
	}
	kind, err := ParseWidgetKind(string(kind))
	if err != nil {
		return Widget{}, err
	}

	cfg := &widgetConfig{
		resource: kind.DefaultResource(),
		headers:  make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Widget{}, err
		}
	}

	return Widget{
		name:         name,
		kind:         kind,
		resource:     cfg.resource,
		headers:      cfg.headers,
		interval:     cfg.interval,
		initialDelay: cfg.initialDelay,
		timeout:      cfg.timeout,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
