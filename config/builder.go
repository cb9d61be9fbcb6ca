package config

import (
	"log/slog"
	"sort"

	"github.com/jpalmerr/netpulse"
	"github.com/jpalmerr/netpulse/visibility"
)

// BuildWidgets converts parsed configuration into SDK Widget objects.
//
// Global initial_delay and timeout apply to widgets that set neither. An
// empty widget list yields [netpulse.DefaultWidgets] with those globals.
func BuildWidgets(cfg *Config) ([]netpulse.Widget, error) {
	entries := cfg.Widgets
	if len(entries) == 0 {
		entries = []WidgetConfig{
			{Name: "Traffic", Kind: string(netpulse.WidgetTraffic)},
			{Name: "Stats", Kind: string(netpulse.WidgetStats)},
		}
	}

	widgets := make([]netpulse.Widget, 0, len(entries))
	for _, wc := range entries {
		w, err := buildWidget(cfg, wc)
		if err != nil {
			return nil, err
		}
		widgets = append(widgets, w)
	}
	return widgets, nil
}

// buildWidget converts a single WidgetConfig to an SDK Widget.
func buildWidget(cfg *Config, wc WidgetConfig) (netpulse.Widget, error) {
	kind, err := netpulse.ParseWidgetKind(wc.Kind)
	if err != nil {
		return netpulse.Widget{}, err
	}

	var opts []netpulse.WidgetOption

	if wc.Resource != "" {
		opts = append(opts, netpulse.WithResource(wc.Resource))
	}

	if len(wc.Headers) > 0 {
		opts = append(opts, netpulse.WithWidgetHeaders(mapToKeyValuePairs(wc.Headers)...))
	}

	if wc.Interval != 0 {
		opts = append(opts, netpulse.WithWidgetInterval(wc.Interval.Duration()))
	}

	delay := cfg.InitialDelay
	if wc.InitialDelay != 0 {
		delay = wc.InitialDelay
	}
	if delay != 0 {
		opts = append(opts, netpulse.WithWidgetInitialDelay(delay.Duration()))
	}

	if wc.Timeout != 0 {
		opts = append(opts, netpulse.WithWidgetTimeout(wc.Timeout.Duration()))
	}

	return netpulse.NewWidget(wc.Name, kind, opts...)
}

// BuildOptions converts the whole configuration into board options.
func BuildOptions(cfg *Config, logger *slog.Logger) ([]netpulse.Option, error) {
	widgets, err := BuildWidgets(cfg)
	if err != nil {
		return nil, err
	}

	opts := []netpulse.Option{
		netpulse.WithWidgets(widgets...),
		netpulse.WithPollingInterval(cfg.PollInterval.Duration()),
		netpulse.WithPort(cfg.Port),
	}

	if cfg.Timeout != 0 {
		opts = append(opts, netpulse.WithTimeout(cfg.Timeout.Duration()))
	}
	if cfg.Title != "" {
		opts = append(opts, netpulse.WithTitle(cfg.Title))
	}
	if logger != nil {
		opts = append(opts, netpulse.WithLogger(logger))
	}
	if cfg.Visibility == VisibilityAlways {
		opts = append(opts, netpulse.WithVisibility(&visibility.Always{}))
	}
	if cfg.NATS.URL != "" {
		opts = append(opts, netpulse.WithNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix))
	}

	return opts, nil
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
