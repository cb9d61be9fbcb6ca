package netpulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/netpulse/clock"
	"github.com/jpalmerr/netpulse/internal/publish"
	"github.com/jpalmerr/netpulse/internal/server"
	"github.com/jpalmerr/netpulse/internal/store"
	"github.com/jpalmerr/netpulse/visibility"
)

const (
	defaultPort       = 8080
	defaultBoardTitle = "NetPulse"

	// natsSource names this process on the NATS connection and in events.
	natsSource = "netpulse"
)

// WidgetSnapshot is the type-erased state of one widget, as stored, served
// and published by a [Board].
type WidgetSnapshot struct {
	Widget   string
	Kind     WidgetKind
	Resource string

	// State is the Result kind of the widget's poller.
	State Kind

	// Data is the JSON encoding of the last successful payload, or nil.
	Data json.RawMessage

	HasData    bool
	Message    string
	FetchedAt  time.Time
	OccurredAt time.Time
	Seq        uint64

	// UpdatedAt is when the transition was recorded.
	UpdatedAt time.Time
}

// Board is the orchestrator behind a network dashboard.
//
// Board mounts one [Poller] and one [Gate] per [Widget], keeps the latest
// snapshot of each in memory, serves them over HTTP and optionally
// publishes them to NATS. It is created with [New] and run with
// [Board.Start].
//
//	b, err := netpulse.New("http://localhost:9999")
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	b.Start(ctx) // blocks until context cancelled
type Board struct {
	baseURL           string
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

	mu   sync.Mutex
	addr string
}

// New creates a [Board] that polls resources under baseURL.
//
// Without [WithWidget] or [WithWidgets] the board mounts
// [DefaultWidgets]. Other defaults:
//   - Polling interval: 5 seconds
//   - Request timeout: 10 seconds
//   - Port: 8080
//   - Visibility: pages connected to /api/visibility
//
// Returns an error if baseURL is not an absolute http(s) URL, widget names
// repeat, or any option is invalid.
func New(baseURL string, opts ...Option) (*Board, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("base URL must be an absolute http(s) URL, got %q", baseURL)
	}

	cfg := &boardConfig{
		title:           defaultBoardTitle,
		pollingInterval: defaultInterval,
		timeout:         defaultFetchTimeout,
		port:            defaultPort,
		clock:           clock.System,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.widgets) == 0 {
		cfg.widgets = DefaultWidgets()
	}

	// names key the store, the metrics labels and the NATS subjects
	seen := make(map[string]bool, len(cfg.widgets))
	for _, w := range cfg.widgets {
		if w.name == "" {
			return nil, errors.New("widget created without NewWidget")
		}
		if seen[w.name] {
			return nil, fmt.Errorf("duplicate widget name: %q", w.name)
		}
		seen[w.name] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	source := cfg.source
	if source == nil {
		source = visibility.NewClients()
	}

	return &Board{
		baseURL:           parsed.String(),
		title:             cfg.title,
		widgets:           cfg.widgets,
		pollingInterval:   cfg.pollingInterval,
		timeout:           cfg.timeout,
		port:              cfg.port,
		logger:            logger,
		source:            source,
		clock:             cfg.clock,
		natsURL:           cfg.natsURL,
		natsPrefix:        cfg.natsPrefix,
		snapshotCallbacks: cfg.snapshotCallbacks,
	}, nil
}

// DefaultWidgets returns the "Traffic" and "Stats" widgets polling
// network-traffic and network-stats.
func DefaultWidgets() []Widget {
	traffic, _ := NewWidget("Traffic", WidgetTraffic)
	stats, _ := NewWidget("Stats", WidgetStats)
	return []Widget{traffic, stats}
}

// mountedPoller is what the board needs from a Poller of any payload type.
type mountedPoller interface {
	Switch
	Dispose()
	Wait()
}

type mount struct {
	widget Widget
	poller mountedPoller
	gate   *Gate
}

// Start mounts every widget, serves the API and blocks until ctx is
// cancelled.
//
// Polling follows the visibility source: with the default source nothing
// is fetched until a page connects to /api/visibility and reports itself
// visible. On cancellation every gate is detached and every poller
// disposed before Start returns.
//
// Returns nil on graceful shutdown. Returns an error if the NATS connection
// or the HTTP server cannot be established.
func (b *Board) Start(ctx context.Context) error {
	b.logger.Info("netpulse starting", "widget_count", len(b.widgets), "base_url", b.baseURL)
	b.logger.Info("polling configured", "interval", b.pollingInterval.String())

	if ctx.Err() != nil {
		return nil
	}

	st := store.NewMemoryStore()
	sink := &snapshotSink{
		store:     st,
		callbacks: b.snapshotCallbacks,
		logger:    b.logger,
	}

	if b.natsURL != "" {
		cfg := publish.DefaultConfig()
		cfg.URL = b.natsURL
		if b.natsPrefix != "" {
			cfg.SubjectPrefix = b.natsPrefix
		}
		pub, err := publish.Connect(cfg, natsSource, b.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer func() {
			if err := pub.Close(); err != nil {
				b.logger.Warn("nats drain failed", "error", err)
			}
		}()
		sink.publisher = pub
		b.logger.Info("publishing snapshots", "nats_url", cfg.URL, "subject", pub.Subject("<widget>"))
	}

	mounts := make([]*mount, 0, len(b.widgets))
	cleanup := func() {
		for _, m := range mounts {
			m.gate.Detach()
			m.poller.Dispose()
		}
		for _, m := range mounts {
			m.poller.Wait()
		}
	}

	for _, w := range b.widgets {
		m, err := b.mount(w, sink)
		if err != nil {
			cleanup()
			return err
		}
		mounts = append(mounts, m)
		sink.put(WidgetSnapshot{
			Widget:    w.name,
			Kind:      w.kind,
			Resource:  w.resource,
			State:     Idle,
			UpdatedAt: b.clock.Now(),
		})
	}

	var pages server.PageTracker
	if c, ok := b.source.(*visibility.Clients); ok {
		pages = c
	}

	httpServer := server.NewServer(st, b.port, b.title, pages, b.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	b.mu.Lock()
	b.addr = httpServer.Addr()
	b.mu.Unlock()
	b.logger.Info("api available", "addr", httpServer.Addr())

	for _, m := range mounts {
		if err := m.gate.Attach(); err != nil {
			b.logger.Warn("gate attach failed", "widget", m.widget.name, "error", err)
		}
	}

	<-ctx.Done()
	cleanup()
	b.logger.Info("netpulse stopped")
	return nil
}

func (b *Board) mount(w Widget, sink *snapshotSink) (*mount, error) {
	if w.kind == WidgetStats {
		return mountWidget[NetworkStats](b, w, sink)
	}
	return mountWidget[[]TrafficPoint](b, w, sink)
}

// mountWidget builds the typed poller for w and wires its transitions into
// the sink.
func mountWidget[T any](b *Board, w Widget, sink *snapshotSink) (*mount, error) {
	fetcher, err := NewHTTPFetcher[T](ResourceURL(b.baseURL, w.resource), w.headers)
	if err != nil {
		return nil, fmt.Errorf("widget %q: %w", w.name, err)
	}

	interval := w.interval
	if interval == 0 {
		interval = b.pollingInterval
	}
	timeout := w.timeout
	if timeout == 0 {
		timeout = b.timeout
	}

	p, err := NewPoller[T](fetcher,
		WithName(w.name),
		WithInterval(interval),
		WithInitialDelay(w.initialDelay),
		WithFetchTimeout(timeout),
		WithClock(b.clock),
		WithPollerLogger(b.logger),
		WithOnChange(func(r Result[T]) {
			snap, err := snapshotOf(w, r, b.clock.Now())
			if err != nil {
				b.logger.Error("failed to encode snapshot", "widget", w.name, "error", err)
			}
			sink.put(snap)
		}),
	)
	if err != nil {
		fetcher.Close()
		return nil, fmt.Errorf("widget %q: %w", w.name, err)
	}

	return &mount{
		widget: w,
		poller: p,
		gate:   NewGate(b.source, p, b.logger.With("widget", w.name)),
	}, nil
}

// snapshotOf erases the payload type of r. On an encoding error the
// snapshot is still returned without data.
func snapshotOf[T any](w Widget, r Result[T], now time.Time) (WidgetSnapshot, error) {
	snap := WidgetSnapshot{
		Widget:     w.name,
		Kind:       w.kind,
		Resource:   w.resource,
		State:      r.Kind,
		HasData:    r.HasData,
		Message:    r.Err(),
		FetchedAt:  r.FetchedAt,
		OccurredAt: r.OccurredAt,
		Seq:        r.Seq,
		UpdatedAt:  now,
	}
	if !r.HasData {
		return snap, nil
	}

	data, err := json.Marshal(r.Data)
	if err != nil {
		snap.HasData = false
		return snap, err
	}
	snap.Data = data
	return snap, nil
}

// Widgets returns a copy of the configured widgets.
func (b *Board) Widgets() []Widget {
	cp := make([]Widget, len(b.widgets))
	copy(cp, b.widgets)
	return cp
}

// Port returns the configured HTTP port.
func (b *Board) Port() int {
	return b.port
}

// Addr returns the address the API server listens on once Start has bound
// it, or "".
func (b *Board) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addr
}

// PollingInterval returns the default interval between attempts.
func (b *Board) PollingInterval() time.Duration {
	return b.pollingInterval
}

// Visibility returns the source gating the widgets.
func (b *Board) Visibility() visibility.Source {
	return b.source
}

// snapshotSink is where every widget transition lands: the store first,
// then NATS, then the user callbacks.
type snapshotSink struct {
	store     store.Store
	publisher *publish.Publisher
	callbacks []func(WidgetSnapshot)
	logger    *slog.Logger
}

func (s *snapshotSink) put(snap WidgetSnapshot) {
	stored := toStoreSnapshot(snap)
	s.store.Update(stored)

	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(stored); err != nil {
			s.logger.Warn("snapshot publish failed", "widget", snap.Widget, "error", err)
		}
	}

	for _, cb := range s.callbacks {
		invokeCallbackSafe(cb, snap, s.logger)
	}
}

func toStoreSnapshot(snap WidgetSnapshot) store.Snapshot {
	out := store.Snapshot{
		Name:      snap.Widget,
		Kind:      string(snap.Kind),
		Resource:  snap.Resource,
		State:     snap.State.String(),
		Loading:   snap.State == Loading,
		UpdatedAt: snap.UpdatedAt,
		Seq:       snap.Seq,
	}
	if snap.HasData {
		out.Data = snap.Data
		fetched := snap.FetchedAt
		out.FetchedAt = &fetched
	}
	if snap.State == Failure {
		msg := snap.Message
		out.Error = &msg
	}
	return out
}

// invokeCallbackSafe calls a snapshot callback with panic recovery.
// Panics are logged with a correlation id and do not propagate.
func invokeCallbackSafe(cb func(WidgetSnapshot), snap WidgetSnapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("snapshot callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
				"widget", snap.Widget,
			)
		}
	}()
	cb(snap)
}
