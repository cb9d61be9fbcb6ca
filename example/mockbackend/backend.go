// Package mockbackend serves synthetic network-traffic and network-stats
// payloads in place of a packet-capture backend.
package mockbackend

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/jpalmerr/netpulse"
)

// DefaultWindow is the number of traffic samples served.
const DefaultWindow = 20

// Backend is an http.Handler producing a rolling traffic series and
// cumulative counters. A new sample is generated per traffic request.
type Backend struct {
	mu      sync.Mutex
	rng     *rand.Rand
	now     func() time.Time
	window  int
	series  []netpulse.TrafficPoint
	sent    int64
	recv    int64
	errored int64

	// failing makes every resource answer 503 with a message payload.
	failing bool
	latency time.Duration
	logger  *slog.Logger
	mux     *http.ServeMux
}

// Option configures a [Backend].
type Option func(*Backend)

// WithSeed makes the generated values deterministic.
func WithSeed(seed int64) Option {
	return func(b *Backend) { b.rng = rand.New(rand.NewSource(seed)) }
}

// WithLatency delays every response by d.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) { b.latency = d }
}

// WithWindow sets how many traffic samples are served.
func WithWindow(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.window = n
		}
	}
}

// WithNow replaces the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// New creates a Backend serving /network-traffic, /network-stats and
// POST /fail?on=true|false.
func New(opts ...Option) *Backend {
	b := &Backend{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		window: DefaultWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.mux = http.NewServeMux()
	b.mux.HandleFunc("/"+netpulse.ResourceTraffic, b.handleTraffic)
	b.mux.HandleFunc("/"+netpulse.ResourceStats, b.handleStats)
	b.mux.HandleFunc("/fail", b.handleFail)
	return b
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

// SetFailing toggles failure mode.
func (b *Backend) SetFailing(on bool) {
	b.mu.Lock()
	b.failing = on
	b.mu.Unlock()
	b.logger.Info("failure mode changed", "failing", on)
}

func (b *Backend) handleTraffic(w http.ResponseWriter, r *http.Request) {
	if !b.begin(w) {
		return
	}

	b.mu.Lock()
	b.series = append(b.series, netpulse.TrafficPoint{
		Timestamp:  b.now().UTC().Format(time.RFC3339),
		Throughput: 50 + b.rng.Float64()*950,
		Latency:    1 + b.rng.Float64()*80,
	})
	if len(b.series) > b.window {
		b.series = b.series[len(b.series)-b.window:]
	}
	series := make([]netpulse.TrafficPoint, len(b.series))
	copy(series, b.series)
	b.mu.Unlock()

	b.writeJSON(w, http.StatusOK, series)
}

func (b *Backend) handleStats(w http.ResponseWriter, r *http.Request) {
	if !b.begin(w) {
		return
	}

	b.mu.Lock()
	sent := int64(100 + b.rng.Intn(900))
	recv := int64(100 + b.rng.Intn(900))
	b.sent += sent
	b.recv += recv
	b.errored += int64(b.rng.Intn(int(sent/50) + 1))
	stats := netpulse.NetworkStats{
		PacketsSent:     b.sent,
		PacketsReceived: b.recv,
		ErrorRate:       float64(b.errored) / float64(b.sent),
	}
	b.mu.Unlock()

	b.writeJSON(w, http.StatusOK, stats)
}

func (b *Backend) handleFail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	b.SetFailing(r.URL.Query().Get("on") != "false")
	w.WriteHeader(http.StatusNoContent)
}

// begin applies latency and failure mode. It reports whether the handler
// should produce a payload.
func (b *Backend) begin(w http.ResponseWriter) bool {
	if b.latency > 0 {
		time.Sleep(b.latency)
	}

	b.mu.Lock()
	failing := b.failing
	b.mu.Unlock()

	if failing {
		b.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"message": "capture device unavailable",
		})
		return false
	}
	return true
}

func (b *Backend) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		b.logger.Error("failed to write response", "error", err)
	}
}
