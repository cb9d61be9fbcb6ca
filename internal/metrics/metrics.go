// Package metrics exposes Prometheus instrumentation for netpulse pollers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure kinds used as the "kind" label.
const (
	KindTransport   = "transport"
	KindApplication = "application"
)

// Discard reasons used as the "reason" label.
const (
	ReasonStopped = "stopped"
	ReasonStale   = "stale"
)

var (
	PollAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netpulse_poll_attempts_total",
		Help: "Fetch attempts dispatched per widget",
	}, []string{"widget"})

	PollFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netpulse_poll_failures_total",
		Help: "Applied failures per widget and failure kind",
	}, []string{"widget", "kind"})

	PollDiscardedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netpulse_poll_discarded_total",
		Help: "Resolutions dropped because the poller stopped or a newer result was applied",
	}, []string{"widget", "reason"})

	PollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netpulse_poll_duration_seconds",
		Help:    "Fetch attempt duration per widget",
		Buckets: prometheus.DefBuckets,
	}, []string{"widget"})

	PollerRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netpulse_poller_running",
		Help: "1 while the widget's poller is running",
	}, []string{"widget"})

	InFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netpulse_poll_in_flight",
		Help: "Fetch attempts currently awaiting a response",
	}, []string{"widget"})

	ConnectedPages = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netpulse_connected_pages",
		Help: "Dashboard pages connected to the visibility socket",
	})
)

func init() {
	prometheus.MustRegister(
		PollAttemptsTotal,
		PollFailuresTotal,
		PollDiscardedTotal,
		PollDuration,
		PollerRunning,
		InFlight,
		ConnectedPages,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AttemptStarted records a dispatched attempt.
func AttemptStarted(widget string) {
	PollAttemptsTotal.WithLabelValues(widget).Inc()
	InFlight.WithLabelValues(widget).Inc()
}

// AttemptFinished records a resolved attempt, applied or not.
func AttemptFinished(widget string, took time.Duration) {
	InFlight.WithLabelValues(widget).Dec()
	PollDuration.WithLabelValues(widget).Observe(took.Seconds())
}

// Failure records an applied failure of the given kind.
func Failure(widget, kind string) {
	PollFailuresTotal.WithLabelValues(widget, kind).Inc()
}

// Discarded records a resolution that was dropped.
func Discarded(widget, reason string) {
	PollDiscardedTotal.WithLabelValues(widget, reason).Inc()
}

// SetRunning mirrors the poller's running flag.
func SetRunning(widget string, running bool) {
	v := float64(0)
	if running {
		v = 1
	}
	PollerRunning.WithLabelValues(widget).Set(v)
}

// SetConnectedPages records how many pages are connected to the visibility
// socket.
func SetConnectedPages(n int) {
	ConnectedPages.Set(float64(n))
}
