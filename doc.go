// Package netpulse provides a visibility-aware polling component for
// network dashboards, plus a small embeddable dashboard backend built on it.
//
// # Poller
//
// A [Poller] fetches a resource immediately when started and then on a
// fixed interval until stopped. Its state is a [Result]: Idle, Loading,
// Success or Failure. Attempts may overlap when the backend is slower than
// the interval; every attempt carries a sequence number and a resolution
// older than the last applied one is dropped. A stopped Poller never
// changes its state from a late response.
//
//	fetcher, _ := netpulse.NewHTTPFetcher[netpulse.NetworkStats]("http://localhost:8080/network-stats", nil)
//	p, _ := netpulse.NewPoller[netpulse.NetworkStats](fetcher,
//	    netpulse.WithInterval(5*time.Second),
//	    netpulse.WithOnChange(func(r netpulse.Result[netpulse.NetworkStats]) {
//	        fmt.Println(r.Kind, r.Data.PacketsSent, r.Message)
//	    }),
//	)
//	defer p.Dispose()
//
// # Visibility Gate
//
// A [Gate] starts and stops a Poller as a [visibility.Source] reports the
// host page becoming visible or hidden. It holds exactly one subscription
// while attached and removes that same subscription on detach.
//
//	gate := netpulse.NewGate(source, p, logger)
//	_ = gate.Attach()
//	defer gate.Detach()
//
// # Board
//
// A [Board] mounts one Poller and Gate per [Widget], keeps the latest
// snapshot of each in memory and serves them over HTTP as JSON and
// Server-Sent Events. Browser pages report their visibility over a
// websocket so polling pauses while nobody is looking.
//
//	traffic, _ := netpulse.NewWidget("Traffic", netpulse.WidgetTraffic)
//	stats, _ := netpulse.NewWidget("Stats", netpulse.WidgetStats)
//	b, _ := netpulse.New("http://localhost:9999", netpulse.WithWidgets(traffic, stats))
//	b.Start(ctx) // blocks until ctx is cancelled
//
// The internal packages are not part of the public API:
//
//   - internal/transport: pooled HTTP client with timeouts and size limits
//   - internal/store: in-memory snapshots with pub/sub
//   - internal/server: REST, SSE, websocket and metrics endpoints
//   - internal/metrics: Prometheus instrumentation
//   - internal/publish: optional NATS fan-out of snapshots
package netpulse
