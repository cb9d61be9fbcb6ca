// Package server provides the HTTP server for the netpulse API.
//
// This package is internal to netpulse and handles all HTTP concerns:
//
//   - REST API: "/api/state" for the current widget snapshots and
//     "/api/info" for board metadata
//   - Server-Sent Events: real-time snapshot updates at "/api/sse"
//   - Visibility socket: dashboard pages report whether they are visible
//     over a websocket at "/api/visibility"
//   - Operations: Prometheus metrics at "/metrics" and "/healthz"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
