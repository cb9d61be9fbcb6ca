// Package transport provides the HTTP client used to poll the backend.
//
// This package is internal to netpulse. It wraps net/http with connection
// pooling, per-request timeouts and a 1MB body limit, and reports failures
// that happened before a response was received as [*Error] values so the
// caller can tell them apart from application-level failures.
package transport
