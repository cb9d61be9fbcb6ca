package netpulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jpalmerr/netpulse/internal/transport"
)

// Fetcher retrieves one payload of type T. It is the network capability a
// [Poller] depends on.
//
// Implementations should honour ctx cancellation. Returned errors should be
// a [*TransportError] or an [*ApplicationError] so the poller can classify
// them; any other error is reported with its own text.
type Fetcher[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// FetchFunc adapts a function to the [Fetcher] interface.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Fetch calls f(ctx).
func (f FetchFunc[T]) Fetch(ctx context.Context) (T, error) {
	return f(ctx)
}

// HTTPFetcher issues a GET against a fixed endpoint and decodes the JSON
// body into T.
type HTTPFetcher[T any] struct {
	client   *transport.Client
	endpoint string
	headers  map[string]string
}

// NewHTTPFetcher creates an [HTTPFetcher] for endpoint.
//
// The endpoint must be an absolute http or https URL. headers are sent with
// every request and may be nil.
func NewHTTPFetcher[T any](endpoint string, headers map[string]string) (*HTTPFetcher[T], error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("endpoint must use http or https, got %q", endpoint)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("endpoint %q has no host", endpoint)
	}

	return &HTTPFetcher[T]{
		client:   transport.NewClient(),
		endpoint: endpoint,
		headers:  copyMap(headers),
	}, nil
}

// Endpoint returns the URL being fetched.
func (f *HTTPFetcher[T]) Endpoint() string {
	return f.endpoint
}

// Fetch performs one GET and decodes the response.
//
// Failures before a response are returned as [*TransportError]. A non-2xx
// status or an undecodable body is returned as [*ApplicationError] carrying
// the payload's message field when the server sent one.
func (f *HTTPFetcher[T]) Fetch(ctx context.Context) (T, error) {
	var zero T

	resp := f.client.Do(ctx, transport.Request{
		URL:     f.endpoint,
		Headers: f.headers,
	})
	if resp.Err != nil {
		var tErr *transport.Error
		if errors.As(resp.Err, &tErr) {
			return zero, &TransportError{Op: tErr.Op, Err: tErr.Err}
		}
		return zero, &TransportError{Op: "request", Err: resp.Err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, &ApplicationError{
			StatusCode: resp.StatusCode,
			Message:    payloadMessage(resp.Body),
		}
	}

	var out T
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return zero, &ApplicationError{
			StatusCode: resp.StatusCode,
			Message:    payloadMessage(resp.Body),
			Err:        fmt.Errorf("decode %T: %w", zero, err),
		}
	}
	return out, nil
}

// Close releases idle connections. The fetcher stays usable.
func (f *HTTPFetcher[T]) Close() {
	f.client.Close()
}

// ResourceURL joins a base URL and a resource path with exactly one slash.
func ResourceURL(base, resource string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(resource, "/")
}
