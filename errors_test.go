package netpulse

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jpalmerr/netpulse/internal/metrics"
)

type emptyError struct{}

func (emptyError) Error() string { return "" }

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "payload message wins", err: &ApplicationError{StatusCode: 500, Message: "X"}, want: "X"},
		{name: "wrapped payload message", err: fmt.Errorf("poll: %w", &ApplicationError{Message: "quota exceeded"}), want: "quota exceeded"},
		{name: "status fallback", err: &ApplicationError{StatusCode: 404}, want: "request failed with status code 404"},
		{name: "shape mismatch", err: &ApplicationError{StatusCode: 200, Err: errors.New("bad json")}, want: "unexpected response: bad json"},
		{name: "transport message", err: &TransportError{Op: "request", Err: errors.New("dial tcp: connection refused")}, want: "request: dial tcp: connection refused"},
		{name: "plain error", err: errors.New("something"), want: "something"},
		{name: "empty application error", err: &ApplicationError{}, want: DefaultErrorMessage},
		{name: "empty error text", err: emptyError{}, want: DefaultErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.want {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &TransportError{Op: "request", Err: inner}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is(TransportError, DeadlineExceeded) = false")
	}
	if !err.Timeout() {
		t.Error("Timeout() = false for a deadline")
	}
	if (&TransportError{Op: "request", Err: errors.New("refused")}).Timeout() {
		t.Error("Timeout() = true for a refused connection")
	}
	if got := (&TransportError{Op: "read body"}).Error(); got != "read body" {
		t.Errorf("Error() = %q, want op only", got)
	}
}

func TestFailureKind(t *testing.T) {
	if got := failureKind(&TransportError{Op: "request"}); got != metrics.KindTransport {
		t.Errorf("failureKind(transport) = %q", got)
	}
	if got := failureKind(&ApplicationError{StatusCode: 500}); got != metrics.KindApplication {
		t.Errorf("failureKind(application) = %q", got)
	}
	if got := failureKind(errors.New("other")); got != metrics.KindApplication {
		t.Errorf("failureKind(other) = %q", got)
	}
}

func TestPayloadMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "top-level message", body: `{"message":"X"}`, want: "X"},
		{name: "nested error message", body: `{"error":{"message":"nested"}}`, want: "nested"},
		{name: "error string", body: `{"error":"flat"}`, want: "flat"},
		{name: "detail", body: `{"detail":"not found"}`, want: "not found"},
		{name: "message wins over error", body: `{"error":"b","message":"a"}`, want: "a"},
		{name: "blank message skipped", body: `{"message":"  ","error":"real"}`, want: "real"},
		{name: "non-string message", body: `{"message":42}`, want: ""},
		{name: "not json", body: `Internal Server Error`, want: ""},
		{name: "array", body: `[1,2]`, want: ""},
		{name: "empty", body: ``, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := payloadMessage([]byte(tt.body)); got != tt.want {
				t.Errorf("payloadMessage(%s) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
