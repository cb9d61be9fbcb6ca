package netpulse

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jpalmerr/netpulse/internal/metrics"
)

// DefaultErrorMessage is surfaced when a failure carries no usable text.
const DefaultErrorMessage = "An unknown error occurred"

var (
	// ErrCancelled marks an attempt whose result was discarded because the
	// poller stopped or a newer result had already been applied. It is
	// never surfaced through a [Result].
	ErrCancelled = errors.New("poll attempt cancelled")

	// ErrAlreadyAttached is returned by [Gate.Attach] when the gate is
	// already subscribed.
	ErrAlreadyAttached = errors.New("gate already attached")
)

// TransportError reports an attempt that never received a response:
// DNS failure, refused connection, timeout or a broken body read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the attempt exceeded its deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ApplicationError reports a response that signalled failure: a non-2xx
// status, an error body, or a body that did not match the expected shape.
type ApplicationError struct {
	// StatusCode is the HTTP status, or zero for non-HTTP fetchers.
	StatusCode int

	// Message is the server-provided message from the error payload, if any.
	Message string

	// Err is the decoding error for shape mismatches.
	Err error
}

func (e *ApplicationError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("unexpected response: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	default:
		return ""
	}
}

func (e *ApplicationError) Unwrap() error { return e.Err }

// ErrorMessage reduces err to the text shown to the dashboard consumer.
//
// Precedence: the structured payload message of an [*ApplicationError],
// then the error's own text, then [DefaultErrorMessage].
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *ApplicationError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultErrorMessage
}

// failureKind classifies err for metrics labels.
func failureKind(err error) string {
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return metrics.KindTransport
	}
	return metrics.KindApplication
}
