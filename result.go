package netpulse

import "time"

// Kind identifies which variant of a [Result] is current.
type Kind uint8

const (
	// Idle means no attempt has been dispatched yet.
	Idle Kind = iota

	// Loading means an attempt is awaiting its response.
	Loading

	// Success means the most recent applied attempt returned data.
	Success

	// Failure means the most recent applied attempt failed.
	Failure
)

// String returns the lower-case variant name.
func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "idle"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Result is a snapshot of a [Poller]'s state.
//
// Exactly one Kind is current. Message and OccurredAt are only meaningful
// for [Failure]. The last successful payload is kept in Data (with HasData
// set) across later Loading and Failure states until a newer success
// replaces it, so a dashboard can keep showing stale data under an error
// banner.
//
// Data is shared with the poller; treat it as read-only.
type Result[T any] struct {
	Kind Kind

	// Data is the payload of the most recent applied success.
	Data T

	// HasData reports whether any attempt has succeeded so far.
	HasData bool

	// FetchedAt is when Data was received.
	FetchedAt time.Time

	// Message is the human-readable failure description.
	Message string

	// OccurredAt is when the failure was applied.
	OccurredAt time.Time

	// Seq is the sequence number of the attempt that produced this state.
	Seq uint64
}

// IsLoading reports whether an attempt is in flight.
func (r Result[T]) IsLoading() bool {
	return r.Kind == Loading
}

// Err returns the failure message, or "" unless Kind is [Failure].
func (r Result[T]) Err() string {
	if r.Kind != Failure {
		return ""
	}
	return r.Message
}

// loading clears any failure; prior success data is retained.
func (r Result[T]) loading(seq uint64) Result[T] {
	r.Kind = Loading
	r.Message = ""
	r.OccurredAt = time.Time{}
	r.Seq = seq
	return r
}

func (r Result[T]) success(data T, at time.Time, seq uint64) Result[T] {
	return Result[T]{
		Kind:      Success,
		Data:      data,
		HasData:   true,
		FetchedAt: at,
		Seq:       seq,
	}
}

func (r Result[T]) failure(msg string, at time.Time, seq uint64) Result[T] {
	r.Kind = Failure
	r.Message = msg
	r.OccurredAt = at
	r.Seq = seq
	return r
}
