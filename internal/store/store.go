package store

import (
	"encoding/json"
	"time"
)

// Snapshot is the storage representation of one widget's state, shaped for
// JSON (used by the REST API, SSE and the NATS publisher).
//
// Data holds the encoded payload of the last successful fetch and survives
// later loading and failure states.
type Snapshot struct {
	// Name is the widget's display name and the store key.
	Name string `json:"name"`

	// Kind is "traffic" or "stats".
	Kind string `json:"kind"`

	// Resource is the backend path being polled.
	Resource string `json:"resource"`

	// State is one of "idle", "loading", "success" or "failure".
	State string `json:"state"`

	// Loading is true while an attempt is in flight.
	Loading bool `json:"loading"`

	// Data is the last successful payload, or nil before the first success.
	Data json.RawMessage `json:"data,omitempty"`

	// Error is the failure message while State is "failure".
	Error *string `json:"error"`

	// FetchedAt is when Data was received.
	FetchedAt *time.Time `json:"fetched_at,omitempty"`

	// UpdatedAt is when this snapshot was produced.
	UpdatedAt time.Time `json:"updated_at"`

	// Seq is the attempt sequence number that produced the state.
	Seq uint64 `json:"seq"`
}

// Store defines the interface for storing and subscribing to widget
// snapshots.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Update stores a snapshot and notifies all subscribers.
	// Snapshots are keyed by Name, so later updates replace earlier ones.
	Update(snap Snapshot)

	// Get returns the snapshot stored under name.
	Get(name string) (Snapshot, bool)

	// GetAll returns all stored snapshots sorted by name.
	GetAll() []Snapshot

	// Subscribe returns a channel that receives snapshot updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
