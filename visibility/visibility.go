// Package visibility models the host page visibility signal that gates
// polling.
//
// A [Source] reports whether the page is currently visible and notifies
// subscribers of transitions. Subscribing returns a [Subscription] token;
// the same token must be handed back to [Source.Unsubscribe] to remove the
// listener. Tokens are opaque and unique per call, so subscribing the same
// function twice yields two independent subscriptions.
//
// Three sources are provided:
//
//   - [Manual]: set programmatically; also the fake used in tests
//   - [Clients]: aggregates many browser pages, visible while any page is
//   - [Always]: permanently visible, for headless embeddings
package visibility

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// State is the host page visibility.
type State uint8

const (
	// Hidden means no viewer can see the page. It is the zero value so an
	// unknown page never triggers polling.
	Hidden State = iota

	// Visible means the page is on screen.
	Visible
)

// String returns "visible" or "hidden".
func (s State) String() string {
	if s == Visible {
		return "visible"
	}
	return "hidden"
}

// ParseState parses the document.visibilityState vocabulary. "prerender"
// and "unloaded" are treated as hidden.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "visible":
		return Visible, nil
	case "hidden", "prerender", "unloaded":
		return Hidden, nil
	default:
		return Hidden, fmt.Errorf("unknown visibility state %q", s)
	}
}

// Subscription identifies one registered listener.
type Subscription string

// Listener receives visibility transitions.
type Listener func(State)

// Source is a host visibility signal.
type Source interface {
	// State returns the current visibility.
	State() State

	// Subscribe registers fn for transition notifications and returns the
	// token that removes it.
	Subscribe(fn Listener) Subscription

	// Unsubscribe removes the listener registered under sub. It reports
	// whether a listener was actually removed.
	Unsubscribe(sub Subscription) bool
}

// registry keeps listeners in registration order.
type registry struct {
	mu    sync.Mutex
	order []Subscription
	fns   map[Subscription]Listener
}

func (r *registry) add(fn Listener) Subscription {
	sub := Subscription(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fns == nil {
		r.fns = make(map[Subscription]Listener)
	}
	r.fns[sub] = fn
	r.order = append(r.order, sub)
	return sub
}

func (r *registry) remove(sub Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.fns[sub]; !ok {
		return false
	}
	delete(r.fns, sub)
	for i, s := range r.order {
		if s == sub {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *registry) listeners() []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Listener, 0, len(r.order))
	for _, sub := range r.order {
		out = append(out, r.fns[sub])
	}
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fns)
}

func (r *registry) notify(s State) {
	for _, fn := range r.listeners() {
		if fn != nil {
			fn(s)
		}
	}
}
