package visibility

import (
	"errors"
	"sync"
)

// ErrUnknownPage is returned by [Clients.Report] for a page id that was
// never connected or has already disconnected.
var ErrUnknownPage = errors.New("unknown page")

// Manual is a [Source] whose state is set by the caller.
//
// Every call to [Manual.Set] notifies all listeners, even when the state
// does not change, so redundant host notifications can be reproduced.
// Listeners must not call Set.
type Manual struct {
	notifyMu sync.Mutex
	mu       sync.RWMutex
	state    State
	reg      registry
}

// NewManual returns a Manual source in the given initial state.
func NewManual(initial State) *Manual {
	return &Manual{state: initial}
}

// State returns the current state.
func (m *Manual) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Set stores s and notifies every listener.
func (m *Manual) Set(s State) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.state = s
	m.mu.Unlock()

	m.reg.notify(s)
}

// Subscribe implements [Source].
func (m *Manual) Subscribe(fn Listener) Subscription {
	return m.reg.add(fn)
}

// Unsubscribe implements [Source].
func (m *Manual) Unsubscribe(sub Subscription) bool {
	return m.reg.remove(sub)
}

// Listeners returns the number of registered listeners. A non-zero value
// after every consumer has detached indicates a leaked subscription.
func (m *Manual) Listeners() int {
	return m.reg.len()
}

// Clients aggregates the visibility of several connected pages.
//
// The aggregate is [Visible] while at least one connected page reports
// visible. Pages start out hidden. Listeners are notified with the
// aggregate after every report or disconnect.
type Clients struct {
	notifyMu sync.Mutex
	mu       sync.RWMutex
	pages    map[string]State
	reg      registry
}

// NewClients returns an empty aggregate, which is hidden.
func NewClients() *Clients {
	return &Clients{pages: make(map[string]State)}
}

// Connect registers a page under id in the hidden state.
func (c *Clients) Connect(id string) {
	c.mu.Lock()
	c.pages[id] = Hidden
	c.mu.Unlock()
}

// Report records the visibility of page id and notifies listeners.
func (c *Clients) Report(id string, s State) error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if _, ok := c.pages[id]; !ok {
		c.mu.Unlock()
		return ErrUnknownPage
	}
	c.pages[id] = s
	agg := c.aggregateLocked()
	c.mu.Unlock()

	c.reg.notify(agg)
	return nil
}

// Disconnect forgets page id and notifies listeners. Unknown ids are
// ignored.
func (c *Clients) Disconnect(id string) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if _, ok := c.pages[id]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pages, id)
	agg := c.aggregateLocked()
	c.mu.Unlock()

	c.reg.notify(agg)
}

// State returns the aggregate visibility.
func (c *Clients) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.aggregateLocked()
}

// Pages returns the number of connected pages.
func (c *Clients) Pages() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

// Subscribe implements [Source].
func (c *Clients) Subscribe(fn Listener) Subscription {
	return c.reg.add(fn)
}

// Unsubscribe implements [Source].
func (c *Clients) Unsubscribe(sub Subscription) bool {
	return c.reg.remove(sub)
}

// Listeners returns the number of registered listeners.
func (c *Clients) Listeners() int {
	return c.reg.len()
}

func (c *Clients) aggregateLocked() State {
	for _, s := range c.pages {
		if s == Visible {
			return Visible
		}
	}
	return Hidden
}

// Always is a [Source] that is permanently visible and never notifies.
// The zero value is ready to use.
type Always struct {
	reg registry
}

// State always returns [Visible].
func (*Always) State() State { return Visible }

// Subscribe implements [Source]. The listener is never called.
func (a *Always) Subscribe(fn Listener) Subscription {
	return a.reg.add(fn)
}

// Unsubscribe implements [Source].
func (a *Always) Unsubscribe(sub Subscription) bool {
	return a.reg.remove(sub)
}
