package netpulse

import (
	"log/slog"
	"sync"

	"github.com/jpalmerr/netpulse/visibility"
)

// Switch is the pair of verbs a [Gate] drives. [*Poller] implements it.
// Both must be idempotent.
type Switch interface {
	Start()
	Stop()
}

// Gate starts and stops a [Switch] as a [visibility.Source] reports the host
// page becoming visible or hidden.
//
// A Gate is Detached until [Gate.Attach] and after [Gate.Detach]. While
// Attached it holds exactly one subscription on the source and remembers
// its token, which is the one passed back on Detach. Notifications from a
// previous attachment are ignored.
//
// Attach, Detach and visibility changes call the target's Start and Stop
// while holding the gate's lock, and a [Poller] runs its first attempt and
// OnChange callbacks inside Start. Those callbacks must not call methods
// on the same Gate; doing so deadlocks.
type Gate struct {
	source visibility.Source
	target Switch
	logger *slog.Logger

	mu       sync.Mutex
	attached bool
	sub      visibility.Subscription
	epoch    uint64
}

// NewGate creates a detached [Gate]. A nil logger means [slog.Default].
func NewGate(source visibility.Source, target Switch, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		source: source,
		target: target,
		logger: logger,
	}
}

// Attach subscribes to the source and immediately applies its current
// state: Start when visible, Stop when hidden.
//
// Attaching an attached gate is a no-op that returns [ErrAlreadyAttached].
func (g *Gate) Attach() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.attached {
		return ErrAlreadyAttached
	}

	g.epoch++
	epoch := g.epoch
	g.sub = g.source.Subscribe(func(s visibility.State) {
		g.onVisibility(epoch, s)
	})
	g.attached = true

	state := g.source.State()
	g.logger.Debug("gate attached", "visibility", state.String())
	g.apply(state)
	return nil
}

// Detach removes the subscription created by Attach and stops the target.
// Detaching a detached gate is a no-op.
func (g *Gate) Detach() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.attached {
		return
	}

	if !g.source.Unsubscribe(g.sub) {
		g.logger.Warn("visibility subscription was already gone", "subscription", string(g.sub))
	}
	g.attached = false
	g.sub = ""
	g.target.Stop()
	g.logger.Debug("gate detached")
}

// Attached reports whether the gate is subscribed.
func (g *Gate) Attached() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attached
}

// Subscription returns the token held while attached, or "".
func (g *Gate) Subscription() visibility.Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sub
}

func (g *Gate) onVisibility(epoch uint64, s visibility.State) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.attached || g.epoch != epoch {
		return
	}
	g.logger.Debug("visibility changed", "visibility", s.String())
	g.apply(s)
}

// apply requires mu.
func (g *Gate) apply(s visibility.State) {
	if s == visibility.Visible {
		g.target.Start()
		return
	}
	g.target.Stop()
}
