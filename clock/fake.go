package clock

import (
	"sync"
	"time"
)

// Fake is a manually driven [Clock].
//
// Tickers created by a Fake never fire on their own. [Fake.Tick] delivers
// one tick to every live ticker, dropping it for a ticker whose previous
// tick has not been received yet, the same way [time.Ticker] does.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	live    map[*fakeTicker]struct{}
	created int
}

// NewFake returns a Fake whose current time is start.
func NewFake(start time.Time) *Fake {
	return &Fake{
		now:  start,
		live: make(map[*fakeTicker]struct{}),
	}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker registers a live ticker. The duration is recorded but unused.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{
		clock:  f,
		period: d,
		ch:     make(chan time.Time, 1),
	}

	f.mu.Lock()
	f.live[t] = struct{}{}
	f.created++
	f.mu.Unlock()

	return t
}

// Advance moves the fake time forward without delivering ticks.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Tick delivers one tick to every live ticker and returns how many
// tickers accepted it.
func (f *Fake) Tick() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for t := range f.live {
		select {
		case t.ch <- f.now:
			delivered++
		default:
		}
	}
	return delivered
}

// Live returns the number of tickers created and not yet stopped.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Created returns the total number of tickers ever created.
func (f *Fake) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Periods returns the periods of the live tickers in no particular order.
func (f *Fake) Periods() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]time.Duration, 0, len(f.live))
	for t := range f.live {
		out = append(out, t.period)
	}
	return out
}

type fakeTicker struct {
	clock  *Fake
	period time.Duration
	ch     chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	delete(t.clock.live, t)
	t.clock.mu.Unlock()
}
