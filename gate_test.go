package netpulse

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/jpalmerr/netpulse/visibility"
)

func TestGate_AttachAppliesCurrentState(t *testing.T) {
	tests := []struct {
		name    string
		initial visibility.State
		want    []string
	}{
		{name: "visible", initial: visibility.Visible, want: []string{"start"}},
		{name: "hidden", initial: visibility.Hidden, want: []string{"stop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := visibility.NewManual(tt.initial)
			sw := &recordingSwitch{}
			g := NewGate(src, sw, testLogger())

			if err := g.Attach(); err != nil {
				t.Fatalf("Attach() error = %v", err)
			}
			if got := sw.calls(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("calls = %v, want %v", got, tt.want)
			}
			if !g.Attached() {
				t.Error("Attached() = false after Attach")
			}
		})
	}
}

func TestGate_FollowsVisibility(t *testing.T) {
	src := visibility.NewManual(visibility.Hidden)
	sw := &recordingSwitch{}
	g := NewGate(src, sw, testLogger())

	if err := g.Attach(); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	src.Set(visibility.Visible)
	src.Set(visibility.Hidden)
	src.Set(visibility.Visible)

	want := []string{"stop", "start", "stop", "start"}
	if got := sw.calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

// TestGate_DrivesPoller verifies the ticker count follows visibility and
// that repeated visible notifications never add a second ticker.
func TestGate_DrivesPoller(t *testing.T) {
	f := &controlledFetcher[NetworkStats]{}
	p, fake := newTestPoller(t, f)

	src := visibility.NewManual(visibility.Hidden)
	g := NewGate(src, p, testLogger())
	if err := g.Attach(); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer g.Detach()

	if fake.Live() != 0 || p.Running() {
		t.Fatalf("hidden attach started polling")
	}

	src.Set(visibility.Visible)
	waitFor(t, "ticker", func() bool { return fake.Live() == 1 })
	f.call(t, 0).succeed(NetworkStats{PacketsSent: 1})

	src.Set(visibility.Visible)
	if fake.Created() != 1 {
		t.Errorf("tickers created = %d after duplicate visible, want 1", fake.Created())
	}
	if f.count() != 1 {
		t.Errorf("fetch calls = %d after duplicate visible, want 1", f.count())
	}

	src.Set(visibility.Hidden)
	if fake.Live() != 0 {
		t.Errorf("live tickers = %d after hidden, want 0", fake.Live())
	}
	if p.Running() {
		t.Error("poller still running after hidden")
	}

	src.Set(visibility.Visible)
	waitFor(t, "restart", func() bool { return fake.Live() == 1 })
	f.call(t, 1)
}

func TestGate_AttachTwice(t *testing.T) {
	src := visibility.NewManual(visibility.Visible)
	sw := &recordingSwitch{}
	g := NewGate(src, sw, testLogger())

	if err := g.Attach(); err != nil {
		t.Fatalf("first Attach() error = %v", err)
	}
	sub := g.Subscription()

	err := g.Attach()
	if !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("second Attach() error = %v, want ErrAlreadyAttached", err)
	}
	if n := src.Listeners(); n != 1 {
		t.Errorf("listeners = %d after second Attach, want 1", n)
	}
	if g.Subscription() != sub {
		t.Errorf("second Attach replaced the subscription")
	}
	if got := sw.calls(); len(got) != 1 {
		t.Errorf("calls = %v, want a single start", got)
	}
}

func TestGate_Detach(t *testing.T) {
	src := visibility.NewManual(visibility.Visible)
	sw := &recordingSwitch{}
	g := NewGate(src, sw, testLogger())

	if err := g.Attach(); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	g.Detach()

	if n := src.Listeners(); n != 0 {
		t.Errorf("listeners = %d after Detach, want 0", n)
	}
	if g.Attached() {
		t.Error("Attached() = true after Detach")
	}
	if g.Subscription() != "" {
		t.Errorf("Subscription() = %q after Detach, want empty", g.Subscription())
	}

	before := sw.calls()
	src.Set(visibility.Hidden)
	src.Set(visibility.Visible)
	if got := sw.calls(); !reflect.DeepEqual(got, before) {
		t.Errorf("notifications after Detach reached the target: %v -> %v", before, got)
	}

	// second detach is a no-op
	g.Detach()
	if got := sw.calls(); !reflect.DeepEqual(got, before) {
		t.Errorf("second Detach changed calls: %v", got)
	}
}

func TestGate_DetachStopsTarget(t *testing.T) {
	f := &controlledFetcher[NetworkStats]{}
	p, fake := newTestPoller(t, f)

	g := NewGate(visibility.NewManual(visibility.Visible), p, testLogger())
	if err := g.Attach(); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	waitFor(t, "ticker", func() bool { return fake.Live() == 1 })

	g.Detach()

	if fake.Live() != 0 || p.Running() {
		t.Errorf("Detach left poller running (live tickers %d)", fake.Live())
	}
}

func TestGate_ReattachUsesFreshSubscription(t *testing.T) {
	src := visibility.NewManual(visibility.Hidden)
	sw := &recordingSwitch{}
	g := NewGate(src, sw, testLogger())

	if err := g.Attach(); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	first := g.Subscription()
	g.Detach()

	if err := g.Attach(); err != nil {
		t.Fatalf("re-Attach() error = %v", err)
	}
	defer g.Detach()

	if g.Subscription() == first {
		t.Error("re-Attach reused the old subscription token")
	}
	if n := src.Listeners(); n != 1 {
		t.Errorf("listeners = %d after re-Attach, want 1", n)
	}
}

// tokenSource records which tokens were handed out and which came back.
type tokenSource struct {
	*visibility.Manual

	mu       sync.Mutex
	issued   []visibility.Subscription
	returned []visibility.Subscription
}

func (s *tokenSource) Subscribe(fn visibility.Listener) visibility.Subscription {
	sub := s.Manual.Subscribe(fn)
	s.mu.Lock()
	s.issued = append(s.issued, sub)
	s.mu.Unlock()
	return sub
}

func (s *tokenSource) Unsubscribe(sub visibility.Subscription) bool {
	s.mu.Lock()
	s.returned = append(s.returned, sub)
	s.mu.Unlock()
	return s.Manual.Unsubscribe(sub)
}

func TestGate_DetachReturnsSameToken(t *testing.T) {
	src := &tokenSource{Manual: visibility.NewManual(visibility.Visible)}
	g := NewGate(src, &recordingSwitch{}, testLogger())

	if err := g.Attach(); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	g.Detach()

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.issued) != 1 || len(src.returned) != 1 {
		t.Fatalf("issued %v, returned %v, want one each", src.issued, src.returned)
	}
	if src.issued[0] != src.returned[0] {
		t.Errorf("Detach returned %q, want %q", src.returned[0], src.issued[0])
	}
}
