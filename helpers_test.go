package netpulse

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type reply[T any] struct {
	data T
	err  error
}

// pendingCall is one Fetch call awaiting a scripted reply.
type pendingCall[T any] struct {
	ctx   context.Context
	reply chan reply[T]
}

func (c *pendingCall[T]) succeed(data T) { c.reply <- reply[T]{data: data} }

func (c *pendingCall[T]) fail(err error) { c.reply <- reply[T]{err: err} }

// controlledFetcher blocks every Fetch until the test replies to it.
// With ignoreCtx set it also ignores cancellation, modelling a transport
// that cannot abort a request already on the wire.
type controlledFetcher[T any] struct {
	ignoreCtx bool

	mu     sync.Mutex
	calls  []*pendingCall[T]
	closed atomic.Int32
}

func (f *controlledFetcher[T]) Fetch(ctx context.Context) (T, error) {
	c := &pendingCall[T]{ctx: ctx, reply: make(chan reply[T], 1)}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if f.ignoreCtx {
		r := <-c.reply
		return r.data, r.err
	}
	select {
	case r := <-c.reply:
		return r.data, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *controlledFetcher[T]) Close() { f.closed.Add(1) }

func (f *controlledFetcher[T]) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// call waits until call i exists and returns it.
func (f *controlledFetcher[T]) call(t *testing.T, i int) *pendingCall[T] {
	t.Helper()
	waitFor(t, "fetch call", func() bool { return f.count() > i })
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

// recordingSwitch counts Start and Stop calls.
type recordingSwitch struct {
	mu     sync.Mutex
	starts int
	stops  int
	log    []string
}

func (s *recordingSwitch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	s.log = append(s.log, "start")
}

func (s *recordingSwitch) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.log = append(s.log, "stop")
}

func (s *recordingSwitch) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}
