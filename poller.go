package netpulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/netpulse/clock"
	"github.com/jpalmerr/netpulse/internal/metrics"
)

// Poller fetches a resource on a fixed cadence and exposes the outcome as a
// [Result].
//
// Start fetches immediately (or after the initial delay) and then on every
// tick until Stop. Ticks do not wait for earlier attempts, so attempts can
// overlap. Each attempt gets a sequence number; a resolution is applied
// only if its number is higher than the last applied one, so a slow early
// response can never overwrite a newer one. Stop and Dispose bump a
// generation counter and cancel in-flight contexts, and any response that
// still arrives for an older generation is discarded without a state
// change or notification.
//
// At most one ticker is live per Poller. Start, Stop and Dispose are safe
// for concurrent use and idempotent.
type Poller[T any] struct {
	name         string
	fetcher      Fetcher[T]
	interval     time.Duration
	initialDelay time.Duration
	timeout      time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	// lifeMu serializes Start, Stop and Dispose.
	lifeMu   sync.Mutex
	stopCh   chan struct{}
	loopDone chan struct{}
	cancel   context.CancelFunc

	// notifyMu keeps callbacks in the same order as the transitions.
	notifyMu sync.Mutex

	mu       sync.RWMutex
	state    Result[T]
	running  bool
	disposed bool
	gen      uint64
	seq      uint64
	applied  uint64
	onChange []func(Result[T])

	inflight sync.WaitGroup
}

// NewPoller creates a stopped [Poller] around fetcher.
//
// Defaults: 5 second interval, no initial delay, 10 second fetch timeout,
// the system clock and [slog.Default].
//
// Returns an error if fetcher is nil or an option is invalid.
func NewPoller[T any](fetcher Fetcher[T], opts ...PollerOption) (*Poller[T], error) {
	if fetcher == nil {
		return nil, errors.New("fetcher cannot be nil")
	}

	cfg := &pollerConfig{
		name:     defaultPollerName,
		interval: defaultInterval,
		timeout:  defaultFetchTimeout,
		clock:    clock.System,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	callbacks, err := typedCallbacks[T](cfg.onChange)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("widget", cfg.name)
	if e, ok := fetcher.(interface{ Endpoint() string }); ok {
		logger = logger.With("endpoint", e.Endpoint())
	}

	return &Poller[T]{
		name:         cfg.name,
		fetcher:      fetcher,
		interval:     cfg.interval,
		initialDelay: cfg.initialDelay,
		timeout:      cfg.timeout,
		clock:        cfg.clock,
		logger:       logger,
		onChange:     callbacks,
	}, nil
}

// Name returns the poller's name.
func (p *Poller[T]) Name() string {
	return p.name
}

// State returns the current snapshot. It has no side effects.
func (p *Poller[T]) State() Result[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Running reports whether the poller is started.
func (p *Poller[T]) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Start begins polling. It is a no-op if the poller is already running or
// has been disposed.
//
// Without an initial delay the first attempt is dispatched before Start
// returns, so State reports Loading immediately afterwards.
func (p *Poller[T]) Start() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.mu.Lock()
	if p.running || p.disposed {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.stopCh = make(chan struct{})
	p.loopDone = make(chan struct{})

	metrics.SetRunning(p.name, true)
	p.logger.Debug("poller started", "interval", p.interval.String())

	if p.initialDelay == 0 {
		p.attempt(ctx, gen)
	}
	go p.loop(ctx, gen, p.stopCh, p.loopDone)
}

// Stop halts polling. The ticker is stopped before Stop returns, and any
// attempt still in flight is cancelled and its result discarded. Stop is a
// no-op if the poller is not running.
func (p *Poller[T]) Stop() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	p.stopLocked()
}

// Dispose stops the poller for good, drops its callbacks and releases the
// fetcher's idle connections. Later calls to Start are no-ops. Safe to call
// multiple times.
func (p *Poller[T]) Dispose() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.stopLocked()

	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	p.mu.Unlock()

	// wait for callbacks already running so none fire after Dispose returns
	p.notifyMu.Lock()
	p.mu.Lock()
	p.onChange = nil
	p.mu.Unlock()
	p.notifyMu.Unlock()

	if c, ok := p.fetcher.(interface{ Close() }); ok {
		c.Close()
	}
	p.logger.Debug("poller disposed")
}

// Wait blocks until every dispatched attempt has resolved. It is meant for
// tests and orderly shutdown after Stop.
func (p *Poller[T]) Wait() {
	p.inflight.Wait()
}

// stopLocked requires lifeMu.
func (p *Poller[T]) stopLocked() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.gen++
	p.mu.Unlock()

	close(p.stopCh)
	p.cancel()
	<-p.loopDone

	p.stopCh, p.loopDone, p.cancel = nil, nil, nil

	metrics.SetRunning(p.name, false)
	p.logger.Debug("poller stopped")
}

// loop owns the poller's single ticker for one generation.
func (p *Poller[T]) loop(ctx context.Context, gen uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if p.initialDelay > 0 {
		delay := p.clock.NewTicker(p.initialDelay)
		select {
		case <-stop:
			delay.Stop()
			return
		case <-delay.C():
			delay.Stop()
		}
		p.attempt(ctx, gen)
	}

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			p.attempt(ctx, gen)
		}
	}
}

// attempt moves to Loading and dispatches one fetch for generation gen.
func (p *Poller[T]) attempt(ctx context.Context, gen uint64) {
	p.notifyMu.Lock()

	p.mu.Lock()
	if !p.running || p.gen != gen {
		p.mu.Unlock()
		p.notifyMu.Unlock()
		return
	}
	p.seq++
	seq := p.seq
	p.state = p.state.loading(seq)
	snapshot := p.state
	callbacks := p.onChange
	p.inflight.Add(1)
	p.mu.Unlock()

	p.notify(callbacks, snapshot)
	p.notifyMu.Unlock()

	metrics.AttemptStarted(p.name)
	go p.run(ctx, gen, seq)
}

// run performs the fetch and hands the outcome to resolve.
func (p *Poller[T]) run(ctx context.Context, gen, seq uint64) {
	defer p.inflight.Done()

	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	data, err := p.fetcher.Fetch(attemptCtx)
	metrics.AttemptFinished(p.name, time.Since(start))

	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = timeoutError(err, p.timeout)
	}

	p.resolve(gen, seq, data, err)
}

// timeoutError reports err, caused by the attempt deadline, as a transport
// failure that names the timeout. An existing TransportError keeps its Op.
// An ApplicationError is left alone since a response did arrive.
func timeoutError(err error, timeout time.Duration) error {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return err
	}
	op := "request"
	cause := err
	var tErr *TransportError
	if errors.As(err, &tErr) {
		op = tErr.Op
		if tErr.Err != nil {
			cause = tErr.Err
		}
	}
	return &TransportError{Op: op, Err: fmt.Errorf("timed out after %s: %w", timeout, cause)}
}

// resolve applies the outcome of attempt seq unless it is stale.
func (p *Poller[T]) resolve(gen, seq uint64, data T, err error) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if !p.running || p.gen != gen {
		p.mu.Unlock()
		metrics.Discarded(p.name, metrics.ReasonStopped)
		p.logger.Debug("discarding result", "seq", seq, "reason", ErrCancelled.Error(), "cause", "stopped")
		return
	}
	if seq < p.applied {
		applied := p.applied
		p.mu.Unlock()
		metrics.Discarded(p.name, metrics.ReasonStale)
		p.logger.Debug("discarding result", "seq", seq, "reason", ErrCancelled.Error(), "cause", "stale", "applied_seq", applied)
		return
	}

	p.applied = seq
	now := p.clock.Now()
	if err != nil {
		p.state = p.state.failure(ErrorMessage(err), now, seq)
	} else {
		p.state = p.state.success(data, now, seq)
	}
	snapshot := p.state
	callbacks := p.onChange
	p.mu.Unlock()

	if err != nil {
		metrics.Failure(p.name, failureKind(err))
		p.logger.Warn("poll failed", "seq", seq, "error", err.Error())
	} else {
		p.logger.Debug("poll succeeded", "seq", seq)
	}

	p.notify(callbacks, snapshot)
}

// notify requires notifyMu.
func (p *Poller[T]) notify(callbacks []func(Result[T]), snapshot Result[T]) {
	for _, cb := range callbacks {
		p.invokeSafe(cb, snapshot)
	}
}

// invokeSafe calls cb with panic recovery. The stack is logged under a
// correlation id.
func (p *Poller[T]) invokeSafe(cb func(Result[T]), r Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("on-change callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
				"seq", r.Seq,
			)
		}
	}()
	cb(r)
}
