// Package clock provides the timer capability used by the netpulse poller.
//
// Production code uses [System], which is backed by the time package.
// Tests use [Fake], which delivers ticks on demand and counts the tickers
// that are currently live, so leaked or duplicated timers can be asserted.
package clock

import "time"

// Clock creates tickers and reports the current time.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of [time.Ticker] the poller depends on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System is the real clock.
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }

func (s *systemTicker) Stop() { s.t.Stop() }
