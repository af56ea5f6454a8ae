package countdown

import "time"

// ManualTicker is a Ticker whose ticks are sent by the caller.
type ManualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{
		ch:      make(chan time.Time),
		stopped: make(chan struct{}),
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

func (m *ManualTicker) Stop() {
	select {
	case <-m.stopped:
	default:
		close(m.stopped)
	}
}

// Tick delivers one tick and reports whether the timer received it. It
// returns false once the timer stopped listening.
func (m *ManualTicker) Tick() bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-m.stopped:
		return false
	}
}

// ManualClock hands out ManualTickers and remembers the latest one.
type ManualClock struct {
	tickers chan *ManualTicker
}

func NewManualClock() *ManualClock {
	return &ManualClock{tickers: make(chan *ManualTicker, 16)}
}

// Factory is a TickerFactory recording every ticker it creates.
func (c *ManualClock) Factory(time.Duration) Ticker {
	t := NewManualTicker()
	c.tickers <- t
	return t
}

// Next returns the next ticker created by Factory, waiting up to timeout.
func (c *ManualClock) Next(timeout time.Duration) (*ManualTicker, bool) {
	select {
	case t := <-c.tickers:
		return t, true
	case <-time.After(timeout):
		return nil, false
	}
}
