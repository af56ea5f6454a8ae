// Package countdown implements the resend cooldown timer shared by the
// verification and reset flows.
package countdown

import (
	"sync"
	"time"
)

// Ticker is the subset of *time.Ticker the timer needs. Tests drive it by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealTicker wraps time.NewTicker.
func RealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Timer counts down from a start value once per tick and reports every value
// through onTick. Only one countdown runs at a time: Start replaces the
// previous one.
type Timer struct {
	interval  time.Duration
	newTicker TickerFactory

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func New(interval time.Duration, factory TickerFactory) *Timer {
	if factory == nil {
		factory = RealTicker
	}
	return &Timer{interval: interval, newTicker: factory}
}

// Start begins counting down from start. onTick runs on the timer goroutine
// with each new remaining value, ending with 0. The timer exits after 0.
func (t *Timer) Start(start int, onTick func(remaining int)) {
	t.Stop()
	if start <= 0 {
		return
	}

	t.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop = stop
	t.done = done
	ticker := t.newTicker(t.interval)
	t.mu.Unlock()

	go func() {
		defer ticker.Stop()
		defer close(done)

		remaining := start
		for remaining > 0 {
			select {
			case <-stop:
				return
			case <-ticker.C():
			}
			// A Stop racing with a tick must win, so check again before
			// publishing the value.
			select {
			case <-stop:
				return
			default:
			}
			remaining--
			onTick(remaining)
		}
	}()
}

// Stop cancels the running countdown and waits for its goroutine to exit.
// onTick is not called after Stop returns.
func (t *Timer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether a countdown goroutine is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
