// Package clockbus implements the single periodic tick that every other
// subsystem's timers are driven from (spec §4.8, §9 "CThread abstraction" /
// "no async/await, no global coroutine runtime").
//
// Rather than each component arming its own time.Timer or time.AfterFunc —
// the shape the teacher's pkg/bridge.TimerManager uses — every timer here is
// a plain millisecond counter advanced by one Clock(ms) call per tick. The
// main loop is the only thing that owns a real time.Ticker; everything
// downstream only ever sees elapsed milliseconds.
package clockbus

import (
	"context"
	"sync"
	"time"
)

// Ticker is implemented by any subsystem the Bus drives.
type Ticker interface {
	Clock(elapsedMs int64)
}

// Bus fans a periodic tick out to every registered Ticker, in registration
// order, single-threaded — matching spec §5's "one main thread runs the
// routing loop and drives the clock bus."
type Bus struct {
	mu      sync.Mutex
	tickers []Ticker
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register adds t to the set of tickers driven by future Clock calls.
func (b *Bus) Register(t Ticker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tickers = append(b.tickers, t)
}

// Clock advances every registered ticker by elapsedMs.
func (b *Bus) Clock(elapsedMs int64) {
	b.mu.Lock()
	tickers := append([]Ticker(nil), b.tickers...)
	b.mu.Unlock()

	for _, t := range tickers {
		t.Clock(elapsedMs)
	}
}

// Run drives the bus at interval granularity until ctx is cancelled (spec
// §4.8: "~10 ms granularity"). It is meant to be the body of the main
// thread's routing loop, or run on its own goroutine alongside it.
func (b *Bus) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			b.Clock(elapsed.Milliseconds())
		}
	}
}

// Timer is a millisecond counter with Start/Stop/HasExpired/IsRunning,
// advanced only by explicit Clock calls (spec §4.8). It holds no goroutine
// of its own.
type Timer struct {
	mu        sync.Mutex
	timeoutMs int64
	elapsedMs int64
	running   bool
}

// NewTimer returns a stopped Timer with the given timeout.
func NewTimer(timeoutMs int64) *Timer {
	return &Timer{timeoutMs: timeoutMs}
}

// SetTimeout changes the timer's timeout. It does not reset elapsed time.
func (t *Timer) SetTimeout(timeoutMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeoutMs = timeoutMs
}

// Start arms the timer from zero.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.elapsedMs = 0
	t.running = true
}

// Stop disarms the timer without resetting its elapsed count.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// IsRunning reports whether the timer is currently armed.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Clock advances the timer by elapsedMs while it is running. A no-op
// while stopped, so a stopped timer never reports expiry.
func (t *Timer) Clock(elapsedMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.elapsedMs += elapsedMs
	}
}

// HasExpired reports whether a running timer has reached its timeout.
func (t *Timer) HasExpired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running && t.elapsedMs >= t.timeoutMs
}

// Elapsed returns the milliseconds accumulated since the last Start.
func (t *Timer) Elapsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedMs
}
