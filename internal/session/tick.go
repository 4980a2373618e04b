package session

import (
	"sync"
	"time"
)

// TickSource delivers one signal per logical second while resumed. It is
// injected into the session loop so the countdown can be driven by the wall
// clock in production and by hand in tests. Suspend must stop delivery
// entirely; suspended seconds are never compensated for later.
type TickSource interface {
	C() <-chan time.Time
	Resume()
	Suspend()
	Stop()
}

// WallTicker is the production TickSource: a 1-second time.Ticker that
// exists only while resumed.
type WallTicker struct {
	mu     sync.Mutex
	out    chan time.Time
	cancel chan struct{} // non-nil while ticking
}

// NewWallTicker creates a suspended wall-clock tick source.
func NewWallTicker() *WallTicker {
	return &WallTicker{out: make(chan time.Time, 1)}
}

func (w *WallTicker) C() <-chan time.Time {
	return w.out
}

// Resume starts delivering one tick per second. Idempotent.
func (w *WallTicker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	cancel := make(chan struct{})
	w.cancel = cancel

	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-cancel:
				return
			case now := <-t.C:
				select {
				case w.out <- now:
				default:
					// Consumer is behind; dropping is correct — missed
					// ticks are never compensated.
				}
			}
		}
	}()
}

// Suspend stops tick delivery. Idempotent.
func (w *WallTicker) Suspend() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		close(w.cancel)
		w.cancel = nil
	}
}

// Stop permanently stops the source.
func (w *WallTicker) Stop() {
	w.Suspend()
}

// ManualTicker is a TickSource driven explicitly by tests.
type ManualTicker struct {
	out     chan time.Time
	mu      sync.Mutex
	resumed bool
}

// NewManualTicker creates a manual tick source with a generous buffer so
// tests can queue many ticks without a consumer.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{out: make(chan time.Time, 4096)}
}

func (m *ManualTicker) C() <-chan time.Time {
	return m.out
}

func (m *ManualTicker) Resume() {
	m.mu.Lock()
	m.resumed = true
	m.mu.Unlock()
}

func (m *ManualTicker) Suspend() {
	m.mu.Lock()
	m.resumed = false
	m.mu.Unlock()
}

func (m *ManualTicker) Stop() {
	m.Suspend()
}

// Resumed reports whether the source is currently resumed.
func (m *ManualTicker) Resumed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumed
}

// Tick queues one tick signal regardless of the resumed flag; tests use
// Resumed to assert suspension behavior separately.
func (m *ManualTicker) Tick() {
	m.out <- time.Now()
}
