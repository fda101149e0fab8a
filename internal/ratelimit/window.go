package ratelimit

import (
	"sync"
	"time"
)

// Window caps requests over a rolling period using two fixed windows: the
// previous window's count is weighted by how much of it still overlaps the
// rolling period.
//
//	effective = current + previous × (1 - elapsed/period)
type Window struct {
	mu       sync.Mutex
	limit    int
	period   time.Duration
	start    time.Time
	current  int
	previous int
	now      func() time.Time
}

// NewWindow returns nil when limit <= 0; a nil Window admits everything.
func NewWindow(limit int, period time.Duration) *Window {
	return newWindow(limit, period, time.Now)
}

func newWindow(limit int, period time.Duration, now func() time.Time) *Window {
	if limit <= 0 || period <= 0 {
		return nil
	}
	return &Window{limit: limit, period: period, start: now(), now: now}
}

// rotate must be called with mu held.
func (w *Window) rotate() time.Duration {
	elapsed := w.now().Sub(w.start)
	if elapsed < w.period {
		return elapsed
	}
	passed := elapsed / w.period
	if passed == 1 {
		w.previous = w.current
	} else {
		w.previous = 0
	}
	w.current = 0
	w.start = w.start.Add(passed * w.period)
	return elapsed - passed*w.period
}

// effective must be called with mu held.
func (w *Window) effective() float64 {
	elapsed := w.rotate()
	overlap := 1 - float64(elapsed)/float64(w.period)
	return float64(w.current) + float64(w.previous)*max(overlap, 0)
}

func (w *Window) peek() bool {
	if w == nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.effective() < float64(w.limit)
}

func (w *Window) take() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.effective() < float64(w.limit) {
		w.current++
	}
}

// Remaining returns the approximate quota left, or -1 when unlimited.
func (w *Window) Remaining() int {
	if w == nil {
		return -1
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return max(int(float64(w.limit)-w.effective()), 0)
}
