package swap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// RunState is the run-wide mutable state. The cancel flag is one-way: once set it
// stays set for the lifetime of the state.
type RunState struct {
	loop      atomic.Int64
	cursor    atomic.Int64
	cancelled atomic.Bool

	stopOnce sync.Once
	stop     chan struct{}
}

func NewRunState() *RunState {
	return &RunState{stop: make(chan struct{})}
}

// Cancel sets the flag and reports whether this call was the one that set it.
// Safe to call any number of times from any goroutine.
func (s *RunState) Cancel() bool {
	first := s.cancelled.CompareAndSwap(false, true)
	s.stopOnce.Do(func() { close(s.stop) })
	return first
}

func (s *RunState) Cancelled() bool { return s.cancelled.Load() }

// Done is closed once Cancel has been called.
func (s *RunState) Done() <-chan struct{} { return s.stop }

// Loop is the 1-based loop currently executing, 0 before the first loop.
func (s *RunState) Loop() int { return int(s.loop.Load()) }

// Cursor is the 0-based index of the account currently being processed.
func (s *RunState) Cursor() int { return int(s.cursor.Load()) }

func (s *RunState) setLoop(n int)   { s.loop.Store(int64(n)) }
func (s *RunState) setCursor(i int) { s.cursor.Store(int64(i)) }

// Sleep waits for d, returning false early if the run is cancelled or ctx is done.
func (s *RunState) Sleep(ctx context.Context, d time.Duration) bool {
	if s.Cancelled() {
		return false
	}
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stop:
		return false
	case <-ctx.Done():
		return false
	}
}
