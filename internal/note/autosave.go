package note

import (
	"sync"
	"time"
)

// DefaultAutosaveDelay is the debounce quiet period for editor keystrokes.
const DefaultAutosaveDelay = 300 * time.Millisecond

// Scheduler coalesces rapid edits into a single store mutation. At most one
// mutation is pending at a time; a later Schedule call supersedes an earlier
// one entirely, so the most recent edit always wins.
type Scheduler struct {
	mu      sync.Mutex
	delay   time.Duration
	gen     uint64
	timer   *time.Timer
	pending func()
}

// NewScheduler creates a scheduler with the given quiet period; zero or
// negative means DefaultAutosaveDelay.
func NewScheduler(delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Scheduler{delay: delay}
}

// Schedule cancels any pending mutation and arms fn to run after the quiet
// period elapses with no further Schedule calls.
func (s *Scheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	s.pending = fn
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	// A stale timer that lost the race to a newer Schedule or a Flush must
	// not run the superseding mutation early.
	if gen != s.gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	fn := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	fn()
}

// Flush runs the pending mutation immediately, if any.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	fn := s.pending
	s.pending = nil
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Stop discards the pending mutation without running it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.pending = nil
}

// Pending reports whether a mutation is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}
