package testutil

import (
	"sync"
	"time"

	"github.com/roach88/rdsquote/internal/controller"
)

// ManualScheduler is a controller.Scheduler whose time only moves when the
// test calls Advance. Due callbacks run synchronously inside Advance, in
// deadline order (ties in scheduling order).
//
// Thread-safety: All methods are safe for concurrent use. Callbacks run
// without the scheduler lock held, so they may schedule further timers.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int64
	timers []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	id      int64
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

// NewManualScheduler creates a scheduler at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc arms a timer that fires once Advance reaches now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) controller.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t := &manualTimer{s: s, id: s.nextID, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Stop disarms the timer. Returns false if it already fired or was stopped.
func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d and runs every callback that falls due,
// including ones armed by earlier callbacks. Returns how many fired.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	fired := 0
	for {
		s.mu.Lock()
		t := s.nextDueLocked(target)
		if t == nil {
			s.now = target
			s.mu.Unlock()
			return fired
		}
		s.now = t.at
		t.fired = true
		s.mu.Unlock()

		t.f()
		fired++
	}
}

// nextDueLocked returns the earliest live timer due by target and drops dead ones.
func (s *ManualScheduler) nextDueLocked(target time.Duration) *manualTimer {
	live := s.timers[:0]
	var next *manualTimer
	for _, t := range s.timers {
		if t.stopped || t.fired {
			continue
		}
		live = append(live, t)
		if t.at > target {
			continue
		}
		if next == nil || t.at < next.at || (t.at == next.at && t.id < next.id) {
			next = t
		}
	}
	for i := len(live); i < len(s.timers); i++ {
		s.timers[i] = nil
	}
	s.timers = live
	return next
}

// Now returns the elapsed manual time.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Armed returns the number of timers that are neither stopped nor fired.
func (s *ManualScheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
