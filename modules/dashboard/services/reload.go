package services

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ReloadScheduler runs fire once after delay. Scheduling again replaces the
// pending run; Close cancels it for good.
type ReloadScheduler struct {
	clock clockwork.Clock
	delay time.Duration
	fire  func()

	mu     sync.Mutex
	timer  clockwork.Timer
	seq    uint64
	due    time.Time
	closed bool
}

func NewReloadScheduler(clock clockwork.Clock, delay time.Duration, fire func()) *ReloadScheduler {
	return &ReloadScheduler{clock: clock, delay: delay, fire: fire}
}

func (s *ReloadScheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.due = s.clock.Now().Add(s.delay)
	s.timer = s.clock.AfterFunc(s.delay, func() {
		s.mu.Lock()
		if s.closed || s.seq != seq {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		s.fire()
	})
}

// Due reports when the pending reload will run.
func (s *ReloadScheduler) Due() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return time.Time{}, false
	}
	return s.due, true
}

func (s *ReloadScheduler) Pending() bool {
	_, ok := s.Due()
	return ok
}

func (s *ReloadScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.seq++
}

func (s *ReloadScheduler) Close() {
	s.Cancel()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
