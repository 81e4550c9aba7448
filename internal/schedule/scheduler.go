package schedule

import (
	"errors"
	"sync"
	"time"

	"github.com/norm/trashminder/internal/window"
)

// ErrSchedulerClosed is returned by the Register methods after Stop. A
// caller drops the task and keeps going; a missed registration is not
// fatal to the monitoring cycle.
var ErrSchedulerClosed = errors.New("schedule: scheduler stopped")

// Scheduler is a process-wide timer registry. Tasks run on their own
// goroutines when their timers fire; the scheduler imposes no mutual
// exclusion between tasks.
type Scheduler struct {
	now func() time.Time

	mu     sync.Mutex
	closed bool
	nextID int
	timers map[int]*time.Timer
	stop   chan struct{}
}

// New returns an empty scheduler using the real clock.
func New() *Scheduler {
	return &Scheduler{
		now:    time.Now,
		timers: make(map[int]*time.Timer),
		stop:   make(chan struct{}),
	}
}

// SetNowFunc overrides the clock. Test hook; call before registering.
func (s *Scheduler) SetNowFunc(now func() time.Time) {
	s.now = now
}

// RegisterOnce schedules task to run once after delay.
func (s *Scheduler) RegisterOnce(delay time.Duration, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}

	id := s.nextID
	s.nextID++
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		task()
	})
	return nil
}

// RegisterWeekly schedules task at the next wall-clock occurrence of the
// given weekday and time of day, and every week thereafter.
func (s *Scheduler) RegisterWeekly(day window.Weekday, at window.TimeOfDay, task func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	stop := s.stop
	s.mu.Unlock()

	go func() {
		for {
			next := nextOccurrence(s.now(), day, at)
			timer := time.NewTimer(next.Sub(s.now()))
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
				task()
			}
		}
	}()
	return nil
}

// RegisterEvery schedules task after initial, then on a fixed period.
// Used by test mode, which bypasses the windowed plan entirely.
func (s *Scheduler) RegisterEvery(initial, period time.Duration, task func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	stop := s.stop
	s.mu.Unlock()

	go func() {
		timer := time.NewTimer(initial)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			task()
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				task()
			}
		}
	}()
	return nil
}

// Pending returns the number of one-shot tasks not yet fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all pending one-shot timers and terminates recurring
// registrations. Tasks already running are left to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.stop)
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// nextOccurrence returns the first instant strictly after now that falls
// on the given weekday at the given time of day.
func nextOccurrence(now time.Time, day window.Weekday, at window.TimeOfDay) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, at.Second, 0, now.Location())
	for window.WeekdayOf(candidate) != day || !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
