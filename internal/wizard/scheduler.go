package wizard

import (
	"sync"
	"time"
)

// DefaultAutoAdvanceDelay is how long a selection stays visible before the
// wizard moves on.
const DefaultAutoAdvanceDelay = 500 * time.Millisecond

// Transition keys for scheduled auto-advances.
const (
	TransitionObjective      = "objective"
	TransitionScenario       = "scenario"
	TransitionRole           = "role"
	TransitionUploadComplete = "upload_complete"
)

// Scheduler runs delayed tasks keyed by the transition they perform.
// Scheduling an existing key replaces the pending task.
type Scheduler struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*scheduledTask
	closed  bool
}

type scheduledTask struct {
	timer *time.Timer
}

// NewScheduler creates a scheduler. A non-positive delay uses DefaultAutoAdvanceDelay.
func NewScheduler(delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultAutoAdvanceDelay
	}
	return &Scheduler{
		delay:   delay,
		pending: make(map[string]*scheduledTask),
	}
}

// Schedule runs fn after the delay unless cancelled first. It reports false
// when the scheduler is closed.
func (s *Scheduler) Schedule(key string, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
		delete(s.pending, key)
	}

	task := &scheduledTask{}
	task.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		current, ok := s.pending[key]
		if !ok || current != task || s.closed {
			s.mu.Unlock()
			return
		}
		delete(s.pending, key)
		s.mu.Unlock()

		fn()
	})
	s.pending[key] = task
	return true
}

// Cancel stops the pending task for key. It reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.pending[key]
	if !ok {
		return false
	}
	task.timer.Stop()
	delete(s.pending, key)
	return true
}

// Pending reports whether a task is scheduled for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Close cancels every pending task. Tasks scheduled afterwards never run.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, task := range s.pending {
		task.timer.Stop()
		delete(s.pending, key)
	}
}
