// Package reminder arms one-shot notifications ahead of task deadlines.
//
// Reminders live only in memory: they do not survive a restart and cannot be
// cancelled per task, so a reminder for a deleted task still fires.
package reminder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/notify"
)

const DefaultLead = time.Hour

type Timer interface {
	Stop() bool
}

type Config struct {
	Notifier notify.Provider
	Lead     time.Duration
	Now      func() time.Time
	// AfterFunc defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
}

type Scheduler struct {
	notifier  notify.Provider
	lead      time.Duration
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) Timer

	mu      sync.Mutex
	nextID  int
	pending map[int]Timer
}

func New(cfg Config) *Scheduler {
	s := &Scheduler{
		notifier:  cfg.Notifier,
		lead:      cfg.Lead,
		now:       cfg.Now,
		afterFunc: cfg.AfterFunc,
		pending:   make(map[int]Timer),
	}
	if s.notifier == nil {
		s.notifier = notify.Unavailable{}
	}
	if s.lead <= 0 {
		s.lead = DefaultLead
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.afterFunc == nil {
		s.afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return s
}

// Schedule arms a reminder for task and returns the delay until it fires.
// Nothing is armed when the task has no deadline, notifications are not
// granted, or the reminder point has already passed.
func (s *Scheduler) Schedule(task model.Task) (time.Duration, bool) {
	if task.Deadline == nil {
		return 0, false
	}
	if s.notifier.Permission() != notify.PermissionGranted {
		return 0, false
	}

	delay := task.Deadline.Sub(s.now()) - s.lead
	if delay <= 0 {
		return 0, false
	}

	message := Message(task.Text)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.pending[id] = s.afterFunc(delay, func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()

		slog.Debug("reminder fired", "task_id", task.ID)
		s.notifier.Show(message)
	})
	s.mu.Unlock()

	slog.Debug("reminder scheduled", "task_id", task.ID, "in", delay)
	return delay, true
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop disarms every pending reminder. It is meant for process shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.pending {
		timer.Stop()
		delete(s.pending, id)
	}
}

func Message(text string) string {
	return fmt.Sprintf("Reminder: \"%s\" is due soon!", text)
}
