// Package tasks owns the ordered task collection and every mutation of it.
//
// Operations never return errors: an empty text or an unknown id is a silent
// no-op, and persistence failures are logged and otherwise ignored.
package tasks

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/notify"
)

type Persister interface {
	Save(ctx context.Context, tasks []model.Task) error
}

type Scheduler interface {
	Schedule(task model.Task) (time.Duration, bool)
}

type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeDeleted ChangeKind = "deleted"
	ChangeToggled ChangeKind = "toggled"
	ChangeEdited  ChangeKind = "edited"
	ChangeFilter  ChangeKind = "filter"
)

type Change struct {
	Kind   ChangeKind
	TaskID string
	Filter model.Filter
}

type Config struct {
	Persister Persister
	Scheduler Scheduler
	Haptics   notify.Haptics
	Now       func() time.Time
	NewID     func() string
	// Initial is the collection loaded at startup, newest first.
	Initial []model.Task
}

type Store struct {
	persister Persister
	scheduler Scheduler
	haptics   notify.Haptics
	now       func() time.Time
	newID     func() string

	mu     sync.Mutex
	tasks  []model.Task
	filter model.Filter

	listenersMu sync.RWMutex
	listeners   map[int]func(Change)
	nextID      int
}

func New(cfg Config) *Store {
	s := &Store{
		persister: cfg.Persister,
		scheduler: cfg.Scheduler,
		haptics:   cfg.Haptics,
		now:       cfg.Now,
		newID:     cfg.NewID,
		tasks:     append([]model.Task(nil), cfg.Initial...),
		filter:    model.FilterAll,
		listeners: make(map[int]func(Change)),
	}
	if s.haptics == nil {
		s.haptics = notify.NoHaptics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	return s
}

// AddTask prepends a new task. It reports false, changing nothing, when text
// is blank.
func (s *Store) AddTask(text string, category model.Category, deadline *time.Time) (model.Task, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return model.Task{}, false
	}

	if parsed, ok := model.ParseCategory(string(category)); ok {
		category = parsed
	} else {
		category = model.DefaultCategory
	}

	task := model.Task{
		Text:      trimmed,
		Category:  category,
		CreatedAt: s.now(),
	}
	if deadline != nil {
		value := *deadline
		task.Deadline = &value
	}

	s.mu.Lock()
	task.ID = s.uniqueIDLocked()
	s.tasks = append([]model.Task{task}, s.tasks...)
	s.persistLocked()
	s.mu.Unlock()

	if task.Deadline != nil && s.scheduler != nil {
		s.scheduler.Schedule(task)
	}
	s.publish(Change{Kind: ChangeAdded, TaskID: task.ID})
	s.haptics.Pulse(50 * time.Millisecond)
	return task, true
}

func (s *Store) DeleteTask(id string) {
	s.mu.Lock()
	kept := s.tasks[:0:0]
	for _, task := range s.tasks {
		if task.ID != id {
			kept = append(kept, task)
		}
	}
	s.tasks = kept
	s.persistLocked()
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeDeleted, TaskID: id})
	s.haptics.Pulse(50*time.Millisecond, 50*time.Millisecond, 50*time.Millisecond)
}

func (s *Store) ToggleTask(id string) {
	s.mu.Lock()
	index := s.indexLocked(id)
	if index < 0 {
		s.mu.Unlock()
		return
	}
	s.tasks[index].Completed = !s.tasks[index].Completed
	s.persistLocked()
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeToggled, TaskID: id})
	s.haptics.Pulse(30 * time.Millisecond)
}

// EditTask replaces the text with its trimmed form. Unlike AddTask it does not
// reject a blank result.
func (s *Store) EditTask(id, newText string) {
	s.mu.Lock()
	index := s.indexLocked(id)
	if index < 0 {
		s.mu.Unlock()
		return
	}
	s.tasks[index].Text = strings.TrimSpace(newText)
	s.persistLocked()
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeEdited, TaskID: id})
}

// FilterTasks selects the active filter; unknown values are ignored.
func (s *Store) FilterTasks(filter model.Filter) {
	parsed, ok := model.ParseFilter(string(filter))
	if !ok {
		return
	}

	s.mu.Lock()
	s.filter = parsed
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeFilter, Filter: parsed})
}

func (s *Store) Filter() model.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// FilteredTasks returns the tasks matching the active filter in collection order.
func (s *Store) FilteredTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]model.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if s.filter.Matches(task) {
			result = append(result, cloneTask(task))
		}
	}
	return result
}

func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]model.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		result = append(result, cloneTask(task))
	}
	return result
}

func (s *Store) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(id)
	if index < 0 {
		return model.Task{}, false
	}
	return cloneTask(s.tasks[index]), true
}

// RearmReminders schedules reminders for every loaded task that still has a
// reminder point ahead of it. It returns how many were armed.
func (s *Store) RearmReminders() int {
	if s.scheduler == nil {
		return 0
	}
	armed := 0
	for _, task := range s.Tasks() {
		if task.Deadline == nil || task.Completed {
			continue
		}
		if _, ok := s.scheduler.Schedule(task); ok {
			armed++
		}
	}
	return armed
}

// Subscribe registers fn for change notifications. Listeners run on the
// goroutine that performed the mutation, after the store lock is released.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) publish(change Change) {
	s.listenersMu.RLock()
	listeners := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}

func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	snapshot := make([]model.Task, len(s.tasks))
	copy(snapshot, s.tasks)
	if err := s.persister.Save(context.Background(), snapshot); err != nil {
		slog.Error("save tasks", "error", err)
	}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) uniqueIDLocked() string {
	for {
		id := s.newID()
		if s.indexLocked(id) < 0 {
			return id
		}
	}
}

func cloneTask(task model.Task) model.Task {
	if task.Deadline != nil {
		deadline := *task.Deadline
		task.Deadline = &deadline
	}
	return task
}
