package core

import (
	"sync"
	"time"

	"github.com/valter-silva-au/focus/pkg/models"
)

// Source records which load produced the current task list.
type Source string

const (
	SourceNone   Source = ""
	SourceFlat   Source = "flat"
	SourceSorted Source = "sorted"
)

// Unit is a flattened view of one task or subtask, enough for the focus
// controller to decide a transition.
type Unit struct {
	Ref         models.UnitRef
	Title       string
	Status      models.TaskStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	// ParentID is the owning task for subtasks, zero for tasks.
	ParentID int64
	// EstimateMinutes is zero when no estimate was given.
	EstimateMinutes int
}

// Store is the in-memory mirror of the backend's tasks. It is the source of
// the displayed order. All accessors return copies.
type Store struct {
	mu     sync.RWMutex
	tasks  []models.Task
	source Source
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a freshly loaded list.
func (s *Store) Replace(tasks []models.Task, source Source) {
	cp := make([]models.Task, len(tasks))
	for i, t := range tasks {
		cp[i] = t.Clone()
	}
	s.mu.Lock()
	s.tasks = cp
	s.source = source
	s.mu.Unlock()
}

// Source returns which load produced the current list.
func (s *Store) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Tasks returns a deep copy of all tasks in display order.
func (s *Store) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Len returns the number of top-level tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Task returns the task with the given id.
func (s *Store) Task(id int64) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return models.Task{}, false
}

// Subtask returns the subtask with the given id.
func (s *Store) Subtask(id int64) (models.Subtask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ti, si := s.subtaskIndex(id); ti >= 0 {
		return s.tasks[ti].Subtasks[si].Clone(), true
	}
	return models.Subtask{}, false
}

// Unit returns the flattened view of ref.
func (s *Store) Unit(ref models.UnitRef) (Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch ref.Kind {
	case models.UnitTask:
		if i := s.indexOf(ref.ID); i >= 0 {
			t := s.tasks[i]
			return Unit{
				Ref: ref, Title: t.Title, Status: t.Status,
				StartedAt: t.StartedAt, CompletedAt: t.CompletedAt,
				EstimateMinutes: t.EstimateMinutes,
			}, true
		}
	case models.UnitSubtask:
		if ti, si := s.subtaskIndex(ref.ID); ti >= 0 {
			st := s.tasks[ti].Subtasks[si]
			return Unit{
				Ref: ref, Title: st.Title, Status: st.Status,
				StartedAt: st.StartedAt, CompletedAt: st.CompletedAt,
				ParentID: s.tasks[ti].ID, EstimateMinutes: st.EstimateMinutes,
			}, true
		}
	}
	return Unit{}, false
}

// UpdateTask applies fn to the task with the given id.
func (s *Store) UpdateTask(id int64, fn func(*models.Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	fn(&s.tasks[i])
	return true
}

// UpdateSubtask applies fn to the subtask with the given id.
func (s *Store) UpdateSubtask(id int64, fn func(*models.Subtask)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ti, si := s.subtaskIndex(id)
	if ti < 0 {
		return false
	}
	fn(&s.tasks[ti].Subtasks[si])
	return true
}

// SetUnitState updates the lifecycle fields of ref.
func (s *Store) SetUnitState(ref models.UnitRef, status models.TaskStatus, startedAt, completedAt *time.Time) bool {
	if ref.Kind == models.UnitSubtask {
		return s.UpdateSubtask(ref.ID, func(st *models.Subtask) {
			st.Status = status
			if startedAt != nil {
				st.StartedAt = startedAt
			}
			if completedAt != nil {
				st.CompletedAt = completedAt
			}
			if status == models.StatusDone {
				st.Done = true
			}
		})
	}
	return s.UpdateTask(ref.ID, func(t *models.Task) {
		t.Status = status
		if startedAt != nil {
			t.StartedAt = startedAt
		}
		if completedAt != nil {
			t.CompletedAt = completedAt
		}
	})
}

// RemoveTask drops the task and its subtasks.
func (s *Store) RemoveTask(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return true
}

// Doing returns every unit whose status is doing, tasks first.
func (s *Store) Doing() []models.UnitRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var refs []models.UnitRef
	for _, t := range s.tasks {
		if t.Status == models.StatusDoing {
			refs = append(refs, models.TaskRef(t.ID))
		}
	}
	for _, t := range s.tasks {
		for _, st := range t.Subtasks {
			if st.Status == models.StatusDoing {
				refs = append(refs, models.SubtaskRef(st.ID))
			}
		}
	}
	return refs
}

// Move shifts a top-level task by delta positions, clamped to the list.
// It reports whether the order changed.
func (s *Store) Move(id int64, delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 || delta == 0 {
		return false
	}
	j := i + delta
	if j < 0 {
		j = 0
	}
	if j >= len(s.tasks) {
		j = len(s.tasks) - 1
	}
	if i == j {
		return false
	}
	t := s.tasks[i]
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.tasks = append(s.tasks[:j], append([]models.Task{t}, s.tasks[j:]...)...)
	return true
}

func (s *Store) indexOf(id int64) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) subtaskIndex(id int64) (int, int) {
	for ti := range s.tasks {
		for si := range s.tasks[ti].Subtasks {
			if s.tasks[ti].Subtasks[si].ID == id {
				return ti, si
			}
		}
	}
	return -1, -1
}
