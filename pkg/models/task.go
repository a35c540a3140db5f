package models

import "time"

// TaskStatus represents the focus lifecycle state of a task or subtask.
type TaskStatus string

const (
	StatusTodo   TaskStatus = "todo"
	StatusDoing  TaskStatus = "doing"
	StatusPaused TaskStatus = "paused"
	StatusDone   TaskStatus = "done"
)

// ValidStatuses lists the statuses the backend may report.
var ValidStatuses = map[TaskStatus]struct{}{
	StatusTodo:   {},
	StatusDoing:  {},
	StatusPaused: {},
	StatusDone:   {},
}

// Importance bounds accepted by the backend.
const (
	MinImportance = 0
	MaxImportance = 3
)

// Task mirrors a task record owned by the backend. Subtasks are held in the
// order the backend returned them.
type Task struct {
	ID              int64      `json:"id" yaml:"id"`
	Title           string     `json:"title" yaml:"title"`
	Status          TaskStatus `json:"status" yaml:"status"`
	StartedAt       *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	EstimateMinutes int        `json:"estimate_min" yaml:"estimate_min"`
	Importance      int        `json:"importance" yaml:"importance"`
	Tags            string     `json:"tags" yaml:"tags"`
	Subtasks        []Subtask  `json:"subtasks" yaml:"subtasks"`
	Shared          bool       `json:"shared" yaml:"shared"`
	Score           float64    `json:"score,omitempty" yaml:"score,omitempty"`
}

// Subtask is a child unit of a Task. ParentTaskID is a back-reference only;
// the parent owns the subtask through its Subtasks slice.
type Subtask struct {
	ID              int64      `json:"id" yaml:"id"`
	ParentTaskID    int64      `json:"parent_id" yaml:"parent_id"`
	Title           string     `json:"title" yaml:"title"`
	Done            bool       `json:"done" yaml:"done"`
	Status          TaskStatus `json:"status" yaml:"status"`
	StartedAt       *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	EstimateMinutes int        `json:"estimate_min,omitempty" yaml:"estimate_min,omitempty"`
}

// Clone returns a deep copy of the task, including its subtasks and
// timestamps, so callers can hand it out without sharing mutable state.
func (t Task) Clone() Task {
	c := t
	c.StartedAt = cloneTime(t.StartedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.Deadline = cloneTime(t.Deadline)
	if t.Subtasks != nil {
		c.Subtasks = make([]Subtask, len(t.Subtasks))
		for i, s := range t.Subtasks {
			c.Subtasks[i] = s.Clone()
		}
	}
	return c
}

// Clone returns a deep copy of the subtask.
func (s Subtask) Clone() Subtask {
	c := s
	c.StartedAt = cloneTime(s.StartedAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CreateTaskInput holds the fields accepted by the task create endpoint.
type CreateTaskInput struct {
	Title           string     `json:"title"`
	Deadline        *time.Time `json:"deadline"`
	EstimateMinutes int        `json:"estimate_min"`
	Tags            string     `json:"tags"`
	Importance      int        `json:"importance"`
}

// SubtaskEdit is one entry of a bulk upsert. A zero ID creates a new subtask.
type SubtaskEdit struct {
	ID    int64   `json:"id,omitempty"`
	Title *string `json:"title,omitempty"`
	Done  bool    `json:"done"`
}

// SubtaskAck is the backend's confirmation for one upserted subtask.
type SubtaskAck struct {
	ID   int64 `json:"id"`
	Done bool  `json:"done"`
}
