package models

import (
	"fmt"
	"time"
)

// UnitKind distinguishes the two kinds of trackable units.
type UnitKind string

const (
	UnitTask    UnitKind = "task"
	UnitSubtask UnitKind = "subtask"
)

// UnitRef names a single task or subtask.
type UnitRef struct {
	Kind UnitKind `json:"kind" yaml:"kind"`
	ID   int64    `json:"id" yaml:"id"`
}

// TaskRef returns a reference to the task with the given ID.
func TaskRef(id int64) UnitRef { return UnitRef{Kind: UnitTask, ID: id} }

// SubtaskRef returns a reference to the subtask with the given ID.
func SubtaskRef(id int64) UnitRef { return UnitRef{Kind: UnitSubtask, ID: id} }

// IsZero reports whether the reference names no unit.
func (r UnitRef) IsZero() bool { return r.ID == 0 }

func (r UnitRef) String() string {
	return fmt.Sprintf("%s %d", r.Kind, r.ID)
}

// RunningState is the locally held clock for one unit kind. ID is zero when
// nothing of that kind is tracked.
//
// While running, the displayed elapsed time is now - StartedAt. While paused
// it is PausedSeconds. Resuming back-dates StartedAt by PausedSeconds so the
// same formula keeps working after any number of pause/resume cycles.
type RunningState struct {
	ID            int64     `json:"id" yaml:"id"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	Paused        bool      `json:"paused" yaml:"paused"`
	PausedSeconds int64     `json:"paused_seconds" yaml:"paused_seconds"`
	// Peek marks a display-only projection of a unit that was never started
	// in this session.
	Peek bool `json:"peek,omitempty" yaml:"peek,omitempty"`
}

// Active reports whether the state tracks a unit.
func (s RunningState) Active() bool { return s.ID != 0 }

// Running reports whether the tracked unit's clock is advancing.
func (s RunningState) Running() bool { return s.ID != 0 && !s.Paused }

// Elapsed returns the whole seconds to display at now.
func (s RunningState) Elapsed(now time.Time) int64 {
	if !s.Active() {
		return 0
	}
	if s.Paused {
		return s.PausedSeconds
	}
	d := now.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// FocusSnapshot is a read-only projection of the controller state used by
// views.
type FocusSnapshot struct {
	Task    RunningState `json:"task"`
	Subtask RunningState `json:"subtask"`
	// SubtaskParent is the parent of the tracked subtask, if any.
	SubtaskParent int64 `json:"subtask_parent,omitempty"`
	// Shown is the kind of the unit most recently started, resumed, paused,
	// peeked or reset.
	Shown UnitKind `json:"shown,omitempty"`
}

// Display returns the unit whose timer is shown. A running timer always
// wins. Otherwise the most recently operated unit is shown while it is
// still tracked, falling back to the subtask timer.
func (f FocusSnapshot) Display() (UnitRef, RunningState, bool) {
	switch {
	case f.Subtask.Running():
		return SubtaskRef(f.Subtask.ID), f.Subtask, true
	case f.Task.Running():
		return TaskRef(f.Task.ID), f.Task, true
	case f.Shown == UnitTask && f.Task.Active():
		return TaskRef(f.Task.ID), f.Task, true
	case f.Subtask.Active():
		return SubtaskRef(f.Subtask.ID), f.Subtask, true
	case f.Task.Active():
		return TaskRef(f.Task.ID), f.Task, true
	}
	return UnitRef{}, RunningState{}, false
}

// AnyRunning reports whether any unit's clock is advancing.
func (f FocusSnapshot) AnyRunning() bool {
	return f.Task.Running() || f.Subtask.Running()
}

// StateFor returns the running state tracking ref, if any.
func (f FocusSnapshot) StateFor(ref UnitRef) (RunningState, bool) {
	switch ref.Kind {
	case UnitTask:
		if f.Task.ID == ref.ID && f.Task.Active() {
			return f.Task, true
		}
	case UnitSubtask:
		if f.Subtask.ID == ref.ID && f.Subtask.Active() {
			return f.Subtask, true
		}
	}
	return RunningState{}, false
}
