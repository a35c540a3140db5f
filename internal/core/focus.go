package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/focus/internal/timefmt"
	"github.com/valter-silva-au/focus/pkg/models"
)

var (
	// ErrInvalidTransition is returned when a unit's status does not allow
	// the requested operation.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnitNotFound is returned when a unit is not in the store.
	ErrUnitNotFound = errors.New("unit not found")
	// ErrResetNotConfirmed is returned by Reset without confirmation.
	ErrResetNotConfirmed = errors.New("reset requires confirmation")
	// ErrNothingTracked is returned when an operation needs a displayed timer
	// and there is none.
	ErrNothingTracked = errors.New("no unit is being tracked")
)

// FocusStatus is what a view shows for the displayed timer.
type FocusStatus struct {
	Ref     models.UnitRef `json:"unit"`
	Title   string         `json:"title"`
	Seconds int64          `json:"seconds"`
	Clock   string         `json:"clock"`
	Paused  bool           `json:"paused"`
	Peek    bool           `json:"peek,omitempty"`
	Active  bool           `json:"active"`
}

// FocusController owns what is running for both unit kinds. At most one
// unit is running at a time, and local state only changes after the
// backend confirms.
type FocusController interface {
	Start(ctx context.Context, ref models.UnitRef) error
	Pause(ctx context.Context, ref models.UnitRef) error
	Resume(ctx context.Context, ref models.UnitRef) error
	Complete(ctx context.Context, ref models.UnitRef) error
	Delete(ctx context.Context, taskID int64) error
	Peek(ctx context.Context, ref models.UnitRef) error
	Reset(ctx context.Context, confirmed bool) error
	Adopt(tasks []models.Task)
	Snapshot() models.FocusSnapshot
	Status(now time.Time) FocusStatus
}

type focusController struct {
	backend FocusBackend
	store   *Store
	clock   Clock
	events  EventLogger
	log     *logrus.Logger

	// sem serialises mutating operations, including their network calls.
	sem chan struct{}

	// mu guards the running states below. It is never held across a
	// backend call.
	mu            sync.RWMutex
	task          models.RunningState
	subtask       models.RunningState
	subtaskParent int64
	// shown is the kind of the unit last operated on; it picks the
	// displayed timer when neither clock is running.
	shown models.UnitKind
}

// NewFocusController creates a FocusController over store. events and log
// may be nil.
func NewFocusController(backend FocusBackend, store *Store, clock Clock, events EventLogger, log *logrus.Logger) FocusController {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &focusController{
		backend: backend,
		store:   store,
		clock:   clock,
		events:  events,
		log:     log,
		sem:     make(chan struct{}, 1),
	}
}

func (c *focusController) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *focusController) release() { <-c.sem }

// Start moves a todo unit to doing. The start time comes from the backend.
func (c *focusController) Start(ctx context.Context, ref models.UnitRef) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	unit, ok := c.store.Unit(ref)
	if !ok {
		return fmt.Errorf("starting %s: %w", ref, ErrUnitNotFound)
	}
	if st, tracked := c.stateFor(ref); tracked && unit.Status == models.StatusDoing {
		if st.Running() {
			return nil
		}
		if !st.Peek {
			c.continueLocal(ref, unit, st)
			return nil
		}
	}
	switch unit.Status {
	case models.StatusDone:
		return fmt.Errorf("starting %s: unit is done: %w", ref, ErrInvalidTransition)
	case models.StatusPaused:
		return fmt.Errorf("starting %s: unit is paused, resume it instead: %w", ref, ErrInvalidTransition)
	}

	if err := c.pauseOthers(ctx, ref); err != nil {
		return fmt.Errorf("starting %s: %w", ref, err)
	}
	startedAt, err := c.backend.StartUnit(ctx, ref)
	if err != nil {
		return fmt.Errorf("starting %s: %w", ref, err)
	}

	c.store.SetUnitState(ref, models.StatusDoing, &startedAt, nil)
	c.setState(ref, unit.ParentID, models.RunningState{ID: ref.ID, StartedAt: startedAt})
	c.clearOtherPeek(ref)

	c.log.WithFields(logrus.Fields{"unit": ref.Kind, "id": ref.ID}).Info("focus started")
	logEvent(c.events, EventFocusStarted, unitEventData(ref, 0))
	return nil
}

// Pause moves a doing unit to paused. The elapsed time is captured before
// the request is sent and becomes the frozen display value.
func (c *focusController) Pause(ctx context.Context, ref models.UnitRef) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	return c.pauseLocked(ctx, ref)
}

func (c *focusController) pauseLocked(ctx context.Context, ref models.UnitRef) error {
	unit, ok := c.store.Unit(ref)
	st, tracked := c.stateFor(ref)
	if !ok && !tracked {
		return fmt.Errorf("pausing %s: %w", ref, ErrUnitNotFound)
	}
	running := tracked && st.Running()
	if !running && unit.Status != models.StatusDoing {
		if unit.Status == models.StatusPaused {
			return nil
		}
		return fmt.Errorf("pausing %s: unit is %s: %w", ref, unit.Status, ErrInvalidTransition)
	}

	now := c.clock.Now()
	startedAt := st.StartedAt
	var elapsed int64
	switch {
	case running:
		elapsed = timefmt.ElapsedSeconds(startedAt, now)
	case tracked && !st.Peek:
		// Reset froze a doing unit locally; its value is already captured.
		elapsed = st.PausedSeconds
	default:
		startedAt = now
		if unit.StartedAt != nil {
			startedAt = *unit.StartedAt
		}
		elapsed = timefmt.ElapsedSeconds(startedAt, now)
	}

	if _, err := c.backend.PauseUnit(ctx, ref); err != nil {
		return fmt.Errorf("pausing %s: %w", ref, err)
	}

	c.store.SetUnitState(ref, models.StatusPaused, nil, nil)
	c.setState(ref, unit.ParentID, models.RunningState{
		ID:            ref.ID,
		StartedAt:     startedAt,
		Paused:        true,
		PausedSeconds: elapsed,
	})

	c.log.WithFields(logrus.Fields{"unit": ref.Kind, "id": ref.ID, "elapsed": elapsed}).Info("focus paused")
	logEvent(c.events, EventFocusPaused, unitEventData(ref, elapsed))
	return nil
}

// Resume moves a paused unit back to doing, back-dating the start so the
// displayed time continues from the paused value.
func (c *focusController) Resume(ctx context.Context, ref models.UnitRef) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	unit, ok := c.store.Unit(ref)
	if !ok {
		return fmt.Errorf("resuming %s: %w", ref, ErrUnitNotFound)
	}
	st, tracked := c.stateFor(ref)
	if tracked && unit.Status == models.StatusDoing {
		if st.Running() {
			return nil
		}
		if !st.Peek {
			c.continueLocal(ref, unit, st)
			return nil
		}
	}
	if unit.Status != models.StatusPaused {
		return fmt.Errorf("resuming %s: unit is %s: %w", ref, unit.Status, ErrInvalidTransition)
	}

	var paused int64
	if tracked && !st.Peek {
		paused = st.PausedSeconds
	} else {
		paused = c.historicalElapsed(ctx, unit)
	}

	if err := c.pauseOthers(ctx, ref); err != nil {
		return fmt.Errorf("resuming %s: %w", ref, err)
	}
	if err := c.backend.ResumeUnit(ctx, ref); err != nil {
		return fmt.Errorf("resuming %s: %w", ref, err)
	}

	startedAt := c.clock.Now().Add(-time.Duration(paused) * time.Second)
	c.store.SetUnitState(ref, models.StatusDoing, &startedAt, nil)
	c.setState(ref, unit.ParentID, models.RunningState{ID: ref.ID, StartedAt: startedAt})
	c.clearOtherPeek(ref)

	c.log.WithFields(logrus.Fields{"unit": ref.Kind, "id": ref.ID, "elapsed": paused}).Info("focus resumed")
	logEvent(c.events, EventFocusResumed, unitEventData(ref, paused))
	return nil
}

// continueLocal restarts a timer that was frozen by Reset while the backend
// still has the unit doing. No request is needed.
func (c *focusController) continueLocal(ref models.UnitRef, unit Unit, st models.RunningState) {
	startedAt := c.clock.Now().Add(-time.Duration(st.PausedSeconds) * time.Second)
	c.setState(ref, unit.ParentID, models.RunningState{ID: ref.ID, StartedAt: startedAt})
	logEvent(c.events, EventFocusResumed, unitEventData(ref, st.PausedSeconds))
}

// Complete marks a unit done and clears its own timer. Other timers are
// left alone.
func (c *focusController) Complete(ctx context.Context, ref models.UnitRef) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	unit, ok := c.store.Unit(ref)
	if !ok {
		return fmt.Errorf("completing %s: %w", ref, ErrUnitNotFound)
	}
	if unit.Status == models.StatusDone {
		return nil
	}

	completedAt, err := c.backend.CompleteUnit(ctx, ref)
	if err != nil {
		return fmt.Errorf("completing %s: %w", ref, err)
	}
	now := c.clock.Now()
	if completedAt == nil {
		completedAt = &now
	}

	var elapsed int64
	if st, tracked := c.stateFor(ref); tracked && !st.Peek {
		elapsed = st.Elapsed(now)
	}
	c.store.SetUnitState(ref, models.StatusDone, nil, completedAt)
	c.clearState(ref)

	c.log.WithFields(logrus.Fields{"unit": ref.Kind, "id": ref.ID, "elapsed": elapsed}).Info("focus completed")
	logEvent(c.events, EventFocusCompleted, unitEventData(ref, elapsed))
	return nil
}

// Delete removes a task and any timer that points into it.
func (c *focusController) Delete(ctx context.Context, taskID int64) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	ref := models.TaskRef(taskID)
	if _, ok := c.store.Task(taskID); !ok {
		return fmt.Errorf("deleting %s: %w", ref, ErrUnitNotFound)
	}
	if err := c.backend.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("deleting %s: %w", ref, err)
	}

	c.store.RemoveTask(taskID)
	c.mu.Lock()
	if c.task.ID == taskID {
		c.task = models.RunningState{}
	}
	if c.subtask.Active() && c.subtaskParent == taskID {
		c.subtask = models.RunningState{}
		c.subtaskParent = 0
	}
	c.mu.Unlock()

	c.log.WithField("id", taskID).Info("task deleted")
	logEvent(c.events, EventTaskDeleted, map[string]any{"unit": string(models.UnitTask), "id": taskID})
	return nil
}

// Peek shows the historical elapsed time of a unit without starting it.
func (c *focusController) Peek(ctx context.Context, ref models.UnitRef) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	unit, ok := c.store.Unit(ref)
	if !ok {
		return fmt.Errorf("peeking %s: %w", ref, ErrUnitNotFound)
	}
	if unit.Status == models.StatusDone || unit.Status == models.StatusDoing {
		return fmt.Errorf("peeking %s: unit is %s: %w", ref, unit.Status, ErrInvalidTransition)
	}
	if st, tracked := c.stateFor(ref); tracked && st.Paused {
		if err := c.pauseOthers(ctx, ref); err != nil {
			return fmt.Errorf("peeking %s: %w", ref, err)
		}
		c.mu.Lock()
		c.shown = ref.Kind
		c.mu.Unlock()
		c.clearOtherPeek(ref)
		return nil
	}

	past := c.historicalElapsed(ctx, unit)
	if err := c.pauseOthers(ctx, ref); err != nil {
		return fmt.Errorf("peeking %s: %w", ref, err)
	}

	now := c.clock.Now()
	c.setState(ref, unit.ParentID, models.RunningState{
		ID:            ref.ID,
		StartedAt:     now.Add(-time.Duration(past) * time.Second),
		Paused:        true,
		PausedSeconds: past,
		Peek:          true,
	})
	c.clearOtherPeek(ref)

	logEvent(c.events, EventFocusPeeked, unitEventData(ref, past))
	return nil
}

// Reset zeroes the displayed timer and leaves it paused. It is local only.
func (c *focusController) Reset(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrResetNotConfirmed
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	ref, _, ok := c.Snapshot().Display()
	if !ok {
		return ErrNothingTracked
	}
	now := c.clock.Now()
	c.mu.Lock()
	st := &c.task
	if ref.Kind == models.UnitSubtask {
		st = &c.subtask
	}
	st.StartedAt = now
	st.Paused = true
	st.PausedSeconds = 0
	c.shown = ref.Kind
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"unit": ref.Kind, "id": ref.ID}).Info("focus reset")
	logEvent(c.events, EventFocusReset, unitEventData(ref, 0))
	return nil
}

// Adopt takes over the running state the backend reports after a load.
// The first doing unit with a start time wins, tasks before subtasks.
// Tracked units the backend no longer reports as doing or paused are
// dropped.
func (c *focusController) Adopt(tasks []models.Task) {
	var (
		found  bool
		adopt  models.RunningState
		kind   models.UnitKind
		parent int64
	)
	for _, t := range tasks {
		if t.Status == models.StatusDoing && t.StartedAt != nil {
			adopt, kind, found = models.RunningState{ID: t.ID, StartedAt: *t.StartedAt}, models.UnitTask, true
			break
		}
	}
	if !found {
	outer:
		for _, t := range tasks {
			for _, st := range t.Subtasks {
				if st.Status == models.StatusDoing && st.StartedAt != nil {
					adopt, kind, parent, found = models.RunningState{ID: st.ID, StartedAt: *st.StartedAt}, models.UnitSubtask, t.ID, true
					break outer
				}
			}
		}
	}

	statuses := make(map[models.UnitRef]models.TaskStatus)
	parents := make(map[int64]int64)
	for _, t := range tasks {
		statuses[models.TaskRef(t.ID)] = t.Status
		for _, st := range t.Subtasks {
			statuses[models.SubtaskRef(st.ID)] = st.Status
			parents[st.ID] = t.ID
		}
	}
	keep := func(s models.RunningState, ref models.UnitRef) models.RunningState {
		if !s.Active() {
			return s
		}
		status, ok := statuses[ref]
		switch {
		case !ok || status == models.StatusDone:
			return models.RunningState{}
		case s.Peek && status == models.StatusTodo:
			return s
		case status == models.StatusPaused && s.Paused:
			return s
		}
		return models.RunningState{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.task = keep(c.task, models.TaskRef(c.task.ID))
	c.subtask = keep(c.subtask, models.SubtaskRef(c.subtask.ID))
	if c.subtask.Active() {
		c.subtaskParent = parents[c.subtask.ID]
	} else {
		c.subtaskParent = 0
	}
	if !found {
		return
	}
	c.shown = kind
	if kind == models.UnitTask {
		c.task = adopt
		if c.subtask.Running() {
			c.subtask = models.RunningState{}
			c.subtaskParent = 0
		}
	} else {
		c.subtask = adopt
		c.subtaskParent = parent
		if c.task.Running() {
			c.task = models.RunningState{}
		}
	}
	c.log.WithFields(logrus.Fields{"unit": kind, "id": adopt.ID}).Debug("adopted running unit")
}

// Snapshot returns a copy of both running states.
func (c *focusController) Snapshot() models.FocusSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.FocusSnapshot{Task: c.task, Subtask: c.subtask, SubtaskParent: c.subtaskParent, Shown: c.shown}
}

// Status returns the displayed timer evaluated at now.
func (c *focusController) Status(now time.Time) FocusStatus {
	ref, st, ok := c.Snapshot().Display()
	if !ok {
		return FocusStatus{Clock: timefmt.FormatClock(0)}
	}
	secs := st.Elapsed(now)
	fs := FocusStatus{
		Ref:     ref,
		Seconds: secs,
		Clock:   timefmt.FormatClock(secs),
		Paused:  st.Paused,
		Peek:    st.Peek,
		Active:  true,
	}
	if u, ok := c.store.Unit(ref); ok {
		fs.Title = u.Title
	}
	return fs
}

// pauseOthers pauses, through the backend, every running unit other than
// except. It stops at the first failure.
func (c *focusController) pauseOthers(ctx context.Context, except models.UnitRef) error {
	snap := c.Snapshot()
	var others []models.UnitRef
	seen := map[models.UnitRef]bool{except: true}
	add := func(r models.UnitRef) {
		if !seen[r] {
			seen[r] = true
			others = append(others, r)
		}
	}
	if snap.Task.Running() {
		add(models.TaskRef(snap.Task.ID))
	}
	if snap.Subtask.Running() {
		add(models.SubtaskRef(snap.Subtask.ID))
	}
	for _, r := range c.store.Doing() {
		add(r)
	}
	for _, r := range others {
		if err := c.pauseLocked(ctx, r); err != nil {
			return fmt.Errorf("stopping current unit: %w", err)
		}
	}
	return nil
}

// historicalElapsed estimates how long a unit has been worked on: the
// backend's focus-time total for tasks, then completedAt - startedAt, then
// now - startedAt.
func (c *focusController) historicalElapsed(ctx context.Context, u Unit) int64 {
	if u.Ref.Kind == models.UnitTask {
		secs, err := c.backend.FocusTime(ctx, u.Ref.ID)
		if err == nil {
			return secs
		}
		c.log.WithError(err).WithField("id", u.Ref.ID).Debug("focus-time lookup failed, using timestamps")
	}
	if u.StartedAt == nil {
		return 0
	}
	if u.CompletedAt != nil {
		return timefmt.ElapsedSeconds(*u.StartedAt, *u.CompletedAt)
	}
	return timefmt.ElapsedSeconds(*u.StartedAt, c.clock.Now())
}

func (c *focusController) stateFor(ref models.UnitRef) (models.RunningState, bool) {
	return c.Snapshot().StateFor(ref)
}

func (c *focusController) setState(ref models.UnitRef, parent int64, st models.RunningState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shown = ref.Kind
	if ref.Kind == models.UnitSubtask {
		c.subtask = st
		c.subtaskParent = parent
		return
	}
	c.task = st
}

func (c *focusController) clearState(ref models.UnitRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ref.Kind == models.UnitSubtask {
		if c.subtask.ID == ref.ID {
			c.subtask = models.RunningState{}
			c.subtaskParent = 0
		}
		return
	}
	if c.task.ID == ref.ID {
		c.task = models.RunningState{}
	}
}

// clearOtherPeek drops a display-only projection of the other unit kind
// once ref takes over the display.
func (c *focusController) clearOtherPeek(ref models.UnitRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ref.Kind == models.UnitTask && c.subtask.Peek {
		c.subtask = models.RunningState{}
		c.subtaskParent = 0
	}
	if ref.Kind == models.UnitSubtask && c.task.Peek {
		c.task = models.RunningState{}
	}
}

func unitEventData(ref models.UnitRef, elapsed int64) map[string]any {
	return map[string]any{
		"unit":            string(ref.Kind),
		"id":              ref.ID,
		"elapsed_seconds": elapsed,
	}
}
