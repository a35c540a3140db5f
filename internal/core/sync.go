package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/focus/pkg/models"
)

// ErrInvalidInput is returned when a create or edit request fails local
// validation before any request is sent.
var ErrInvalidInput = errors.New("invalid input")

// Synchronizer loads tasks from the backend into the store and pushes task
// edits back. Every load hands the fresh list to the focus controller so
// the backend's running state is adopted.
type Synchronizer struct {
	backend TaskBackend
	store   *Store
	focus   FocusController
	events  EventLogger
	log     *logrus.Logger
	// onCreate is called after a task was created, so the sort order can be
	// marked stale.
	onCreate func()
}

// NewSynchronizer creates a Synchronizer. events and log may be nil.
func NewSynchronizer(backend TaskBackend, store *Store, focus FocusController, events EventLogger, log *logrus.Logger) *Synchronizer {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Synchronizer{backend: backend, store: store, focus: focus, events: events, log: log}
}

// OnCreate registers fn to run after every successful create.
func (s *Synchronizer) OnCreate(fn func()) { s.onCreate = fn }

// Store returns the store the synchronizer fills.
func (s *Synchronizer) Store() *Store { return s.store }

// LoadAll performs a flat, unsorted load.
func (s *Synchronizer) LoadAll(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.backend.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	s.apply(tasks, SourceFlat)
	return tasks, nil
}

// LoadSorted performs a sorted load for sort type t and reshapes the flat
// parent/child list into nested tasks.
func (s *Synchronizer) LoadSorted(ctx context.Context, t models.SortType) (*models.SortedPage, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("loading sorted tasks: %q: %w", t, ErrInvalidSortType)
	}
	page, err := s.backend.ListSortedTasks(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("loading sorted tasks: %w", err)
	}
	tasks, orphans := NestSorted(page.Items)
	for _, o := range orphans {
		s.log.WithFields(logrus.Fields{"id": o.ID, "parent_id": o.ParentID}).Warn("dropping sorted item with unknown parent")
	}
	s.apply(tasks, SourceSorted)
	return page, nil
}

func (s *Synchronizer) apply(tasks []models.Task, source Source) {
	s.store.Replace(tasks, source)
	if s.focus != nil {
		s.focus.Adopt(tasks)
	}
	s.log.WithFields(logrus.Fields{"source": source, "tasks": len(tasks)}).Debug("tasks loaded")
}

// NestSorted rebuilds nested tasks from a flat sorted list. Top-level order
// and the order of subtasks under each parent follow the input. Items whose
// parent is not in the list are returned as orphans.
func NestSorted(items []models.SortedItem) ([]models.Task, []models.SortedItem) {
	var tasks []models.Task
	index := make(map[int64]int)
	for _, it := range items {
		if it.ParentID != 0 {
			continue
		}
		index[it.ID] = len(tasks)
		tasks = append(tasks, models.Task{
			ID:              it.ID,
			Title:           it.Title,
			Status:          it.Status,
			StartedAt:       it.StartedAt,
			CompletedAt:     it.CompletedAt,
			Deadline:        it.Deadline,
			EstimateMinutes: it.EstimateMinutes,
			Importance:      it.Importance,
			Tags:            it.Tags,
			Shared:          it.Shared,
			Score:           it.Score,
			Subtasks:        []models.Subtask{},
		})
	}
	var orphans []models.SortedItem
	for _, it := range items {
		if it.ParentID == 0 {
			continue
		}
		i, ok := index[it.ParentID]
		if !ok {
			orphans = append(orphans, it)
			continue
		}
		tasks[i].Subtasks = append(tasks[i].Subtasks, models.Subtask{
			ID:              it.ID,
			ParentTaskID:    it.ParentID,
			Title:           it.Title,
			Done:            it.Done,
			Status:          it.Status,
			StartedAt:       it.StartedAt,
			CompletedAt:     it.CompletedAt,
			EstimateMinutes: it.EstimateMinutes,
		})
	}
	return tasks, orphans
}

// ValidateCreateInput checks a create request before it is sent.
func ValidateCreateInput(in models.CreateTaskInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if in.Importance < models.MinImportance || in.Importance > models.MaxImportance {
		return fmt.Errorf("importance must be between %d and %d, got %d: %w",
			models.MinImportance, models.MaxImportance, in.Importance, ErrInvalidInput)
	}
	if in.EstimateMinutes < 0 {
		return fmt.Errorf("estimate must not be negative, got %d: %w", in.EstimateMinutes, ErrInvalidInput)
	}
	return nil
}

// CreateTask validates and creates a task, then reloads the list the same
// way it was last loaded.
func (s *Synchronizer) CreateTask(ctx context.Context, in models.CreateTaskInput, sortType models.SortType) (int64, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := ValidateCreateInput(in); err != nil {
		return 0, err
	}
	id, err := s.backend.CreateTask(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("creating task: %w", err)
	}
	s.log.WithField("id", id).Info("task created")
	logEvent(s.events, EventTaskCreated, map[string]any{"id": id, "title": in.Title})
	if s.onCreate != nil {
		s.onCreate()
	}

	if err := s.Reload(ctx, sortType); err != nil {
		return id, err
	}
	return id, nil
}

// Reload repeats the most recent kind of load.
func (s *Synchronizer) Reload(ctx context.Context, sortType models.SortType) error {
	if s.store.Source() == SourceSorted && sortType.Valid() {
		_, err := s.LoadSorted(ctx, sortType)
		return err
	}
	_, err := s.LoadAll(ctx)
	return err
}

// UpsertSubtasks creates or updates subtasks of a task. The store is only
// updated after the backend confirms; new subtasks are matched to the
// returned ids by position.
func (s *Synchronizer) UpsertSubtasks(ctx context.Context, taskID int64, edits []models.SubtaskEdit) ([]models.SubtaskAck, error) {
	if _, ok := s.store.Task(taskID); !ok {
		return nil, fmt.Errorf("editing subtasks of %s: %w", models.TaskRef(taskID), ErrUnitNotFound)
	}
	for i, e := range edits {
		if e.ID == 0 && (e.Title == nil || strings.TrimSpace(*e.Title) == "") {
			return nil, fmt.Errorf("new subtask %d needs a title: %w", i+1, ErrInvalidInput)
		}
	}
	acks, err := s.backend.UpsertSubtasks(ctx, taskID, edits)
	if err != nil {
		return nil, fmt.Errorf("editing subtasks of %s: %w", models.TaskRef(taskID), err)
	}

	byID := make(map[int64]models.SubtaskAck, len(acks))
	for _, a := range acks {
		byID[a.ID] = a
	}
	s.store.UpdateTask(taskID, func(t *models.Task) {
		known := make(map[int64]int, len(t.Subtasks))
		for i, st := range t.Subtasks {
			known[st.ID] = i
		}
		for i, e := range edits {
			if e.ID != 0 {
				if j, ok := known[e.ID]; ok {
					if a, ok := byID[e.ID]; ok {
						t.Subtasks[j].Done = a.Done
					}
					if e.Title != nil {
						t.Subtasks[j].Title = *e.Title
					}
				}
				continue
			}
			if i >= len(acks) {
				continue
			}
			a := acks[i]
			t.Subtasks = append(t.Subtasks, models.Subtask{
				ID:           a.ID,
				ParentTaskID: taskID,
				Title:        strings.TrimSpace(*e.Title),
				Done:         a.Done,
				Status:       models.StatusTodo,
			})
		}
	})
	return acks, nil
}

// FocusTime returns the backend's total focused seconds for a task.
func (s *Synchronizer) FocusTime(ctx context.Context, taskID int64) (int64, error) {
	secs, err := s.backend.FocusTime(ctx, taskID)
	if err != nil {
		return 0, fmt.Errorf("reading focus time of %s: %w", models.TaskRef(taskID), err)
	}
	return secs, nil
}
