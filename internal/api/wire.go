package api

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/focus/internal/timefmt"
	"github.com/valter-silva-au/focus/pkg/models"
)

// Wire shapes mirror the backend's JSON. Timestamps stay strings here and
// are parsed explicitly so a malformed one is reported, not zeroed.

type subtaskWire struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Done        bool   `json:"done"`
	Status      string `json:"status"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
	EstimateMin int    `json:"estimate_min"`
}

type taskWire struct {
	ID          int64         `json:"id"`
	ParentID    *int64        `json:"parent_id"`
	Title       string        `json:"title"`
	Deadline    string        `json:"deadline"`
	EstimateMin int           `json:"estimate_min"`
	Tags        string        `json:"tags"`
	Importance  int           `json:"importance"`
	Status      string        `json:"status"`
	Done        bool          `json:"done"`
	StartedAt   string        `json:"started_at"`
	CompletedAt string        `json:"completed_at"`
	Shared      bool          `json:"shared"`
	Score       float64       `json:"score"`
	Subtasks    []subtaskWire `json:"subtasks"`
}

type tasksWire struct {
	Tasks []taskWire `json:"tasks"`
}

type sortedWire struct {
	Tasks    []taskWire `json:"tasks"`
	SortedAt string     `json:"sorted_at"`
}

type sortedAtWire struct {
	SortedAt string `json:"sorted_at"`
}

type startedWire struct {
	StartedAt     string `json:"started_at"`
	LoggedSeconds int64  `json:"logged_seconds"`
}

type pausedWire struct {
	LoggedSeconds int64 `json:"logged_seconds"`
}

type completedWire struct {
	CompletedAt string `json:"completed_at"`
}

type createdWire struct {
	ID int64 `json:"id"`
}

type focusTimeWire struct {
	TotalSeconds int64 `json:"total_seconds"`
}

type upsertWire struct {
	Items []models.SubtaskAck `json:"items"`
}

type createTaskBody struct {
	Title       string  `json:"title"`
	Deadline    *string `json:"deadline"`
	EstimateMin int     `json:"estimate_min"`
	Tags        string  `json:"tags"`
	Importance  int     `json:"importance"`
}

type upsertBody struct {
	Subtasks []models.SubtaskEdit `json:"subtasks"`
}

type diagnosisBody struct {
	Answers []models.DiagnosisAnswer `json:"answers"`
}

type diagnosisWire struct {
	MainType string  `json:"main_type"`
	SubType  *string `json:"sub_type"`
}

type profileWire struct {
	MainType *string        `json:"main_type"`
	SubType  *string        `json:"sub_type"`
	Settings map[string]any `json:"settings"`
}

type metricsWire struct {
	Ring struct {
		Target int64 `json:"target"`
		Actual int64 `json:"actual"`
	} `json:"ring"`
	Streak struct {
		Days int `json:"days"`
	} `json:"streak"`
	Heatmap []any `json:"heatmap"`
}

type okWire struct{}

func parseTimes(dst []**time.Time, src []string) error {
	for i, s := range src {
		t, err := timefmt.ParseTimestamp(s)
		if err != nil {
			return err
		}
		*dst[i] = t
	}
	return nil
}

func (w subtaskWire) toModel(parentID int64) (models.Subtask, error) {
	s := models.Subtask{
		ID:              w.ID,
		ParentTaskID:    parentID,
		Title:           w.Title,
		Done:            w.Done,
		Status:          statusOrTodo(w.Status),
		EstimateMinutes: w.EstimateMin,
	}
	if err := parseTimes([]**time.Time{&s.StartedAt, &s.CompletedAt}, []string{w.StartedAt, w.CompletedAt}); err != nil {
		return models.Subtask{}, fmt.Errorf("subtask %d: %w", w.ID, err)
	}
	return s, nil
}

func (w taskWire) toModel() (models.Task, error) {
	t := models.Task{
		ID:              w.ID,
		Title:           w.Title,
		Status:          statusOrTodo(w.Status),
		EstimateMinutes: w.EstimateMin,
		Importance:      w.Importance,
		Tags:            w.Tags,
		Shared:          w.Shared,
		Score:           w.Score,
		Subtasks:        make([]models.Subtask, 0, len(w.Subtasks)),
	}
	if err := parseTimes(
		[]**time.Time{&t.StartedAt, &t.CompletedAt, &t.Deadline},
		[]string{w.StartedAt, w.CompletedAt, w.Deadline},
	); err != nil {
		return models.Task{}, fmt.Errorf("task %d: %w", w.ID, err)
	}
	for _, sw := range w.Subtasks {
		s, err := sw.toModel(w.ID)
		if err != nil {
			return models.Task{}, err
		}
		t.Subtasks = append(t.Subtasks, s)
	}
	return t, nil
}

func (w taskWire) toSortedItem() (models.SortedItem, error) {
	it := models.SortedItem{
		ID:              w.ID,
		Title:           w.Title,
		Status:          statusOrTodo(w.Status),
		Done:            w.Done,
		EstimateMinutes: w.EstimateMin,
		Importance:      w.Importance,
		Tags:            w.Tags,
		Shared:          w.Shared,
		Score:           w.Score,
	}
	if w.ParentID != nil {
		it.ParentID = *w.ParentID
	}
	if err := parseTimes(
		[]**time.Time{&it.StartedAt, &it.CompletedAt, &it.Deadline},
		[]string{w.StartedAt, w.CompletedAt, w.Deadline},
	); err != nil {
		return models.SortedItem{}, fmt.Errorf("item %d: %w", w.ID, err)
	}
	return it, nil
}

// statusOrTodo maps unknown or missing statuses to todo.
func statusOrTodo(s string) models.TaskStatus {
	st := models.TaskStatus(s)
	if _, ok := models.ValidStatuses[st]; ok {
		return st
	}
	return models.StatusTodo
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
