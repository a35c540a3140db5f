package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/valter-silva-au/focus/internal/timefmt"
	"github.com/valter-silva-au/focus/pkg/models"
)

// ListTasks fetches every task with its subtasks, unsorted.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var w tasksWire
	if err := c.getJSON(ctx, "/api/tasks/", nil, &w); err != nil {
		return nil, err
	}
	tasks := make([]models.Task, 0, len(w.Tasks))
	for _, tw := range w.Tasks {
		t, err := tw.toModel()
		if err != nil {
			return nil, &SoftError{Op: "GET /api/tasks/", Message: err.Error()}
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// ListSortedTasks fetches the flat, scored list for sort type t.
func (c *Client) ListSortedTasks(ctx context.Context, t models.SortType) (*models.SortedPage, error) {
	const path = "/api/tasks/sorted/"
	var w sortedWire
	if err := c.getJSON(ctx, path, url.Values{"type": {string(t)}}, &w); err != nil {
		return nil, err
	}
	page := &models.SortedPage{Items: make([]models.SortedItem, 0, len(w.Tasks))}
	for _, tw := range w.Tasks {
		it, err := tw.toSortedItem()
		if err != nil {
			return nil, &SoftError{Op: "GET " + path, Message: err.Error()}
		}
		page.Items = append(page.Items, it)
	}
	sortedAt, err := timefmt.ParseTimestamp(w.SortedAt)
	if err != nil {
		return nil, &SoftError{Op: "GET " + path, Message: err.Error()}
	}
	page.SortedAt = sortedAt
	return page, nil
}

// RecomputeOrder asks the backend to rescore tasks for sort type t.
func (c *Client) RecomputeOrder(ctx context.Context, t models.SortType) (*time.Time, error) {
	const path = "/api/tasks/recompute-order/"
	body, err := c.do(ctx, http.MethodPost, path, url.Values{"type": {string(t)}}, struct{}{})
	if err != nil {
		return nil, err
	}
	// This endpoint answers with a bare sorted_at; an explicit ok:false
	// is still honoured.
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.OK != nil && !*env.OK {
		_, err := Fail[sortedAtWire](env.Error).Unwrap("POST " + path)
		return nil, err
	}
	var w sortedAtWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &SoftError{Op: "POST " + path, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	sortedAt, err := timefmt.ParseTimestamp(w.SortedAt)
	if err != nil {
		return nil, &SoftError{Op: "POST " + path, Message: err.Error()}
	}
	return sortedAt, nil
}

// CreateTask creates a task and returns its id.
func (c *Client) CreateTask(ctx context.Context, in models.CreateTaskInput) (int64, error) {
	body := createTaskBody{
		Title:       in.Title,
		EstimateMin: in.EstimateMinutes,
		Tags:        in.Tags,
		Importance:  in.Importance,
	}
	if in.Deadline != nil {
		d := timefmt.FormatTimestamp(in.Deadline)
		body.Deadline = &d
	}
	w, err := postResult[createdWire](ctx, c, "/api/tasks/create/", nil, body)
	if err != nil {
		return 0, err
	}
	return w.ID, nil
}

// DeleteTask deletes a task and its subtasks.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	_, err := postResult[okWire](ctx, c, fmt.Sprintf("/api/tasks/%d/delete/", id), nil, struct{}{})
	return err
}

// StartUnit starts the unit and returns the backend's authoritative start.
func (c *Client) StartUnit(ctx context.Context, ref models.UnitRef) (time.Time, error) {
	path := unitPath(ref, "start")
	w, err := postResult[startedWire](ctx, c, path, nil, struct{}{})
	if err != nil {
		return time.Time{}, err
	}
	return requireTimestamp("POST "+path, "started_at", w.StartedAt)
}

// PauseUnit pauses the unit. The backend reports the seconds it logged,
// which the caller may ignore in favour of its own snapshot.
func (c *Client) PauseUnit(ctx context.Context, ref models.UnitRef) (int64, error) {
	w, err := postResult[pausedWire](ctx, c, unitPath(ref, "pause"), nil, struct{}{})
	if err != nil {
		return 0, err
	}
	return w.LoggedSeconds, nil
}

// ResumeUnit resumes the unit.
func (c *Client) ResumeUnit(ctx context.Context, ref models.UnitRef) error {
	_, err := postResult[startedWire](ctx, c, unitPath(ref, "resume"), nil, struct{}{})
	return err
}

// CompleteUnit completes the unit and returns the completion time when the
// backend reports one.
func (c *Client) CompleteUnit(ctx context.Context, ref models.UnitRef) (*time.Time, error) {
	path := unitPath(ref, "complete")
	w, err := postResult[completedWire](ctx, c, path, nil, struct{}{})
	if err != nil {
		return nil, err
	}
	at, err := timefmt.ParseTimestamp(w.CompletedAt)
	if err != nil {
		return nil, &SoftError{Op: "POST " + path, Message: err.Error()}
	}
	return at, nil
}

// FocusTime returns the total focused seconds the backend logged for a task.
func (c *Client) FocusTime(ctx context.Context, taskID int64) (int64, error) {
	path := fmt.Sprintf("/api/tasks/%d/focus-time/", taskID)
	body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return 0, err
	}
	w, err := decodeResult[focusTimeWire](body).Unwrap("GET " + path)
	if err != nil {
		return 0, err
	}
	return w.TotalSeconds, nil
}

// UpsertSubtasks creates or updates the subtasks of a task in one call.
func (c *Client) UpsertSubtasks(ctx context.Context, taskID int64, edits []models.SubtaskEdit) ([]models.SubtaskAck, error) {
	path := fmt.Sprintf("/api/subtasks/%d/bulk_upsert/", taskID)
	w, err := postResult[upsertWire](ctx, c, path, nil, upsertBody{Subtasks: edits})
	if err != nil {
		return nil, err
	}
	return w.Items, nil
}

// SubmitDiagnosis posts the answers and returns the resulting type.
func (c *Client) SubmitDiagnosis(ctx context.Context, answers []models.DiagnosisAnswer) (*models.DiagnosisResult, error) {
	w, err := postResult[diagnosisWire](ctx, c, "/api/diagnosis/submit/", nil, diagnosisBody{Answers: answers})
	if err != nil {
		return nil, err
	}
	return &models.DiagnosisResult{MainType: models.SortType(w.MainType), SubType: derefString(w.SubType)}, nil
}

// GetProfile returns the user's diagnosis profile.
func (c *Client) GetProfile(ctx context.Context) (*models.Profile, error) {
	var w profileWire
	if err := c.getJSON(ctx, "/api/profile/", nil, &w); err != nil {
		return nil, err
	}
	return &models.Profile{
		MainType: models.SortType(derefString(w.MainType)),
		SubType:  derefString(w.SubType),
		Settings: w.Settings,
	}, nil
}

// MetricsSummary returns the focus summary for range r.
func (c *Client) MetricsSummary(ctx context.Context, r models.MetricsRange) (*models.MetricsSummary, error) {
	if r == "" {
		r = models.RangeDay
	}
	var w metricsWire
	if err := c.getJSON(ctx, "/api/metrics/summary/", url.Values{"range": {string(r)}}, &w); err != nil {
		return nil, err
	}
	return &models.MetricsSummary{
		TargetSeconds: w.Ring.Target,
		ActualSeconds: w.Ring.Actual,
		StreakDays:    w.Streak.Days,
		Heatmap:       w.Heatmap,
	}, nil
}

// SaveSortSettings stores the user's sort preference on the backend.
func (c *Client) SaveSortSettings(ctx context.Context, s models.SortSettings) error {
	_, err := postResult[okWire](ctx, c, "/api/user/sort-settings/", nil, s)
	return err
}

func unitPath(ref models.UnitRef, action string) string {
	if ref.Kind == models.UnitSubtask {
		return fmt.Sprintf("/api/subtasks/%d/%s/", ref.ID, action)
	}
	return fmt.Sprintf("/api/tasks/%d/%s/", ref.ID, action)
}

func requireTimestamp(op, field, value string) (time.Time, error) {
	t, err := timefmt.ParseTimestamp(value)
	if err != nil {
		return time.Time{}, &SoftError{Op: op, Message: err.Error()}
	}
	if t == nil {
		return time.Time{}, &SoftError{Op: op, Message: "response is missing " + field}
	}
	return *t, nil
}
