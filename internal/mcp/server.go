// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the focus timer and task list as MCP tools for AI assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/focus/internal/core"
	"github.com/valter-silva-au/focus/internal/observability"
	"github.com/valter-silva-au/focus/pkg/models"
)

// TaskSync is the part of core.Synchronizer the server needs.
type TaskSync interface {
	LoadAll(ctx context.Context) ([]models.Task, error)
	Store() *core.Store
}

// Server wraps the focus services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	sync        TaskSync
	focus       core.FocusController
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
	now         func() time.Time
}

// NewServer creates a new MCP server. metricsCalc and alertEngine may be nil
// if the event log is unavailable.
func NewServer(sync TaskSync, focus core.FocusController, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		sync:        sync,
		focus:       focus,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
		now:         time.Now,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "focus", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type subtaskOutput struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Done   bool   `json:"done"`
}

type taskOutput struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Status          string          `json:"status"`
	Deadline        string          `json:"deadline,omitempty"`
	EstimateMinutes int             `json:"estimate_min"`
	Importance      int             `json:"importance"`
	Tags            string          `json:"tags,omitempty"`
	Subtasks        []subtaskOutput `json:"subtasks,omitempty"`
}

type listTasksInput struct {
	Status  string `json:"status,omitempty" jsonschema:"filter tasks by status (todo, doing, paused, done)"`
	Refresh bool   `json:"refresh,omitempty" jsonschema:"reload the list from the server before answering"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type unitInput struct {
	Kind string `json:"kind,omitempty" jsonschema:"unit kind: task (default) or subtask"`
	ID   int64  `json:"id" jsonschema:"required,the task or subtask id"`
}

type focusStatusInput struct{}

type focusStatusOutput struct {
	Active  bool   `json:"active"`
	Kind    string `json:"kind,omitempty"`
	ID      int64  `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Seconds int64  `json:"seconds"`
	Clock   string `json:"clock"`
	Paused  bool   `json:"paused"`
	Peek    bool   `json:"peek,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	SessionsStarted int              `json:"sessions_started"`
	Pauses          int              `json:"pauses"`
	Completions     int              `json:"completions"`
	FocusSeconds    int64            `json:"focus_seconds"`
	SecondsByDay    map[string]int64 `json:"seconds_by_day"`
	StreakDays      int              `json:"streak_days"`
	TasksCreated    int              `json:"tasks_created"`
	EventCount      int              `json:"event_count"`
	OldestEvent     string           `json:"oldest_event,omitempty"`
	NewestEvent     string           `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks with their subtasks and an optional status filter (todo, doing, paused, done).",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "focus_status",
		Description: "Report the displayed focus timer: which unit, elapsed seconds, HH:MM:SS clock and whether it is paused.",
	}, s.handleFocusStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "start_focus",
		Description: "Start the focus timer on a task or subtask. Any other running unit is paused first.",
	}, s.unitHandler("start", func(ctx context.Context, ref models.UnitRef) error { return s.focus.Start(ctx, ref) }))

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "pause_focus",
		Description: "Pause the focus timer on a running task or subtask.",
	}, s.unitHandler("pause", func(ctx context.Context, ref models.UnitRef) error { return s.focus.Pause(ctx, ref) }))

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "resume_focus",
		Description: "Resume a paused task or subtask, continuing from its accumulated time.",
	}, s.unitHandler("resume", func(ctx context.Context, ref models.UnitRef) error { return s.focus.Resume(ctx, ref) }))

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "complete_unit",
		Description: "Mark a task or subtask done and stop its timer.",
	}, s.unitHandler("complete", func(ctx context.Context, ref models.UnitRef) error { return s.focus.Complete(ctx, ref) }))

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get local focus metrics from the event log: sessions, pauses, completions and focused seconds per day.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate deadline alerts (overdue, due soon, running past estimate) over the loaded tasks.",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(ctx context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	if input.Status != "" {
		if _, ok := models.ValidStatuses[models.TaskStatus(input.Status)]; !ok {
			return errorResult(fmt.Sprintf("invalid status %q: must be one of todo, doing, paused, done", input.Status)), listTasksOutput{}, nil
		}
	}
	if input.Refresh || s.sync.Store().Source() == core.SourceNone {
		if _, err := s.sync.LoadAll(ctx); err != nil {
			return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
		}
	}

	out := listTasksOutput{Tasks: []taskOutput{}}
	for _, t := range s.sync.Store().Tasks() {
		if input.Status != "" && string(t.Status) != input.Status {
			continue
		}
		out.Tasks = append(out.Tasks, taskToOutput(t))
	}
	out.Count = len(out.Tasks)
	return nil, out, nil
}

func (s *Server) handleFocusStatus(_ context.Context, _ *gomcp.CallToolRequest, _ focusStatusInput) (*gomcp.CallToolResult, focusStatusOutput, error) {
	return nil, statusToOutput(s.focus.Status(s.now())), nil
}

// unitHandler builds the handler shared by the timer tools. The task list
// is loaded on first use so the unit can be found.
func (s *Server) unitHandler(verb string, op func(context.Context, models.UnitRef) error) gomcp.ToolHandlerFor[unitInput, focusStatusOutput] {
	return func(ctx context.Context, _ *gomcp.CallToolRequest, input unitInput) (*gomcp.CallToolResult, focusStatusOutput, error) {
		ref, err := unitRef(input)
		if err != nil {
			return errorResult(err.Error()), focusStatusOutput{}, nil
		}
		if s.sync.Store().Source() == core.SourceNone {
			if _, err := s.sync.LoadAll(ctx); err != nil {
				return errorResult(fmt.Sprintf("loading tasks: %s", err)), focusStatusOutput{}, nil
			}
		}
		if err := op(ctx, ref); err != nil {
			msg := fmt.Sprintf("%s %s: %s", verb, ref, err)
			if errors.Is(err, core.ErrInvalidTransition) || errors.Is(err, core.ErrUnitNotFound) {
				msg = fmt.Sprintf("cannot %s %s: %s", verb, ref, err)
			}
			return errorResult(msg), focusStatusOutput{}, nil
		}
		return nil, statusToOutput(s.focus.Status(s.now())), nil
	}
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	now := s.now()
	sinceTime, err := parseSince(sinceStr, now)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime, now)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		SessionsStarted: metrics.SessionsStarted,
		Pauses:          metrics.Pauses,
		Completions:     metrics.Completions,
		FocusSeconds:    metrics.FocusSeconds,
		SecondsByDay:    metrics.SecondsByDay,
		StreakDays:      metrics.StreakDays,
		TasksCreated:    metrics.TasksCreated,
		EventCount:      metrics.EventCount,
	}
	if out.SecondsByDay == nil {
		out.SecondsByDay = map[string]int64{}
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func unitRef(in unitInput) (models.UnitRef, error) {
	if in.ID <= 0 {
		return models.UnitRef{}, fmt.Errorf("id must be a positive integer")
	}
	switch models.UnitKind(in.Kind) {
	case "", models.UnitTask:
		return models.TaskRef(in.ID), nil
	case models.UnitSubtask:
		return models.SubtaskRef(in.ID), nil
	}
	return models.UnitRef{}, fmt.Errorf("invalid kind %q: must be task or subtask", in.Kind)
}

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:              t.ID,
		Title:           t.Title,
		Status:          string(t.Status),
		EstimateMinutes: t.EstimateMinutes,
		Importance:      t.Importance,
		Tags:            t.Tags,
	}
	if t.Deadline != nil {
		out.Deadline = t.Deadline.Format(time.RFC3339)
	}
	for _, st := range t.Subtasks {
		out.Subtasks = append(out.Subtasks, subtaskOutput{ID: st.ID, Title: st.Title, Status: string(st.Status), Done: st.Done})
	}
	return out
}

func statusToOutput(fs core.FocusStatus) focusStatusOutput {
	out := focusStatusOutput{
		Active:  fs.Active,
		Title:   fs.Title,
		Seconds: fs.Seconds,
		Clock:   fs.Clock,
		Paused:  fs.Paused,
		Peek:    fs.Peek,
	}
	if fs.Active {
		out.Kind = string(fs.Ref.Kind)
		out.ID = fs.Ref.ID
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{SecondsByDay: make(map[string]int64)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
