package observability

import (
	"fmt"
	"sort"
	"time"

	"github.com/valter-silva-au/focus/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionOverdue      = "task_overdue"
	ConditionDueSoon      = "task_due_soon"
	ConditionPastEstimate = "running_past_estimate"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	DueSoonHours int `yaml:"due_soon_hours" json:"due_soon_hours"`
}

// DefaultAlertThresholds returns the default alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{DueSoonHours: 24}
}

// TaskSource supplies the current task list.
type TaskSource interface {
	Tasks() []models.Task
}

// FocusSource supplies the current timer state.
type FocusSource interface {
	Snapshot() models.FocusSnapshot
}

// AlertEngine evaluates alert conditions against the loaded tasks.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	tasks      TaskSource
	focus      FocusSource
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine. focus may be nil, in which case
// estimate overruns are not checked. now defaults to time.Now.
func NewAlertEngine(tasks TaskSource, focus FocusSource, thresholds AlertThresholds, now func() time.Time) AlertEngine {
	if now == nil {
		now = time.Now
	}
	return &alertEngine{tasks: tasks, focus: focus, thresholds: thresholds, now: now}
}

// Evaluate checks every condition. Alerts are ordered by severity, then by
// condition and ID.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	if ae.tasks == nil {
		return nil, fmt.Errorf("evaluating alerts: no task source")
	}
	now := ae.now().UTC()
	tasks := ae.tasks.Tasks()

	var alerts []Alert
	alerts = append(alerts, ae.checkDeadlines(tasks, now)...)
	alerts = append(alerts, ae.checkEstimates(tasks, now)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		if a, b := severityRank(alerts[i].Severity), severityRank(alerts[j].Severity); a != b {
			return a < b
		}
		if alerts[i].Condition != alerts[j].Condition {
			return alerts[i].Condition < alerts[j].Condition
		}
		return alerts[i].ID < alerts[j].ID
	})
	return alerts, nil
}

func (ae *alertEngine) checkDeadlines(tasks []models.Task, now time.Time) []Alert {
	window := time.Duration(ae.thresholds.DueSoonHours) * time.Hour
	var alerts []Alert
	for _, t := range tasks {
		if t.Deadline == nil || t.Status == models.StatusDone {
			continue
		}
		left := t.Deadline.Sub(now)
		switch {
		case left < 0:
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("%s-%d", ConditionOverdue, t.ID),
				Condition:   ConditionOverdue,
				Severity:    SeverityHigh,
				Message:     fmt.Sprintf("%q is overdue by %s", t.Title, roundHours(-left)),
				TriggeredAt: now,
			})
		case window > 0 && left <= window:
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("%s-%d", ConditionDueSoon, t.ID),
				Condition:   ConditionDueSoon,
				Severity:    SeverityMedium,
				Message:     fmt.Sprintf("%q is due in %s", t.Title, roundHours(left)),
				TriggeredAt: now,
			})
		}
	}
	return alerts
}

func (ae *alertEngine) checkEstimates(tasks []models.Task, now time.Time) []Alert {
	if ae.focus == nil {
		return nil
	}
	snap := ae.focus.Snapshot()
	var alerts []Alert
	check := func(ref models.UnitRef, title string, estimate int) {
		st, ok := snap.StateFor(ref)
		if !ok || !st.Running() || estimate <= 0 {
			return
		}
		elapsed := time.Duration(st.Elapsed(now)) * time.Second
		limit := time.Duration(estimate) * time.Minute
		if elapsed <= limit {
			return
		}
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("%s-%s-%d", ConditionPastEstimate, ref.Kind, ref.ID),
			Condition:   ConditionPastEstimate,
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("%q has run %s past its %d minute estimate", title, (elapsed - limit).Truncate(time.Minute), estimate),
			TriggeredAt: now,
		})
	}
	for _, t := range tasks {
		check(models.TaskRef(t.ID), t.Title, t.EstimateMinutes)
		for _, s := range t.Subtasks {
			check(models.SubtaskRef(s.ID), s.Title, s.EstimateMinutes)
		}
	}
	return alerts
}

func roundHours(d time.Duration) string {
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	return d.Truncate(time.Hour).String()
}

func severityRank(s AlertSeverity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}
