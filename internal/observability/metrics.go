package observability

import (
	"fmt"
	"time"
)

// Metrics holds local focus metrics derived from the event log.
type Metrics struct {
	SessionsStarted int `json:"sessions_started"`
	Pauses          int `json:"pauses"`
	Resumes         int `json:"resumes"`
	Completions     int `json:"completions"`
	Resets          int `json:"resets"`
	TasksCreated    int `json:"tasks_created"`
	TasksDeleted    int `json:"tasks_deleted"`
	// FocusSeconds sums the elapsed time captured by pause and complete
	// events. Resumed segments are counted once, at their next pause.
	FocusSeconds int64            `json:"focus_seconds"`
	SecondsByDay map[string]int64 `json:"seconds_by_day"`
	// StreakDays counts consecutive days with focus time, ending today or
	// yesterday.
	StreakDays  int        `json:"streak_days"`
	EventCount  int        `json:"event_count"`
	OldestEvent *time.Time `json:"oldest_event,omitempty"`
	NewestEvent *time.Time `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since, now time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into
// metrics. now anchors the streak.
func (mc *metricsCalculator) Calculate(since, now time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{SecondsByDay: make(map[string]int64)}
	m.EventCount = len(events)

	// The elapsed value of a pause already includes everything before the
	// preceding resume, so only the increase since the last capture counts.
	captured := make(map[string]int64)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		key := fmt.Sprintf("%s-%d", event.UnitKind(), event.UnitID())
		switch event.Type {
		case "focus.started":
			m.SessionsStarted++
			captured[key] = 0
		case "focus.resumed":
			m.Resumes++
			captured[key] = event.ElapsedSeconds()
		case "focus.reset":
			m.Resets++
			captured[key] = 0
		case "focus.paused", "focus.completed":
			if event.Type == "focus.paused" {
				m.Pauses++
			} else {
				m.Completions++
			}
			delta := event.ElapsedSeconds() - captured[key]
			if delta > 0 {
				m.FocusSeconds += delta
				m.SecondsByDay[event.Time.Local().Format("2006-01-02")] += delta
			}
			captured[key] = event.ElapsedSeconds()
		case "task.created":
			m.TasksCreated++
		case "task.deleted":
			m.TasksDeleted++
		}
	}

	m.StreakDays = streak(m.SecondsByDay, now)
	return m, nil
}

func streak(byDay map[string]int64, now time.Time) int {
	day := now.Local()
	if byDay[day.Format("2006-01-02")] == 0 {
		day = day.AddDate(0, 0, -1)
	}
	n := 0
	for byDay[day.Format("2006-01-02")] > 0 {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}
