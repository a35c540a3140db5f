package core

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Event types recorded by core services.
const (
	EventFocusStarted   = "focus.started"
	EventFocusPaused    = "focus.paused"
	EventFocusResumed   = "focus.resumed"
	EventFocusCompleted = "focus.completed"
	EventFocusReset     = "focus.reset"
	EventFocusPeeked    = "focus.peeked"
	EventTaskCreated    = "task.created"
	EventTaskDeleted    = "task.deleted"
	EventTasksSorted    = "tasks.sorted"
	EventDiagnosisDone  = "diagnosis.submitted"
)

// logEvent records an event when a logger is configured. Event log failures
// never fail the operation that produced them.
func logEvent(l EventLogger, eventType string, data map[string]any) {
	if l == nil {
		return
	}
	_ = l.LogEvent(eventType, data)
}
