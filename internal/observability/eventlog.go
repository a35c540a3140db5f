package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one recorded focus or task event.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN, ERROR
	Type    string         `json:"type"`  // e.g. "focus.started", "task.deleted"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// UnitKind returns the "unit" field of the event data, if present.
func (e Event) UnitKind() string {
	s, _ := e.Data["unit"].(string)
	return s
}

// UnitID returns the "id" field of the event data. Decoded events carry
// json.Number, in-memory events any integer type.
func (e Event) UnitID() int64 {
	return int64Field(e.Data, "id")
}

// ElapsedSeconds returns the "elapsed_seconds" field of the event data.
func (e Event) ElapsedSeconds() int64 {
	return int64Field(e.Data, "elapsed_seconds")
}

func int64Field(data map[string]any, key string) int64 {
	switch v := data[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, _ := v.Float64()
			return int64(f)
		}
		return n
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// EventFilter specifies criteria for reading events. Zero fields match
// everything.
type EventFilter struct {
	Since *time.Time
	Until *time.Time
	Type  string
	Level string
	Unit  string
	ID    int64
}

// EventLog defines the interface for writing and reading events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// maxEventLine bounds a single JSONL record.
const maxEventLine = 1 << 20

// jsonlEventLog appends one JSON object per line. Several processes (the
// board and one-shot commands) may append to the same file; each record
// is written with a single O_APPEND write.
type jsonlEventLog struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// NewJSONLEventLog opens, or creates, the JSONL event log at path. Missing
// parent directories are created.
func NewJSONLEventLog(path string) (EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, file: f}, nil
}

// Write appends event. Type is required; a zero Time is stamped with the
// current time and an empty Level becomes INFO.
func (l *jsonlEventLog) Write(event Event) error {
	if event.Type == "" {
		return fmt.Errorf("writing event: type is required")
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	event.Time = event.Time.UTC()
	if event.Level == "" {
		event.Level = "INFO"
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Type, err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return fmt.Errorf("writing %s event: log is closed", event.Type)
	}
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("writing %s event: %w", event.Type, err)
	}
	return nil
}

// Read returns the events matching filter in file order. Lines that do not
// decode are skipped. Numbers in Data are kept as json.Number so unit IDs
// survive the round trip exactly.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var event Event
		if err := dec.Decode(&event); err != nil || event.Type == "" {
			continue
		}
		if matchesEventFilter(event, filter) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}
	return events, nil
}

// Close closes the file. Later writes fail; Read keeps working.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

// matchesEventFilter checks whether an event satisfies all filter criteria.
func matchesEventFilter(event Event, filter EventFilter) bool {
	if filter.Since != nil && event.Time.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && event.Time.After(*filter.Until) {
		return false
	}
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.Level != "" && event.Level != filter.Level {
		return false
	}
	if filter.Unit != "" && event.UnitKind() != filter.Unit {
		return false
	}
	if filter.ID != 0 && event.UnitID() != filter.ID {
		return false
	}
	return true
}
