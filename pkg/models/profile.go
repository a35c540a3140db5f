package models

import "time"

// SortType names a productivity type. The backend uses it both as the
// diagnosis result and as the key of a sort order.
type SortType string

const (
	SortPlanner  SortType = "planner"
	SortSprinter SortType = "sprinter"
	SortFlow     SortType = "flow"
)

// SortTypes lists the supported sort types in display order.
var SortTypes = []SortType{SortPlanner, SortSprinter, SortFlow}

// Valid reports whether t is a known sort type.
func (t SortType) Valid() bool {
	for _, s := range SortTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Next cycles to the following sort type.
func (t SortType) Next() SortType {
	for i, s := range SortTypes {
		if s == t {
			return SortTypes[(i+1)%len(SortTypes)]
		}
	}
	return SortPlanner
}

// SortSettings is the user's sort preference as stored by the backend.
type SortSettings struct {
	Type     SortType `json:"type"`
	AutoSort bool     `json:"auto_sort"`
}

// Profile is the user's diagnosis profile.
type Profile struct {
	MainType SortType       `json:"main_type"`
	SubType  string         `json:"sub_type"`
	Settings map[string]any `json:"settings,omitempty"`
}

// DiagnosisAnswer is one answered question of the diagnosis.
type DiagnosisAnswer struct {
	QIndex int    `json:"q_index"`
	Choice string `json:"choice"`
}

// DiagnosisResult is the backend's verdict for a submitted diagnosis.
type DiagnosisResult struct {
	MainType SortType `json:"main_type"`
	SubType  string   `json:"sub_type"`
}

// MetricsRange selects the window of the metrics summary.
type MetricsRange string

const (
	RangeDay   MetricsRange = "day"
	RangeWeek  MetricsRange = "week"
	RangeMonth MetricsRange = "month"
)

// MetricsSummary is the backend's focus summary for a range.
type MetricsSummary struct {
	TargetSeconds int64 `json:"target"`
	ActualSeconds int64 `json:"actual"`
	StreakDays    int   `json:"streak_days"`
	Heatmap       []any `json:"heatmap,omitempty"`
}

// ProgressPercent returns the share of the target reached, capped at 100.
func (m MetricsSummary) ProgressPercent() float64 {
	if m.TargetSeconds <= 0 {
		return 0
	}
	p := float64(m.ActualSeconds) / float64(m.TargetSeconds) * 100
	if p > 100 {
		return 100
	}
	return p
}

// SortedItem is one entry of the flat list returned by a sorted load.
// Top-level tasks have ParentID 0; subtasks point at their parent.
type SortedItem struct {
	ID              int64      `json:"id"`
	ParentID        int64      `json:"parent_id,omitempty"`
	Title           string     `json:"title"`
	Status          TaskStatus `json:"status"`
	Done            bool       `json:"done"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	EstimateMinutes int        `json:"estimate_min"`
	Importance      int        `json:"importance"`
	Tags            string     `json:"tags"`
	Shared          bool       `json:"shared"`
	Score           float64    `json:"score"`
}

// SortedPage is the result of a sorted load before it is reshaped.
type SortedPage struct {
	Items    []SortedItem `json:"tasks"`
	SortedAt *time.Time   `json:"sorted_at,omitempty"`
}
