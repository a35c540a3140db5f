// Package timefmt converts durations and backend timestamps to display
// strings. Everything here is a pure function of its arguments.
package timefmt

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order by ParseTimestamp. The backend emits
// RFC 3339 for aware datetimes and ISO without offset for naive ones.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// FormatClock renders seconds as HH:MM:SS. Hours are not capped at 99 and
// negative input renders as zero.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatDate renders a date as YYYY/M/D in local time. A nil date renders
// as the empty string.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	l := t.Local()
	return fmt.Sprintf("%d/%d/%d", l.Year(), int(l.Month()), l.Day())
}

// ElapsedSeconds returns the whole seconds between start and now, never
// negative.
func ElapsedSeconds(start, now time.Time) int64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// FormatRemaining describes the time left until deadline, or how long ago
// it passed.
func FormatRemaining(deadline *time.Time, now time.Time) string {
	if deadline == nil {
		return ""
	}
	d := deadline.Sub(now)
	if d < 0 {
		return "overdue " + compactDuration(-d)
	}
	return compactDuration(d) + " left"
}

// compactDuration keeps the two most significant units, e.g. "2d 3h" or
// "45m". Anything under a minute is "<1m".
func compactDuration(d time.Duration) string {
	d = d.Truncate(time.Minute)
	if d < time.Minute {
		return "<1m"
	}
	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)

	var parts []string
	switch {
	case days > 0:
		parts = append(parts, fmt.Sprintf("%dd", days))
		if hours > 0 {
			parts = append(parts, fmt.Sprintf("%dh", hours))
		}
	case hours > 0:
		parts = append(parts, fmt.Sprintf("%dh", hours))
		if minutes > 0 {
			parts = append(parts, fmt.Sprintf("%dm", minutes))
		}
	default:
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	return strings.Join(parts, " ")
}

// ParseTimestamp parses a backend timestamp. Empty strings and "null"
// yield nil without error. Timestamps without an offset are taken as UTC.
func ParseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", s)
}

// FormatTimestamp renders t the way the backend accepts it on input.
func FormatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
