package ingest

import (
	"strings"
	"time"
)

// timestampLayouts are the ISO-8601 shapes accepted for happened_at, most
// specific first. Layouts without an offset are read as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.DateOnly,
}

// ParseTimestamp parses an ISO-8601 timestamp. A trailing Z is read as
// +00:00. The result is always in UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// happenedAt resolves the happened_at field of a raw event. Anything that is
// not a parsable string falls back to now.
func happenedAt(v any, now time.Time) time.Time {
	s, ok := v.(string)
	if !ok {
		return now
	}
	if t, ok := ParseTimestamp(s); ok {
		return t
	}
	return now
}
