package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for timestamps read from the schedule document. Values
// without an offset are interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTime parses an ISO-8601 timestamp and returns it in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidScheduleTime)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	// Offsets written with a space separator, e.g. "2024-01-01 10:00:00+02:00".
	if t, err := time.Parse("2006-01-02 15:04:05.999999999Z07:00", s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 timestamp", ErrInvalidScheduleTime, s)
}

// Timestamp serializes as RFC 3339 UTC and accepts naive ISO-8601 on input.
// A value that does not parse is kept verbatim and written back unchanged, so
// one odd field never makes the whole document unreadable.
type Timestamp struct {
	time.Time
	raw json.RawMessage
}

func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.UTC()}
}

// Valid reports whether the value parsed as a timestamp.
func (t Timestamp) Valid() bool {
	return t.raw == nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.raw != nil {
		return t.raw, nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := ParseTime(s); err == nil {
			t.Time = parsed
			t.raw = nil
			return nil
		}
	}
	t.Time = time.Time{}
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}
