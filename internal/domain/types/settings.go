package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const intervalSecondsKey = "interval_seconds"

// Settings is the per-behavior configuration bag. IntervalSeconds is the only
// recognized option; other keys are kept verbatim so they survive storage
// and are echoed back to callers.
type Settings struct {
	// IntervalSeconds is set only when the stored value is a JSON integer.
	IntervalSeconds *int64

	extra map[string]json.RawMessage
}

// IntervalSettings returns Settings carrying only interval_seconds.
func IntervalSettings(seconds int64) Settings {
	return Settings{IntervalSeconds: &seconds}
}

// Raw returns the preserved value for key, if any. interval_seconds is
// reported here when it was supplied but is not an integer.
func (s Settings) Raw(key string) (json.RawMessage, bool) {
	v, ok := s.extra[key]
	return v, ok
}

// HasInterval reports whether the caller supplied interval_seconds in any form.
func (s Settings) HasInterval() bool {
	if s.IntervalSeconds != nil {
		return true
	}
	_, ok := s.extra[intervalSecondsKey]
	return ok
}

// MarshalJSON emits interval_seconds and every preserved key as one object.
func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.extra)+1)
	for k, v := range s.extra {
		out[k] = v
	}
	if s.IntervalSeconds != nil {
		out[intervalSecondsKey] = json.RawMessage(strconv.FormatInt(*s.IntervalSeconds, 10))
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts an object or null. interval_seconds is lifted into
// IntervalSeconds only when it is an integer literal; 5.0, "5" and true stay
// in the raw bag.
func (s *Settings) UnmarshalJSON(data []byte) error {
	*s = Settings{}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("settings must be an object: %w", err)
	}
	for k, v := range m {
		if k == intervalSecondsKey {
			if n, ok := integerLiteral(v); ok {
				s.IntervalSeconds = &n
				continue
			}
		}
		if s.extra == nil {
			s.extra = make(map[string]json.RawMessage)
		}
		s.extra[k] = v
	}
	return nil
}

func integerLiteral(raw json.RawMessage) (int64, bool) {
	n, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
