// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/sessiontrack/internal/domain/types"
)

// BehaviorEvent is one observation recorded against a behavior in a session.
type BehaviorEvent struct {
	ID         int64           `json:"id"`
	SessionID  int64           `json:"session_id"`
	BehaviorID int64           `json:"behavior_id"`
	EventType  types.EventType `json:"event_type"`
	Value      *int64          `json:"value"`           // signed count delta or seconds (STOP)
	HappenedAt time.Time       `json:"happened_at"`     // caller clock, or server time when absent
	Extra      map[string]any  `json:"extra,omitempty"` // opaque, stored verbatim
}

// SkillEvent is one trial outcome recorded against a skill in a session.
type SkillEvent struct {
	ID         int64                `json:"id"`
	SessionID  int64                `json:"session_id"`
	SkillID    int64                `json:"skill_id"`
	EventType  types.SkillEventType `json:"event_type"`
	HappenedAt time.Time            `json:"happened_at"`
}

// BehaviorFact is a behavior event joined to the start time of its session,
// the shape the aggregation engine consumes.
type BehaviorFact struct {
	SessionID        int64
	SessionStartedAt time.Time
	EventType        types.EventType
	Value            *int64
}

// SkillFact is a skill event joined to the start time of its session.
type SkillFact struct {
	SessionID        int64
	SessionStartedAt time.Time
	EventType        types.SkillEventType
}

// DatePoint is one aggregated value for a calendar date.
type DatePoint struct {
	Date         string  `json:"date"` // YYYY-MM-DD
	Value        float64 `json:"value"`
	SessionCount int     `json:"session_count"`
}

// BehaviorRef identifies the behavior an aggregation was computed for.
type BehaviorRef struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Method types.Method `json:"method"`
}

// BehaviorPoints is the chart series for one behavior.
type BehaviorPoints struct {
	Behavior BehaviorRef `json:"behavior"`
	Points   []DatePoint `json:"points"`
}

// SkillRef identifies the skill an aggregation was computed for.
type SkillRef struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	Method    types.SkillMethod `json:"method"`
	SkillType types.SkillType   `json:"skill_type"`
}

// SkillPoints is the chart series for one skill.
type SkillPoints struct {
	Skill  SkillRef    `json:"skill"`
	Points []DatePoint `json:"points"`
}
