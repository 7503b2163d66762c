package model

import (
	"time"

	"github.com/okian/sessiontrack/internal/domain/types"
)

// Client is a therapy client. Only the id matters to collection and analysis.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Birthdate string    `json:"birthdate"` // YYYY-MM-DD
	Info      *string   `json:"info"`
	CreatedAt time.Time `json:"created_at"`
}

// Behavior is a trackable action with a fixed collection method.
type Behavior struct {
	ID          int64          `json:"id"`
	ClientID    int64          `json:"client_id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Method      types.Method   `json:"method"`
	Settings    types.Settings `json:"settings"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Ref returns the summary used in aggregation responses.
func (b Behavior) Ref() BehaviorRef {
	return BehaviorRef{ID: b.ID, Name: b.Name, Method: b.Method}
}

// Skill is an acquisition target measured as percentage correct.
type Skill struct {
	ID          int64             `json:"id"`
	ClientID    int64             `json:"client_id"`
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Method      types.SkillMethod `json:"method"`
	SkillType   types.SkillType   `json:"skill_type"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Ref returns the summary used in aggregation responses.
func (s Skill) Ref() SkillRef {
	return SkillRef{ID: s.ID, Name: s.Name, Method: s.Method, SkillType: s.SkillType}
}

// Session is one timed observation period for a client.
type Session struct {
	ID        int64      `json:"id"`
	ClientID  int64      `json:"client_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

// Open reports whether the session has not been ended yet.
func (s Session) Open() bool {
	return s.EndedAt == nil
}
