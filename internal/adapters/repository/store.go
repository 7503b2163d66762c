// Package repository persists clients, the behavior and skill taxonomy,
// sessions and their append-only event logs.
package repository

import (
	"context"
	"time"

	"github.com/okian/sessiontrack/internal/domain/model"
)

// Counts is the number of rows per table.
type Counts struct {
	Clients        int64 `json:"clients"`
	Behaviors      int64 `json:"behaviors"`
	Skills         int64 `json:"skills"`
	Sessions       int64 `json:"sessions"`
	BehaviorEvents int64 `json:"behavior_events"`
	SkillEvents    int64 `json:"skill_events"`
}

// Store provides read/write access to the session tracking state.
//
// Lookups of unknown ids return an error wrapping types.ErrNotFound. Every
// method that writes does so in a single transaction.
type Store interface {
	CreateClient(ctx context.Context, c model.Client) (model.Client, error)
	GetClient(ctx context.Context, id int64) (model.Client, error)
	// ListClients returns clients ordered by name.
	ListClients(ctx context.Context) ([]model.Client, error)

	CreateBehavior(ctx context.Context, b model.Behavior) (model.Behavior, error)
	GetBehavior(ctx context.Context, id int64) (model.Behavior, error)
	// ListBehaviors returns a client's behaviors in creation order.
	ListBehaviors(ctx context.Context, clientID int64) ([]model.Behavior, error)

	CreateSkill(ctx context.Context, s model.Skill) (model.Skill, error)
	GetSkill(ctx context.Context, id int64) (model.Skill, error)
	// ListSkills returns a client's skills in creation order.
	ListSkills(ctx context.Context, clientID int64) ([]model.Skill, error)

	CreateSession(ctx context.Context, s model.Session) (model.Session, error)
	GetSession(ctx context.Context, id int64) (model.Session, error)

	// AppendEvents inserts both batches in submission order.
	AppendEvents(ctx context.Context, behavior []model.BehaviorEvent, skill []model.SkillEvent) error
	// CloseSession inserts the final batches and stamps ended_at together.
	CloseSession(ctx context.Context, id int64, endedAt time.Time, behavior []model.BehaviorEvent, skill []model.SkillEvent) (model.Session, error)

	// BehaviorFacts returns every event of a behavior joined to its
	// session's start time, in insertion order.
	BehaviorFacts(ctx context.Context, behaviorID int64) ([]model.BehaviorFact, error)
	// SkillFacts returns every trial of a skill joined to its session's
	// start time, in insertion order.
	SkillFacts(ctx context.Context, skillID int64) ([]model.SkillFact, error)

	Counts(ctx context.Context) (Counts, error)
	Close() error
}
