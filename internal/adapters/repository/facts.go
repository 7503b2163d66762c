package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/sessiontrack/internal/domain/model"
	"github.com/okian/sessiontrack/internal/domain/types"
	"github.com/okian/sessiontrack/pkg/metrics"
)

// BehaviorFacts returns the events of behaviorID joined to the start time
// of their sessions.
func (s *SQLiteStore) BehaviorFacts(ctx context.Context, behaviorID int64) ([]model.BehaviorFact, error) {
	defer observe("behavior_facts", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.session_id, s.started_at, e.event_type, e.value
		FROM behavior_events e
		JOIN sessions s ON s.id = e.session_id
		WHERE e.behavior_id = ?
		ORDER BY e.id`, behaviorID)
	if err != nil {
		return nil, fmt.Errorf("query behavior events: %w", err)
	}
	defer rows.Close()

	out := []model.BehaviorFact{}
	for rows.Next() {
		var (
			f         model.BehaviorFact
			startedAt string
			eventType string
			value     sql.NullInt64
		)
		if err := rows.Scan(&f.SessionID, &startedAt, &eventType, &value); err != nil {
			return nil, err
		}
		if f.SessionStartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		f.EventType = types.EventType(eventType)
		if value.Valid {
			v := value.Int64
			f.Value = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SkillFacts returns the trials of skillID joined to the start time of
// their sessions.
func (s *SQLiteStore) SkillFacts(ctx context.Context, skillID int64) ([]model.SkillFact, error) {
	defer observe("skill_facts", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.session_id, s.started_at, e.event_type
		FROM skill_events e
		JOIN sessions s ON s.id = e.session_id
		WHERE e.skill_id = ?
		ORDER BY e.id`, skillID)
	if err != nil {
		return nil, fmt.Errorf("query skill events: %w", err)
	}
	defer rows.Close()

	out := []model.SkillFact{}
	for rows.Next() {
		var (
			f         model.SkillFact
			startedAt string
			eventType string
		)
		if err := rows.Scan(&f.SessionID, &startedAt, &eventType); err != nil {
			return nil, err
		}
		if f.SessionStartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		f.EventType = types.SkillEventType(eventType)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Counts returns the number of rows per table and refreshes the
// stored_records gauges.
func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	defer observe("counts", time.Now())

	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM clients),
			(SELECT COUNT(*) FROM behaviors),
			(SELECT COUNT(*) FROM skills),
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM behavior_events),
			(SELECT COUNT(*) FROM skill_events)`,
	).Scan(&c.Clients, &c.Behaviors, &c.Skills, &c.Sessions, &c.BehaviorEvents, &c.SkillEvents)
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}

	metrics.UpdateStoredRecords("clients", c.Clients)
	metrics.UpdateStoredRecords("behaviors", c.Behaviors)
	metrics.UpdateStoredRecords("skills", c.Skills)
	metrics.UpdateStoredRecords("sessions", c.Sessions)
	metrics.UpdateStoredRecords("behavior_events", c.BehaviorEvents)
	metrics.UpdateStoredRecords("skill_events", c.SkillEvents)
	return c, nil
}
