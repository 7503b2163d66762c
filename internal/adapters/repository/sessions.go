package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/sessiontrack/internal/domain/model"
	"github.com/okian/sessiontrack/internal/domain/types"
)

// CreateSession inserts sess and returns it with its assigned id.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess model.Session) (model.Session, error) {
	defer observe("create_session", time.Now())

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (client_id, started_at) VALUES (?, ?)",
		sess.ClientID, formatTime(sess.StartedAt),
	)
	if err != nil {
		return model.Session{}, fmt.Errorf("insert session: %w", err)
	}
	if sess.ID, err = res.LastInsertId(); err != nil {
		return model.Session{}, fmt.Errorf("session id: %w", err)
	}
	sess.StartedAt = sess.StartedAt.UTC()
	sess.EndedAt = nil
	return sess, nil
}

// GetSession returns the session with id.
func (s *SQLiteStore) GetSession(ctx context.Context, id int64) (model.Session, error) {
	defer observe("get_session", time.Now())
	return getSession(ctx, s.db, id)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSession(ctx context.Context, q queryer, id int64) (model.Session, error) {
	var (
		sess      model.Session
		startedAt string
		endedAt   sql.NullString
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, client_id, started_at, ended_at FROM sessions WHERE id = ?", id,
	).Scan(&sess.ID, &sess.ClientID, &startedAt, &endedAt)
	if err != nil {
		return model.Session{}, notFound(err, "session", id)
	}
	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return model.Session{}, err
	}
	if sess.EndedAt, err = nullableTime(endedAt); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// AppendEvents inserts the behavior then the skill events in one transaction.
func (s *SQLiteStore) AppendEvents(ctx context.Context, behavior []model.BehaviorEvent, skill []model.SkillEvent) error {
	if len(behavior) == 0 && len(skill) == 0 {
		return nil
	}
	defer observe("append_events", time.Now())

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertEvents(ctx, tx, behavior, skill)
	})
}

// CloseSession inserts the final events and stamps ended_at in one
// transaction. Ending an already ended session moves ended_at forward.
func (s *SQLiteStore) CloseSession(ctx context.Context, id int64, endedAt time.Time, behavior []model.BehaviorEvent, skill []model.SkillEvent) (model.Session, error) {
	defer observe("close_session", time.Now())

	var out model.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertEvents(ctx, tx, behavior, skill); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "UPDATE sessions SET ended_at = ? WHERE id = ?", formatTime(endedAt), id)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if n == 0 {
			return types.NotFound("session", id)
		}
		out, err = getSession(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Session{}, err
	}
	return out, nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, behavior []model.BehaviorEvent, skill []model.SkillEvent) error {
	if len(behavior) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO behavior_events
			(session_id, behavior_id, event_type, value, happened_at, extra)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare behavior event statement: %w", err)
		}
		defer stmt.Close()

		for _, ev := range behavior {
			var extra any
			if len(ev.Extra) > 0 {
				raw, err := json.Marshal(ev.Extra)
				if err != nil {
					return fmt.Errorf("encode extra: %w", err)
				}
				extra = string(raw)
			}
			if _, err := stmt.ExecContext(ctx, ev.SessionID, ev.BehaviorID, string(ev.EventType),
				ev.Value, formatTime(ev.HappenedAt), extra); err != nil {
				return fmt.Errorf("insert behavior event: %w", err)
			}
		}
	}

	if len(skill) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO skill_events
			(session_id, skill_id, event_type, happened_at)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare skill event statement: %w", err)
		}
		defer stmt.Close()

		for _, ev := range skill {
			if _, err := stmt.ExecContext(ctx, ev.SessionID, ev.SkillID, string(ev.EventType),
				formatTime(ev.HappenedAt)); err != nil {
				return fmt.Errorf("insert skill event: %w", err)
			}
		}
	}
	return nil
}
