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

const (
	behaviorColumns = "id, client_id, name, description, method, settings, created_at"
	skillColumns    = "id, client_id, name, description, method, skill_type, created_at"
)

// CreateBehavior inserts b and returns it with its assigned id.
func (s *SQLiteStore) CreateBehavior(ctx context.Context, b model.Behavior) (model.Behavior, error) {
	defer observe("create_behavior", time.Now())

	settings, err := json.Marshal(b.Settings)
	if err != nil {
		return model.Behavior{}, fmt.Errorf("encode settings: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO behaviors (client_id, name, description, method, settings, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		b.ClientID, b.Name, b.Description, string(b.Method), string(settings), formatTime(b.CreatedAt),
	)
	if err != nil {
		return model.Behavior{}, fmt.Errorf("insert behavior: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return model.Behavior{}, fmt.Errorf("behavior id: %w", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

// GetBehavior returns the behavior with id.
func (s *SQLiteStore) GetBehavior(ctx context.Context, id int64) (model.Behavior, error) {
	defer observe("get_behavior", time.Now())

	row := s.db.QueryRowContext(ctx, "SELECT "+behaviorColumns+" FROM behaviors WHERE id = ?", id)
	b, err := scanBehavior(row)
	if err != nil {
		return model.Behavior{}, notFound(err, "behavior", id)
	}
	return b, nil
}

// ListBehaviors returns the behaviors of clientID in creation order.
func (s *SQLiteStore) ListBehaviors(ctx context.Context, clientID int64) ([]model.Behavior, error) {
	defer observe("list_behaviors", time.Now())

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+behaviorColumns+" FROM behaviors WHERE client_id = ? ORDER BY id", clientID)
	if err != nil {
		return nil, fmt.Errorf("query behaviors: %w", err)
	}
	defer rows.Close()

	out := []model.Behavior{}
	for rows.Next() {
		b, err := scanBehavior(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBehavior(row rowScanner) (model.Behavior, error) {
	var (
		b           model.Behavior
		description sql.NullString
		method      string
		settings    string
		createdAt   string
	)
	if err := row.Scan(&b.ID, &b.ClientID, &b.Name, &description, &method, &settings, &createdAt); err != nil {
		return model.Behavior{}, err
	}
	if err := json.Unmarshal([]byte(settings), &b.Settings); err != nil {
		return model.Behavior{}, fmt.Errorf("decode settings of behavior %d: %w", b.ID, err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return model.Behavior{}, err
	}
	b.Description = nullableString(description)
	b.Method = types.Method(method)
	b.CreatedAt = t
	return b, nil
}

// CreateSkill inserts sk and returns it with its assigned id.
func (s *SQLiteStore) CreateSkill(ctx context.Context, sk model.Skill) (model.Skill, error) {
	defer observe("create_skill", time.Now())

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO skills (client_id, name, description, method, skill_type, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		sk.ClientID, sk.Name, sk.Description, string(sk.Method), string(sk.SkillType), formatTime(sk.CreatedAt),
	)
	if err != nil {
		return model.Skill{}, fmt.Errorf("insert skill: %w", err)
	}
	if sk.ID, err = res.LastInsertId(); err != nil {
		return model.Skill{}, fmt.Errorf("skill id: %w", err)
	}
	sk.CreatedAt = sk.CreatedAt.UTC()
	return sk, nil
}

// GetSkill returns the skill with id.
func (s *SQLiteStore) GetSkill(ctx context.Context, id int64) (model.Skill, error) {
	defer observe("get_skill", time.Now())

	row := s.db.QueryRowContext(ctx, "SELECT "+skillColumns+" FROM skills WHERE id = ?", id)
	sk, err := scanSkill(row)
	if err != nil {
		return model.Skill{}, notFound(err, "skill", id)
	}
	return sk, nil
}

// ListSkills returns the skills of clientID in creation order.
func (s *SQLiteStore) ListSkills(ctx context.Context, clientID int64) ([]model.Skill, error) {
	defer observe("list_skills", time.Now())

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+skillColumns+" FROM skills WHERE client_id = ? ORDER BY id", clientID)
	if err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}
	defer rows.Close()

	out := []model.Skill{}
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

func scanSkill(row rowScanner) (model.Skill, error) {
	var (
		sk          model.Skill
		description sql.NullString
		method      string
		skillType   string
		createdAt   string
	)
	if err := row.Scan(&sk.ID, &sk.ClientID, &sk.Name, &description, &method, &skillType, &createdAt); err != nil {
		return model.Skill{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return model.Skill{}, err
	}
	sk.Description = nullableString(description)
	sk.Method = types.SkillMethod(method)
	sk.SkillType = types.SkillType(skillType)
	sk.CreatedAt = t
	return sk, nil
}
