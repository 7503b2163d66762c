package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/sessiontrack/pkg/logger"
)

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 2

// migrations are applied in order; index i brings the schema to version i+1.
var migrations = [][]string{ //nolint:gochecknoglobals // static schema
	// v1: clients, behaviors, sessions and the behavior event log.
	{
		`CREATE TABLE IF NOT EXISTS clients (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			birthdate  TEXT NOT NULL,
			info       TEXT,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS behaviors (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id   INTEGER NOT NULL REFERENCES clients(id),
			name        TEXT NOT NULL,
			description TEXT,
			method      TEXT NOT NULL,
			settings    TEXT NOT NULL DEFAULT '{}',
			created_at  TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id  INTEGER NOT NULL REFERENCES clients(id),
			started_at TEXT NOT NULL,
			ended_at   TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS behavior_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  INTEGER NOT NULL REFERENCES sessions(id),
			behavior_id INTEGER NOT NULL REFERENCES behaviors(id),
			event_type  TEXT NOT NULL,
			value       INTEGER,
			happened_at TEXT NOT NULL,
			extra       TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_behaviors_client ON behaviors(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_client ON sessions(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_behavior_events_behavior ON behavior_events(behavior_id)`,
		`CREATE INDEX IF NOT EXISTS idx_behavior_events_session ON behavior_events(session_id)`,
	},
	// v2: skills and the trial log.
	{
		`CREATE TABLE IF NOT EXISTS skills (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id   INTEGER NOT NULL REFERENCES clients(id),
			name        TEXT NOT NULL,
			description TEXT,
			method      TEXT NOT NULL DEFAULT 'PERCENTAGE',
			skill_type  TEXT NOT NULL DEFAULT 'OTHER',
			created_at  TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS skill_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  INTEGER NOT NULL REFERENCES sessions(id),
			skill_id    INTEGER NOT NULL REFERENCES skills(id),
			event_type  TEXT NOT NULL,
			happened_at TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_skills_client ON skills(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_skill_events_skill ON skill_events(skill_id)`,
		`CREATE INDEX IF NOT EXISTS idx_skill_events_session ON skill_events(session_id)`,
	},
}

// Migrate runs forward migrations to bring the database schema up to date.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("%w: creating schema_version table: %v", ErrMigration, err)
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("%w: found v%d, latest known v%d", ErrNewerStore, version, currentSchemaVersion)
	}

	for v := version; v < currentSchemaVersion; v++ {
		if err := s.migrateTo(ctx, v+1, migrations[v]); err != nil {
			return fmt.Errorf("%w: v%d: %v", ErrMigration, v+1, err)
		}
		s.logger.Info(ctx, "applied schema migration", logger.Int("version", v+1))
	}
	return nil
}

// SchemaVersion returns the applied schema version, 0 for a fresh database.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	version := 0
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// LatestSchemaVersion is the version Migrate brings a database to.
func LatestSchemaVersion() int {
	return currentSchemaVersion
}

func (s *SQLiteStore) migrateTo(ctx context.Context, version int, statements []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", version)
		return err
	})
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
