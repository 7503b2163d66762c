package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/sessiontrack/internal/domain/model"
)

// CreateClient inserts c and returns it with its assigned id.
func (s *SQLiteStore) CreateClient(ctx context.Context, c model.Client) (model.Client, error) {
	defer observe("create_client", time.Now())

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO clients (name, birthdate, info, created_at) VALUES (?, ?, ?, ?)",
		c.Name, c.Birthdate, c.Info, formatTime(c.CreatedAt),
	)
	if err != nil {
		return model.Client{}, fmt.Errorf("insert client: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return model.Client{}, fmt.Errorf("client id: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

// GetClient returns the client with id.
func (s *SQLiteStore) GetClient(ctx context.Context, id int64) (model.Client, error) {
	defer observe("get_client", time.Now())

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, birthdate, info, created_at FROM clients WHERE id = ?", id)
	c, err := scanClient(row)
	if err != nil {
		return model.Client{}, notFound(err, "client", id)
	}
	return c, nil
}

// ListClients returns every client ordered by name, then id.
func (s *SQLiteStore) ListClients(ctx context.Context) ([]model.Client, error) {
	defer observe("list_clients", time.Now())

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, birthdate, info, created_at FROM clients ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	out := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (model.Client, error) {
	var (
		c         model.Client
		info      sql.NullString
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Birthdate, &info, &createdAt); err != nil {
		return model.Client{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return model.Client{}, err
	}
	c.Info = nullableString(info)
	c.CreatedAt = t
	return c, nil
}
