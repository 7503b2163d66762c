package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrMigration  = errors.New("schema migration failed")
	ErrEmptyPath  = errors.New("database path is empty")
	ErrNewerStore = errors.New("database schema is newer than this build")
)
