package service

import (
	"time"

	"github.com/okian/sessiontrack/internal/adapters/repository"
	"github.com/okian/sessiontrack/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects an already open store. The service does not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDatabasePath sets the SQLite database opened on Start when no store
// was injected.
func WithDatabasePath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.databasePath = path
		}
	}
}

// WithMaxBatchSize caps the number of elements per ingest call. Zero
// disables the cap; negative values are ignored.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxBatchSize = n
		}
	}
}

// WithLocation sets the time zone that defines calendar dates in analyses.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock sets the clock used for created_at, started_at, ended_at and
// for events without a usable happened_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
