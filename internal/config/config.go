// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // bucket zones resolve without a system zoneinfo
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches log output from text to JSON lines.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabasePath is the SQLite file; ":memory:" keeps data in process.
	DatabasePath string `koanf:"database_path"`

	// BucketTimezone is the IANA zone whose calendar dates group analyses.
	BucketTimezone string `koanf:"bucket_timezone"`

	// MaxBatchSize caps elements per ingest call; 0 disables the cap.
	MaxBatchSize int `koanf:"max_batch_size"`

	// AuthEnabled turns on the X-User-Role gate.
	AuthEnabled bool `koanf:"auth_enabled"`

	// CORSAllowOrigins is a comma-separated origin list; "*" allows any.
	CORSAllowOrigins string `koanf:"cors_allow_origins"`

	// MetricsEnabled exposes GET /metrics.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":8080",
		DatabasePath:     "sessiontrack.db",
		BucketTimezone:   "UTC",
		MaxBatchSize:     1000,
		AuthEnabled:      true,
		CORSAllowOrigins: "http://localhost:5173",
		MetricsEnabled:   true,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DatabasePath) == "":
		return fmt.Errorf("%w: database_path must not be empty", ErrInvalidConfig)
	case c.MaxBatchSize < 0:
		return fmt.Errorf("%w: max_batch_size must not be negative", ErrInvalidConfig)
	case c.ShutdownTimeout < 0:
		return fmt.Errorf("%w: shutdown_timeout must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves BucketTimezone. An empty zone means UTC.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.BucketTimezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.BucketTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: bucket_timezone %q: %w", ErrInvalidConfig, c.BucketTimezone, err)
	}
	return loc, nil
}

// Origins splits CORSAllowOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
