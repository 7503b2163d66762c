// Package simulate drives a running sessiontrack server with concurrent
// synthetic sessions and checks that the analyses match what was sent.
package simulate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL           string        // Base URL of the service
	Clients           int           // Clients to create
	SessionsPerClient int           // Sessions per client
	EventsPerSession  int           // Behavior events per session
	TrialsPerSession  int           // Skill trials per session
	BatchSize         int           // Events per POST
	InvalidRate       float64       // Share of deliberately invalid events, 0..1
	Workers           int           // Concurrent session workers
	Timeout           time.Duration // HTTP request timeout
	Seed              uint64        // Random seed; 0 picks one from the clock
	OutputFile        string        // Optional JSON dump of the generated plans
	Verbose           bool          // Log every session
	IntervalSeconds   int64         // interval_seconds for INTERVAL and MTS behaviors
	ProgressInterval  time.Duration // How often to log progress
}

// DefaultConfig returns a small run against a local server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "http://localhost:8080",
		Clients:           5,
		SessionsPerClient: 4,
		EventsPerSession:  40,
		TrialsPerSession:  10,
		BatchSize:         25,
		InvalidRate:       0.05,
		Workers:           4,
		Timeout:           10 * time.Second,
		IntervalSeconds:   30,
		ProgressInterval:  time.Second,
	}
}

// ErrInvalidConfig reports an unusable simulation setting.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.BaseURL) == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Clients <= 0 || c.SessionsPerClient <= 0:
		return fmt.Errorf("%w: clients and sessions must be positive", ErrInvalidConfig)
	case c.EventsPerSession < 0 || c.TrialsPerSession < 0:
		return fmt.Errorf("%w: event counts must not be negative", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	case c.InvalidRate < 0 || c.InvalidRate > 1:
		return fmt.Errorf("%w: invalid rate must be within [0, 1]", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.IntervalSeconds <= 0:
		return fmt.Errorf("%w: interval seconds must be positive", ErrInvalidConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	RunID            string        `json:"run_id"`
	ClientsCreated   int           `json:"clients_created"`
	BehaviorsCreated int           `json:"behaviors_created"`
	SkillsCreated    int           `json:"skills_created"`
	SessionsStarted  int64         `json:"sessions_started"`
	SessionsEnded    int64         `json:"sessions_ended"`
	EventsGenerated  int           `json:"events_generated"`
	EventsAccepted   int64         `json:"events_accepted"`
	EventsRejected   int64         `json:"events_rejected"`
	ExpectedRejected int           `json:"expected_rejected"`
	RequestsFailed   int64         `json:"requests_failed"`
	SeriesVerified   int           `json:"series_verified"`
	Mismatches       []string      `json:"mismatches"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Duration         time.Duration `json:"duration"`
}

// OK reports whether every request succeeded and every series matched.
func (s *Stats) OK() bool {
	return s.RequestsFailed == 0 && len(s.Mismatches) == 0 && s.EventsRejected == int64(s.ExpectedRejected)
}
