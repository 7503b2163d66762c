// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/sessiontrack/internal/adapters/repository"
	"github.com/okian/sessiontrack/internal/domain/aggregate"
	"github.com/okian/sessiontrack/internal/domain/ingest"
	"github.com/okian/sessiontrack/internal/domain/model"
	"github.com/okian/sessiontrack/internal/domain/taxonomy"
	"github.com/okian/sessiontrack/internal/domain/types"
	"github.com/okian/sessiontrack/pkg/logger"
	"github.com/okian/sessiontrack/pkg/metrics"
)

const defaultMaxBatchSize = 1000

// Service implements the session tracking operations on top of a Store.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	ownsStore bool
	validator *ingest.Validator

	// Configuration
	databasePath string
	maxBatchSize int
	location     *time.Location
	now          func() time.Time

	// State
	started   bool
	startedAt time.Time

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		databasePath: repository.MemoryPath,
		maxBatchSize: defaultMaxBatchSize,
		location:     time.UTC,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = ingest.New(ingest.WithClock(s.now))
	return s
}

// Start opens the store unless one was injected.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting session tracking service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.databasePath, repository.WithLogger(s.logger.Named("repository")))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}

	s.started = true
	s.startedAt = s.now().UTC()
	s.logger.Info(ctx, "session tracking service started",
		logger.String("databasePath", s.databasePath),
		logger.Int("maxBatchSize", s.maxBatchSize),
		logger.String("bucketTimezone", s.location.String()),
	)
	return nil
}

// Stop closes the store if the service opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping session tracking service...")
	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing store", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}
	s.started = false
	s.logger.Info(context.Background(), "session tracking service stopped")
}

// repo returns the active store.
func (s *Service) repo() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started || s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// ClientInput is an unvalidated client registration.
type ClientInput struct {
	Name      string
	Birthdate string
	Info      *string
}

// CreateClient registers a client.
func (s *Service) CreateClient(ctx context.Context, in ClientInput) (model.Client, error) {
	store, err := s.repo()
	if err != nil {
		return model.Client{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Client{}, types.Invalid("name", "name is required")
	}
	birthdate := strings.TrimSpace(in.Birthdate)
	if _, err := time.Parse(time.DateOnly, birthdate); err != nil {
		return model.Client{}, types.Invalid("birthdate", "birthdate must be a date (YYYY-MM-DD)")
	}
	info := in.Info
	if info != nil && *info == "" {
		info = nil
	}

	c, err := store.CreateClient(ctx, model.Client{
		Name:      name,
		Birthdate: birthdate,
		Info:      info,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return model.Client{}, err
	}
	metrics.RecordEntityCreated("client")
	s.logger.Info(ctx, "client created", logger.Int64("client_id", c.ID))
	return c, nil
}

// GetClient returns one client.
func (s *Service) GetClient(ctx context.Context, id int64) (model.Client, error) {
	store, err := s.repo()
	if err != nil {
		return model.Client{}, err
	}
	return store.GetClient(ctx, id)
}

// ListClients returns every client ordered by name.
func (s *Service) ListClients(ctx context.Context) ([]model.Client, error) {
	store, err := s.repo()
	if err != nil {
		return nil, err
	}
	return store.ListClients(ctx)
}

// CreateBehavior defines a behavior for a client. The client must exist;
// method and settings must pass taxonomy validation.
func (s *Service) CreateBehavior(ctx context.Context, clientID int64, in taxonomy.BehaviorInput) (model.Behavior, error) {
	store, err := s.repo()
	if err != nil {
		return model.Behavior{}, err
	}
	if _, err := store.GetClient(ctx, clientID); err != nil {
		return model.Behavior{}, err
	}
	cfg, err := taxonomy.ValidateBehavior(in)
	if err != nil {
		return model.Behavior{}, err
	}

	b, err := store.CreateBehavior(ctx, model.Behavior{
		ClientID:    clientID,
		Name:        cfg.Name,
		Description: cfg.Description,
		Method:      cfg.Method,
		Settings:    cfg.Settings,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return model.Behavior{}, err
	}
	metrics.RecordEntityCreated("behavior")
	s.logger.Info(ctx, "behavior created",
		logger.Int64("behavior_id", b.ID),
		logger.Int64("client_id", clientID),
		logger.String("method", string(b.Method)),
	)
	return b, nil
}

// ListBehaviors returns a client's behaviors in creation order.
func (s *Service) ListBehaviors(ctx context.Context, clientID int64) ([]model.Behavior, error) {
	store, err := s.repo()
	if err != nil {
		return nil, err
	}
	if _, err := store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return store.ListBehaviors(ctx, clientID)
}

// CreateSkill defines a skill for a client.
func (s *Service) CreateSkill(ctx context.Context, clientID int64, in taxonomy.SkillInput) (model.Skill, error) {
	store, err := s.repo()
	if err != nil {
		return model.Skill{}, err
	}
	if _, err := store.GetClient(ctx, clientID); err != nil {
		return model.Skill{}, err
	}
	cfg, err := taxonomy.ValidateSkill(in)
	if err != nil {
		return model.Skill{}, err
	}

	sk, err := store.CreateSkill(ctx, model.Skill{
		ClientID:    clientID,
		Name:        cfg.Name,
		Description: cfg.Description,
		Method:      cfg.Method,
		SkillType:   cfg.SkillType,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return model.Skill{}, err
	}
	metrics.RecordEntityCreated("skill")
	s.logger.Info(ctx, "skill created",
		logger.Int64("skill_id", sk.ID),
		logger.Int64("client_id", clientID),
		logger.String("skill_type", string(sk.SkillType)),
	)
	return sk, nil
}

// ListSkills returns a client's skills in creation order.
func (s *Service) ListSkills(ctx context.Context, clientID int64) ([]model.Skill, error) {
	store, err := s.repo()
	if err != nil {
		return nil, err
	}
	if _, err := store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return store.ListSkills(ctx, clientID)
}

// StartSession opens a session for a client, stamped with the current time.
func (s *Service) StartSession(ctx context.Context, clientID int64) (model.Session, error) {
	store, err := s.repo()
	if err != nil {
		return model.Session{}, err
	}
	if _, err := store.GetClient(ctx, clientID); err != nil {
		return model.Session{}, err
	}
	sess, err := store.CreateSession(ctx, model.Session{ClientID: clientID, StartedAt: s.now().UTC()})
	if err != nil {
		return model.Session{}, err
	}
	metrics.RecordSessionStarted()
	s.logger.Info(ctx, "session started",
		logger.Int64("session_id", sess.ID),
		logger.Int64("client_id", clientID),
	)
	return sess, nil
}

// GetSession returns one session.
func (s *Service) GetSession(ctx context.Context, id int64) (model.Session, error) {
	store, err := s.repo()
	if err != nil {
		return model.Session{}, err
	}
	return store.GetSession(ctx, id)
}

// RecordEvents validates a raw behavior batch and persists the accepted
// elements in submission order. Invalid elements are skipped and reported.
func (s *Service) RecordEvents(ctx context.Context, sessionID int64, batch []any) (ingest.Report, error) {
	store, err := s.repo()
	if err != nil {
		return ingest.Report{}, err
	}
	if err := s.checkBatch("events", batch); err != nil {
		return ingest.Report{}, err
	}
	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return ingest.Report{}, err
	}
	res, err := s.validator.Behaviors(ctx, sess, batch, behaviorOwner(store))
	if err != nil {
		return ingest.Report{}, fmt.Errorf("validate events: %w", err)
	}
	if err := store.AppendEvents(ctx, res.Accepted, nil); err != nil {
		return ingest.Report{}, err
	}
	report := res.Report()
	s.recordIngest(ctx, "behavior", sessionID, len(batch), report)
	return report, nil
}

// RecordSkillEvents validates a raw skill batch and persists the accepted
// trials in submission order.
func (s *Service) RecordSkillEvents(ctx context.Context, sessionID int64, batch []any) (ingest.Report, error) {
	store, err := s.repo()
	if err != nil {
		return ingest.Report{}, err
	}
	if err := s.checkBatch("events", batch); err != nil {
		return ingest.Report{}, err
	}
	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return ingest.Report{}, err
	}
	res, err := s.validator.Skills(ctx, sess, batch, skillOwner(store))
	if err != nil {
		return ingest.Report{}, fmt.Errorf("validate skill events: %w", err)
	}
	if err := store.AppendEvents(ctx, nil, res.Accepted); err != nil {
		return ingest.Report{}, err
	}
	report := res.Report()
	s.recordIngest(ctx, "skill", sessionID, len(batch), report)
	return report, nil
}

// EndResult is the outcome of EndSession.
type EndResult struct {
	Session     model.Session `json:"session"`
	Events      ingest.Report `json:"events"`
	SkillEvents ingest.Report `json:"skill_events"`
}

// EndSession ingests any final batches and stamps ended_at. Both happen in
// one transaction; ending a session twice moves ended_at forward.
func (s *Service) EndSession(ctx context.Context, sessionID int64, events, skillEvents []any) (EndResult, error) {
	store, err := s.repo()
	if err != nil {
		return EndResult{}, err
	}
	if err := s.checkBatch("events", events); err != nil {
		return EndResult{}, err
	}
	if err := s.checkBatch("skill_events", skillEvents); err != nil {
		return EndResult{}, err
	}
	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return EndResult{}, err
	}

	behaviors, err := s.validator.Behaviors(ctx, sess, events, behaviorOwner(store))
	if err != nil {
		return EndResult{}, fmt.Errorf("validate events: %w", err)
	}
	skills, err := s.validator.Skills(ctx, sess, skillEvents, skillOwner(store))
	if err != nil {
		return EndResult{}, fmt.Errorf("validate skill events: %w", err)
	}

	closed, err := store.CloseSession(ctx, sessionID, s.now().UTC(), behaviors.Accepted, skills.Accepted)
	if err != nil {
		return EndResult{}, err
	}

	out := EndResult{Session: closed, Events: behaviors.Report(), SkillEvents: skills.Report()}
	s.recordIngest(ctx, "behavior", sessionID, len(events), out.Events)
	s.recordIngest(ctx, "skill", sessionID, len(skillEvents), out.SkillEvents)
	metrics.RecordSessionEnded()
	s.logger.Info(ctx, "session ended",
		logger.Int64("session_id", sessionID),
		logger.Any("ended_at", closed.EndedAt),
	)
	return out, nil
}

// BehaviorSessionPoints aggregates a behavior's events per session start date.
func (s *Service) BehaviorSessionPoints(ctx context.Context, behaviorID int64) (model.BehaviorPoints, error) {
	store, err := s.repo()
	if err != nil {
		return model.BehaviorPoints{}, err
	}
	start := time.Now()
	b, err := store.GetBehavior(ctx, behaviorID)
	if err != nil {
		return model.BehaviorPoints{}, err
	}
	facts, err := store.BehaviorFacts(ctx, behaviorID)
	if err != nil {
		return model.BehaviorPoints{}, err
	}
	points := aggregate.Behavior(b.Method, facts, s.location)
	metrics.RecordAnalysis("behavior", float64(time.Since(start).Microseconds())/1000.0, len(points))
	s.logger.Debug(ctx, "behavior analysis computed",
		logger.Int64("behavior_id", behaviorID),
		logger.Int("events", len(facts)),
		logger.Int("points", len(points)),
	)
	return model.BehaviorPoints{Behavior: b.Ref(), Points: points}, nil
}

// SkillSessionPoints aggregates a skill's trials per session start date.
func (s *Service) SkillSessionPoints(ctx context.Context, skillID int64) (model.SkillPoints, error) {
	store, err := s.repo()
	if err != nil {
		return model.SkillPoints{}, err
	}
	start := time.Now()
	sk, err := store.GetSkill(ctx, skillID)
	if err != nil {
		return model.SkillPoints{}, err
	}
	facts, err := store.SkillFacts(ctx, skillID)
	if err != nil {
		return model.SkillPoints{}, err
	}
	points := aggregate.Skill(facts, s.location)
	metrics.RecordAnalysis("skill", float64(time.Since(start).Microseconds())/1000.0, len(points))
	s.logger.Debug(ctx, "skill analysis computed",
		logger.Int64("skill_id", skillID),
		logger.Int("trials", len(facts)),
		logger.Int("points", len(points)),
	)
	return model.SkillPoints{Skill: sk.Ref(), Points: points}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	store := s.store
	stats := map[string]interface{}{
		"started":        s.started,
		"databasePath":   s.databasePath,
		"maxBatchSize":   s.maxBatchSize,
		"bucketTimezone": s.location.String(),
	}
	if started {
		stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	}
	s.mu.RUnlock()

	if started && store != nil {
		counts, err := store.Counts(ctx)
		if err != nil {
			s.logger.Warn(ctx, "counting rows", logger.Error(err))
		} else {
			stats["records"] = counts
		}
	}
	return stats
}

// checkBatch enforces the per-call batch cap. A zero cap disables it.
func (s *Service) checkBatch(field string, batch []any) error {
	if s.maxBatchSize > 0 && len(batch) > s.maxBatchSize {
		return types.Invalid(field, fmt.Sprintf("%s may hold at most %d items", field, s.maxBatchSize))
	}
	return nil
}

func (s *Service) recordIngest(ctx context.Context, kind string, sessionID int64, submitted int, report ingest.Report) {
	metrics.RecordEventsRecorded(kind, report.Accepted)
	for _, r := range report.Rejected {
		metrics.RecordEventRejected(kind, string(r.Reason))
	}
	if submitted == 0 {
		return
	}
	s.logger.Debug(ctx, "events recorded",
		logger.String("kind", kind),
		logger.Int64("session_id", sessionID),
		logger.Int("submitted", submitted),
		logger.Int("accepted", report.Accepted),
		logger.Int("rejected", len(report.Rejected)),
	)
}

func behaviorOwner(store repository.Store) ingest.OwnerLookup {
	return func(ctx context.Context, id int64) (int64, error) {
		b, err := store.GetBehavior(ctx, id)
		if err != nil {
			return 0, err
		}
		return b.ClientID, nil
	}
}

func skillOwner(store repository.Store) ingest.OwnerLookup {
	return func(ctx context.Context, id int64) (int64, error) {
		sk, err := store.GetSkill(ctx, id)
		if err != nil {
			return 0, err
		}
		return sk.ClientID, nil
	}
}
