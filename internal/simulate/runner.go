package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sessiontrack/internal/domain/types"
	"github.com/okian/sessiontrack/pkg/logger"
)

// ErrServiceUnavailable is returned when the health check fails.
var ErrServiceUnavailable = errors.New("service is not available")

// Runner executes one simulation.
type Runner struct {
	cfg    *Config
	log    logger.Logger
	client *apiClient
	stats  *Stats
}

// NewRunner validates cfg and prepares a run. A zero seed is replaced with
// one derived from the clock.
func NewRunner(cfg *Config) (*Runner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	runID := uuid.NewString()
	return &Runner{
		cfg:    cfg,
		log:    logger.Named("simulate"),
		client: newAPIClient(cfg.BaseURL, cfg.Timeout, "simulator-"+runID),
		stats:  &Stats{RunID: runID, Mismatches: []string{}},
	}, nil
}

// Run executes the complete simulation: health check, catalog setup,
// concurrent sessions and verification against the analysis endpoints.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	r.stats.StartTime = time.Now()
	defer func() {
		r.stats.EndTime = time.Now()
		r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	}()

	r.log.Info(ctx, "starting simulation",
		logger.String("run_id", r.stats.RunID),
		logger.String("base_url", r.cfg.BaseURL),
		logger.Int("clients", r.cfg.Clients),
		logger.Int("sessions_per_client", r.cfg.SessionsPerClient),
		logger.Int("workers", r.cfg.Workers),
		logger.Int64("seed", int64(r.cfg.Seed)))

	health, err := r.client.health(ctx)
	if err != nil || health.Status != "ok" {
		return r.stats, fmt.Errorf("%w at %s: %v", ErrServiceUnavailable, r.cfg.BaseURL, err)
	}
	r.log.Info(ctx, "service is healthy", logger.String("version", health.Version))

	fixtures, err := r.setup(ctx)
	if err != nil {
		return r.stats, fmt.Errorf("setup failed: %w", err)
	}

	plans := buildPlans(newRand(r.cfg.Seed), r.cfg, fixtures, time.Now().UTC())
	for _, p := range plans {
		r.stats.EventsGenerated += len(p.Events) + len(p.SkillEvents)
		r.stats.ExpectedRejected += p.Invalid
	}

	if err := r.runSessions(ctx, plans); err != nil {
		return r.stats, err
	}

	if r.stats.RequestsFailed > 0 {
		r.stats.Mismatches = append(r.stats.Mismatches,
			fmt.Sprintf("verification skipped: %d requests failed", r.stats.RequestsFailed))
	} else if err := r.verify(ctx, fixtures, plans); err != nil {
		return r.stats, fmt.Errorf("verification failed: %w", err)
	}

	if r.cfg.OutputFile != "" {
		if err := writePlans(r.cfg.OutputFile, r.stats.RunID, fixtures, plans); err != nil {
			return r.stats, err
		}
	}
	return r.stats, nil
}

// catalog is the behavior set every simulated client gets.
func (r *Runner) catalog() []map[string]any {
	interval := types.IntervalSettings(r.cfg.IntervalSeconds)
	return []map[string]any{
		{"name": "Hand raising", "method": string(types.MethodFrequency)},
		{"name": "Tantrum", "method": string(types.MethodDuration)},
		{"name": "On task", "method": string(types.MethodInterval), "settings": interval},
		{"name": "Engagement", "method": string(types.MethodMTS), "settings": interval},
	}
}

func (r *Runner) setup(ctx context.Context) ([]fixture, error) {
	fixtures := make([]fixture, 0, r.cfg.Clients)
	for i := range r.cfg.Clients {
		c, err := r.client.createClient(ctx, fmt.Sprintf("Sim %s #%d", r.stats.RunID[:8], i+1), "2018-06-01")
		if err != nil {
			return nil, err
		}
		r.stats.ClientsCreated++

		fx := fixture{ClientID: c.ID}
		for _, body := range r.catalog() {
			b, err := r.client.createBehavior(ctx, c.ID, body)
			if err != nil {
				return nil, err
			}
			r.stats.BehaviorsCreated++
			fx.Behaviors = append(fx.Behaviors, trackedBehavior{ID: b.ID, Method: b.Method})
		}

		s, err := r.client.createSkill(ctx, c.ID, map[string]any{
			"name":       "Tacts colors",
			"skill_type": string(types.SkillTypeTact),
		})
		if err != nil {
			return nil, err
		}
		r.stats.SkillsCreated++
		fx.SkillID = s.ID
		fixtures = append(fixtures, fx)
	}
	r.log.Info(ctx, "catalog ready",
		logger.Int("clients", r.stats.ClientsCreated),
		logger.Int("behaviors", r.stats.BehaviorsCreated),
		logger.Int("skills", r.stats.SkillsCreated))
	return fixtures, nil
}

// runSessions plays plans on a fixed pool of workers.
func (r *Runner) runSessions(ctx context.Context, plans []*SessionPlan) error {
	var (
		started  int64
		ended    int64
		accepted int64
		rejected int64
		failed   int64
	)

	planChan := make(chan *SessionPlan, r.cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for p := range planChan {
				if ctx.Err() != nil {
					return
				}
				res, err := r.playSession(ctx, p)
				atomic.AddInt64(&accepted, int64(res.accepted))
				atomic.AddInt64(&rejected, int64(res.rejected))
				if res.started {
					atomic.AddInt64(&started, 1)
				}
				if err != nil {
					atomic.AddInt64(&failed, 1)
					r.log.Warn(ctx, "session failed", logger.Int("worker", workerID), logger.Error(err))
					continue
				}
				atomic.AddInt64(&ended, 1)
				if r.cfg.Verbose {
					r.log.Debug(ctx, "session recorded",
						logger.Int("worker", workerID),
						logger.Int64("session_id", res.sessionID),
						logger.Int("accepted", res.accepted),
						logger.Int("rejected", res.rejected))
				}
			}
		}(i)
	}

	go func() {
		defer close(planChan)
		for _, p := range plans {
			select {
			case <-ctx.Done():
				return
			case planChan <- p:
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(r.progressInterval())
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				r.log.Info(ctx, "progress",
					logger.Int64("ended", atomic.LoadInt64(&ended)),
					logger.Int("total", len(plans)),
					logger.Int64("accepted", atomic.LoadInt64(&accepted)),
					logger.Int64("rejected", atomic.LoadInt64(&rejected)),
					logger.Int64("failed", atomic.LoadInt64(&failed)))
			}
		}
	}()

	wg.Wait()
	close(done)

	r.stats.SessionsStarted = started
	r.stats.SessionsEnded = ended
	r.stats.EventsAccepted = accepted
	r.stats.EventsRejected = rejected
	r.stats.RequestsFailed = failed

	r.log.Info(ctx, "sessions complete",
		logger.Int64("ended", ended),
		logger.Int64("accepted", accepted),
		logger.Int64("rejected", rejected),
		logger.Int64("failed", failed))
	return ctx.Err()
}

func (r *Runner) progressInterval() time.Duration {
	if r.cfg.ProgressInterval <= 0 {
		return time.Second
	}
	return r.cfg.ProgressInterval
}

type sessionResult struct {
	sessionID int64
	started   bool
	accepted  int
	rejected  int
}

func (res *sessionResult) add(b batchResult) {
	res.accepted += b.Accepted
	res.rejected += len(b.Rejected)
}

// playSession starts a session, streams its batches and ends it with the
// final behavior batch and all skill trials.
func (r *Runner) playSession(ctx context.Context, p *SessionPlan) (sessionResult, error) {
	var res sessionResult

	sess, err := r.client.startSession(ctx, p.ClientID)
	if err != nil {
		return res, err
	}
	res.sessionID = sess.ID
	res.started = true

	head, last := batches(p.Events, r.cfg.BatchSize)
	for _, batch := range head {
		out, err := r.client.postEvents(ctx, sess.ID, batch)
		if err != nil {
			return res, err
		}
		res.add(out)
	}

	skillHead, skillLast := batches(p.SkillEvents, r.cfg.BatchSize)
	for _, batch := range skillHead {
		out, err := r.client.postSkillEvents(ctx, sess.ID, batch)
		if err != nil {
			return res, err
		}
		res.add(out)
	}

	out, err := r.client.endSession(ctx, sess.ID, last, skillLast)
	if err != nil {
		return res, err
	}
	res.add(out.Events)
	res.add(out.SkillEvents)
	if out.EndedAt == nil {
		return res, fmt.Errorf("session %d: ended_at missing after end", sess.ID)
	}
	return res, nil
}

// writePlans saves the generated fixtures and plans for later inspection.
func writePlans(path, runID string, fixtures []fixture, plans []*SessionPlan) error {
	data, err := json.MarshalIndent(map[string]any{
		"run_id":   runID,
		"fixtures": fixtures,
		"sessions": plans,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plans: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
