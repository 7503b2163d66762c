package simulate

import (
	"context"
	"fmt"

	"github.com/okian/sessiontrack/internal/domain/aggregate"
	"github.com/okian/sessiontrack/pkg/logger"
)

// expectation is what one behavior or skill series should add up to.
type expectation struct {
	total    int64
	sessions int
	correct  int
	trials   int
}

// expectations folds the plans into per-series totals.
func expectations(plans []*SessionPlan, fixtures []fixture) (behaviors, skills map[int64]*expectation) {
	behaviors = make(map[int64]*expectation)
	skills = make(map[int64]*expectation)
	skillOf := make(map[int64]int64, len(fixtures))
	for _, fx := range fixtures {
		skillOf[fx.ClientID] = fx.SkillID
		skills[fx.SkillID] = &expectation{}
		for _, b := range fx.Behaviors {
			behaviors[b.ID] = &expectation{}
		}
	}
	for _, p := range plans {
		for id, v := range p.Totals {
			behaviors[id].total += v
		}
		for id := range p.Touched {
			behaviors[id].sessions++
		}
		if p.Trials > 0 {
			exp := skills[skillOf[p.ClientID]]
			exp.sessions++
			exp.correct += p.Correct
			exp.trials += p.Trials
		}
	}
	return behaviors, skills
}

// verify compares every series the run touched with the analysis endpoints.
// Values are summed across dates so a run that crosses midnight still
// matches. The percentage is only checked when the series has one date.
func (r *Runner) verify(ctx context.Context, fixtures []fixture, plans []*SessionPlan) error {
	behaviors, skills := expectations(plans, fixtures)

	for _, fx := range fixtures {
		for _, b := range fx.Behaviors {
			got, err := r.client.behaviorPoints(ctx, b.ID)
			if err != nil {
				return err
			}
			exp := behaviors[b.ID]
			var total float64
			var sessions int
			for _, pt := range got.Points {
				total += pt.Value
				sessions += pt.SessionCount
			}
			if got.Behavior.Method != b.Method {
				r.mismatch("behavior %d: method %s, want %s", b.ID, got.Behavior.Method, b.Method)
			}
			if total != float64(exp.total) {
				r.mismatch("behavior %d (%s): total %v, want %d", b.ID, b.Method, total, exp.total)
			}
			if sessions != exp.sessions {
				r.mismatch("behavior %d (%s): session_count %d, want %d", b.ID, b.Method, sessions, exp.sessions)
			}
			r.stats.SeriesVerified++
		}

		got, err := r.client.skillPoints(ctx, fx.SkillID)
		if err != nil {
			return err
		}
		exp := skills[fx.SkillID]
		var sessions int
		for _, pt := range got.Points {
			sessions += pt.SessionCount
		}
		if sessions != exp.sessions {
			r.mismatch("skill %d: session_count %d, want %d", fx.SkillID, sessions, exp.sessions)
		}
		if len(got.Points) == 1 {
			want := aggregate.Percentage(exp.correct, exp.trials)
			if got.Points[0].Value != want {
				r.mismatch("skill %d: percentage %v, want %v", fx.SkillID, got.Points[0].Value, want)
			}
		}
		r.stats.SeriesVerified++
	}

	if r.stats.EventsRejected != int64(r.stats.ExpectedRejected) {
		r.mismatch("rejected %d events, want %d", r.stats.EventsRejected, r.stats.ExpectedRejected)
	}

	r.log.Info(ctx, "verification complete",
		logger.Int("series", r.stats.SeriesVerified),
		logger.Int("mismatches", len(r.stats.Mismatches)))
	return nil
}

func (r *Runner) mismatch(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.stats.Mismatches = append(r.stats.Mismatches, msg)
	r.log.Warn(context.Background(), "mismatch", logger.String("detail", msg))
}
