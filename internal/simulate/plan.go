package simulate

import (
	"math/rand/v2"
	"time"

	"github.com/okian/sessiontrack/internal/domain/types"
)

// fixture is one client created during setup together with its catalog.
type fixture struct {
	ClientID  int64             `json:"client_id"`
	Behaviors []trackedBehavior `json:"behaviors"`
	SkillID   int64             `json:"skill_id"`
}

type trackedBehavior struct {
	ID     int64        `json:"id"`
	Method types.Method `json:"method"`
}

// SessionPlan is the scripted content of one session.
type SessionPlan struct {
	ClientID    int64            `json:"client_id"`
	Events      []map[string]any `json:"events"`
	SkillEvents []map[string]any `json:"skill_events"`
	Invalid     int              `json:"invalid"`

	// What the analyses should reflect once the session is recorded.
	Totals  map[int64]int64 `json:"totals"`  // behavior id -> contribution
	Touched map[int64]bool  `json:"touched"` // behavior ids with an accepted event
	Correct int             `json:"correct"`
	Trials  int             `json:"trials"`
}

const (
	invalidEventType = "BOGUS"
	maxStopSeconds   = 120
	incShare         = 0.75
	correctShare     = 0.7
	hitShare         = 0.9
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// buildPlans scripts SessionsPerClient sessions for every fixture. The
// timestamps start at base and advance one second per event.
func buildPlans(rng *rand.Rand, cfg *Config, fixtures []fixture, base time.Time) []*SessionPlan {
	plans := make([]*SessionPlan, 0, len(fixtures)*cfg.SessionsPerClient)
	for _, fx := range fixtures {
		for range cfg.SessionsPerClient {
			plans = append(plans, buildPlan(rng, cfg, fx, base))
		}
	}
	return plans
}

func buildPlan(rng *rand.Rand, cfg *Config, fx fixture, base time.Time) *SessionPlan {
	p := &SessionPlan{
		ClientID: fx.ClientID,
		Totals:   make(map[int64]int64),
		Touched:  make(map[int64]bool),
	}
	open := make(map[int64]bool) // DURATION behaviors with a pending START
	at := base

	for range cfg.EventsPerSession {
		at = at.Add(time.Second)
		b := fx.Behaviors[rng.IntN(len(fx.Behaviors))]
		ev := map[string]any{
			"behavior_id": b.ID,
			"happened_at": at.UTC().Format(time.RFC3339Nano),
		}
		if rng.Float64() < cfg.InvalidRate {
			ev["event_type"] = invalidEventType
			p.Events = append(p.Events, ev)
			p.Invalid++
			continue
		}

		switch b.Method {
		case types.MethodFrequency:
			value := int64(1)
			ev["event_type"] = string(types.EventInc)
			if rng.Float64() >= incShare {
				value = -1
				ev["event_type"] = string(types.EventDec)
			}
			ev["value"] = value
			p.Totals[b.ID] += value
		case types.MethodDuration:
			if !open[b.ID] {
				ev["event_type"] = string(types.EventStart)
			} else {
				seconds := int64(1 + rng.IntN(maxStopSeconds))
				ev["event_type"] = string(types.EventStop)
				ev["value"] = seconds
				p.Totals[b.ID] += seconds
			}
			open[b.ID] = !open[b.ID]
		default:
			ev["event_type"] = string(types.EventHit)
			if rng.Float64() >= hitShare {
				ev["event_type"] = string(types.EventStart)
			} else {
				p.Totals[b.ID]++
			}
		}
		p.Touched[b.ID] = true
		p.Events = append(p.Events, ev)
	}

	for range cfg.TrialsPerSession {
		at = at.Add(time.Second)
		outcome := types.SkillWrong
		if rng.Float64() < correctShare {
			outcome = types.SkillCorrect
			p.Correct++
		}
		p.Trials++
		p.SkillEvents = append(p.SkillEvents, map[string]any{
			"skill_id":    fx.SkillID,
			"event_type":  string(outcome),
			"happened_at": at.UTC().Format(time.RFC3339Nano),
		})
	}
	return p
}

// batches splits events into chunks of at most size. The last chunk is
// returned separately so it can ride along with the end request.
func batches(events []map[string]any, size int) (head [][]map[string]any, last []map[string]any) {
	for len(events) > size {
		head = append(head, events[:size])
		events = events[size:]
	}
	return head, events
}
