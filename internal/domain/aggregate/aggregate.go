// Package aggregate reduces persisted events into one point per calendar date.
//
// The bucket key is the date of the owning session's start, never the
// event's own happened_at, so a session running past midnight contributes to
// the day it began. Reductions are sums and counts and therefore do not
// depend on the order events arrive in.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/okian/sessiontrack/internal/domain/model"
	"github.com/okian/sessiontrack/internal/domain/types"
)

// dateLayout is the bucket key format.
const dateLayout = time.DateOnly

type bucket struct {
	value    int64
	correct  int
	total    int
	sessions map[int64]struct{}
}

// buckets accumulates per-date state keyed by session start date.
type buckets struct {
	loc   *time.Location
	byDay map[string]*bucket
}

func newBuckets(loc *time.Location) *buckets {
	if loc == nil {
		loc = time.UTC
	}
	return &buckets{loc: loc, byDay: make(map[string]*bucket)}
}

func (b *buckets) at(sessionID int64, startedAt time.Time) *bucket {
	key := startedAt.In(b.loc).Format(dateLayout)
	bk, ok := b.byDay[key]
	if !ok {
		bk = &bucket{sessions: make(map[int64]struct{})}
		b.byDay[key] = bk
	}
	bk.sessions[sessionID] = struct{}{}
	return bk
}

// points emits one DatePoint per bucket in ascending date order.
func (b *buckets) points(value func(*bucket) float64) []model.DatePoint {
	keys := make([]string, 0, len(b.byDay))
	for k := range b.byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.DatePoint, 0, len(keys))
	for _, k := range keys {
		bk := b.byDay[k]
		out = append(out, model.DatePoint{
			Date:         k,
			Value:        value(bk),
			SessionCount: len(bk.sessions),
		})
	}
	return out
}

// Behavior reduces the events of one behavior. Only event types relevant to
// method change a bucket's value, but every event's session counts toward
// session_count.
func Behavior(method types.Method, facts []model.BehaviorFact, loc *time.Location) []model.DatePoint {
	b := newBuckets(loc)
	for _, f := range facts {
		b.at(f.SessionID, f.SessionStartedAt).value += Contribution(method, f.EventType, f.Value)
	}
	return b.points(func(bk *bucket) float64 { return float64(bk.value) })
}

// Contribution is what a single event adds to its bucket under method.
//
//	FREQUENCY       sum of value over INC and DEC (signed by the caller)
//	DURATION        sum of value over STOP, in seconds
//	INTERVAL, MTS   one per HIT
func Contribution(method types.Method, eventType types.EventType, value *int64) int64 {
	switch method {
	case types.MethodFrequency:
		if eventType == types.EventInc || eventType == types.EventDec {
			return valueOf(value)
		}
	case types.MethodDuration:
		if eventType == types.EventStop {
			return valueOf(value)
		}
	case types.MethodInterval, types.MethodMTS:
		if eventType == types.EventHit {
			return 1
		}
	}
	return 0
}

func valueOf(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// Skill reduces the trials of one skill to percentage correct per date,
// rounded to two decimals.
func Skill(facts []model.SkillFact, loc *time.Location) []model.DatePoint {
	b := newBuckets(loc)
	for _, f := range facts {
		bk := b.at(f.SessionID, f.SessionStartedAt)
		bk.total++
		if f.EventType == types.SkillCorrect {
			bk.correct++
		}
	}
	return b.points(func(bk *bucket) float64 {
		return Percentage(bk.correct, bk.total)
	})
}

// Percentage returns correct/total*100 rounded to two decimals, or 0 when
// total is zero.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*100*100) / 100
}
