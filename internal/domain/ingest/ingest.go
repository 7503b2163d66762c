// Package ingest validates raw event batches before they are persisted.
//
// Each element of a batch is checked on its own; a bad element is skipped
// and reported as a Rejection, never failing the batch. The write-time check
// covers only the global vocabulary, so an event type that the owning
// behavior's method ignores (a HIT on a FREQUENCY behavior) is still
// accepted. Filtering by method happens in the aggregation engine.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/okian/sessiontrack/internal/domain/model"
	"github.com/okian/sessiontrack/internal/domain/types"
)

// Reason explains why a batch element was skipped.
type Reason string

// Rejection reasons.
const (
	ReasonNotObject         Reason = "not_an_object"
	ReasonInvalidBehaviorID Reason = "invalid_behavior_id"
	ReasonInvalidSkillID    Reason = "invalid_skill_id"
	ReasonInvalidEventType  Reason = "invalid_event_type"
	ReasonUnknownBehavior   Reason = "unknown_behavior"
	ReasonUnknownSkill      Reason = "unknown_skill"
	ReasonClientMismatch    Reason = "client_mismatch"
)

// Rejection records a skipped batch element by its position.
type Rejection struct {
	Index  int    `json:"index"`
	Reason Reason `json:"reason"`
}

// Result is the outcome of validating one batch.
type Result[T any] struct {
	Accepted []T
	Rejected []Rejection
}

// Report summarizes a Result for callers.
type Report struct {
	Accepted int         `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
}

// Report returns the accepted count and the rejections.
func (r Result[T]) Report() Report {
	rejected := r.Rejected
	if rejected == nil {
		rejected = []Rejection{}
	}
	return Report{Accepted: len(r.Accepted), Rejected: rejected}
}

// OwnerLookup returns the client id owning a behavior or skill. It must
// return an error wrapping types.ErrNotFound when the id is unknown.
type OwnerLookup func(ctx context.Context, id int64) (clientID int64, err error)

// Validator normalizes raw batch elements into events.
type Validator struct {
	now func() time.Time
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Behaviors validates a batch of raw behavior events for session. Elements
// are usually map[string]any decoded with json.Decoder.UseNumber.
func (v *Validator) Behaviors(ctx context.Context, session model.Session, batch []any, owner OwnerLookup) (Result[model.BehaviorEvent], error) {
	var res Result[model.BehaviorEvent]
	owners := newOwnerCache(owner)
	for i, item := range batch {
		obj, ok := item.(map[string]any)
		if !ok {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: ReasonNotObject})
			continue
		}
		behaviorID, ok := integer(obj["behavior_id"])
		if !ok {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: ReasonInvalidBehaviorID})
			continue
		}
		name, _ := obj["event_type"].(string)
		eventType, ok := types.ParseEventType(name)
		if !ok {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: ReasonInvalidEventType})
			continue
		}
		reason, err := owners.check(ctx, behaviorID, session.ClientID, ReasonUnknownBehavior)
		if err != nil {
			return Result[model.BehaviorEvent]{}, err
		}
		if reason != "" {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: reason})
			continue
		}

		ev := model.BehaviorEvent{
			SessionID:  session.ID,
			BehaviorID: behaviorID,
			EventType:  eventType,
			HappenedAt: happenedAt(obj["happened_at"], v.now().UTC()),
		}
		if n, ok := integer(obj["value"]); ok {
			ev.Value = &n
		}
		if extra, ok := obj["extra"].(map[string]any); ok && len(extra) > 0 {
			ev.Extra = extra
		}
		res.Accepted = append(res.Accepted, ev)
	}
	return res, nil
}

// Skills validates a batch of raw skill events for session.
func (v *Validator) Skills(ctx context.Context, session model.Session, batch []any, owner OwnerLookup) (Result[model.SkillEvent], error) {
	var res Result[model.SkillEvent]
	owners := newOwnerCache(owner)
	for i, item := range batch {
		obj, ok := item.(map[string]any)
		if !ok {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: ReasonNotObject})
			continue
		}
		skillID, ok := integer(obj["skill_id"])
		if !ok {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: ReasonInvalidSkillID})
			continue
		}
		name, _ := obj["event_type"].(string)
		eventType, ok := types.ParseSkillEventType(name)
		if !ok {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: ReasonInvalidEventType})
			continue
		}
		reason, err := owners.check(ctx, skillID, session.ClientID, ReasonUnknownSkill)
		if err != nil {
			return Result[model.SkillEvent]{}, err
		}
		if reason != "" {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: reason})
			continue
		}

		res.Accepted = append(res.Accepted, model.SkillEvent{
			SessionID:  session.ID,
			SkillID:    skillID,
			EventType:  eventType,
			HappenedAt: happenedAt(obj["happened_at"], v.now().UTC()),
		})
	}
	return res, nil
}

// ownerCache memoizes owner lookups for the duration of one batch.
type ownerCache struct {
	lookup OwnerLookup
	seen   map[int64]int64 // id -> client id, -1 when unknown
}

func newOwnerCache(lookup OwnerLookup) *ownerCache {
	return &ownerCache{lookup: lookup, seen: make(map[int64]int64)}
}

func (c *ownerCache) check(ctx context.Context, id, clientID int64, unknown Reason) (Reason, error) {
	owner, ok := c.seen[id]
	if !ok {
		got, err := c.lookup(ctx, id)
		switch {
		case errors.Is(err, types.ErrNotFound):
			owner = -1
		case err != nil:
			return "", err
		default:
			owner = got
		}
		c.seen[id] = owner
	}
	if owner < 0 {
		return unknown, nil
	}
	if owner != clientID {
		return ReasonClientMismatch, nil
	}
	return "", nil
}

// integer reports whether v is a JSON integer. Floats, even whole ones,
// strings and booleans are not.
func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		return i, err == nil
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	// float64 included: batches must be decoded with UseNumber for 5 and 5.0
	// to stay distinguishable.
	return 0, false
}
