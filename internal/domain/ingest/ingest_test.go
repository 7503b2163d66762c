package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/sessiontrack/internal/domain/ingest"
	"github.com/okian/sessiontrack/internal/domain/model"
	"github.com/okian/sessiontrack/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

// decodeBatch decodes a JSON array the way the HTTP layer does.
func decodeBatch(raw string) []any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var batch []any
	if err := dec.Decode(&batch); err != nil {
		panic(err)
	}
	return batch
}

// owners maps behavior/skill ids to client ids.
func owners(m map[int64]int64) ingest.OwnerLookup {
	return func(_ context.Context, id int64) (int64, error) {
		client, ok := m[id]
		if !ok {
			return 0, types.NotFound("behavior", id)
		}
		return client, nil
	}
}

func TestValidator_Behaviors(t *testing.T) {
	Convey("Given a validator and a session for client 1", t, func() {
		v := ingest.New(ingest.WithClock(func() time.Time { return fixedNow }))
		session := model.Session{ID: 10, ClientID: 1, StartedAt: fixedNow}
		lookup := owners(map[int64]int64{100: 1, 101: 1, 200: 2})
		ctx := context.Background()

		Convey("When every element is valid", func() {
			batch := decodeBatch(`[
				{"behavior_id": 100, "event_type": "inc", "value": 1},
				{"behavior_id": 100, "event_type": "DEC", "value": -1, "happened_at": "2024-01-05T10:00:00Z"},
				{"behavior_id": 101, "event_type": "stop", "value": 30, "extra": {"note": "ok"}}
			]`)
			res, err := v.Behaviors(ctx, session, batch, lookup)

			Convey("Then all are accepted in submission order", func() {
				So(err, ShouldBeNil)
				So(len(res.Accepted), ShouldEqual, 3)
				So(res.Rejected, ShouldBeEmpty)
				So(res.Accepted[0].EventType, ShouldEqual, types.EventInc)
				So(*res.Accepted[1].Value, ShouldEqual, int64(-1))
				So(res.Accepted[1].HappenedAt.Equal(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(res.Accepted[2].Extra["note"], ShouldEqual, "ok")
				So(res.Accepted[2].SessionID, ShouldEqual, int64(10))
			})
		})

		Convey("When elements violate the rules", func() {
			batch := decodeBatch(`[
				{"behavior_id": "100", "event_type": "INC"},
				{"behavior_id": 100.5, "event_type": "INC"},
				{"behavior_id": 100, "event_type": "CORRECT"},
				{"behavior_id": 100},
				{"behavior_id": 999, "event_type": "HIT"},
				{"behavior_id": 200, "event_type": "HIT"},
				42,
				{"behavior_id": 100, "event_type": "HIT"}
			]`)
			res, err := v.Behaviors(ctx, session, batch, lookup)

			Convey("Then each is skipped with its reason and the rest accepted", func() {
				So(err, ShouldBeNil)
				So(len(res.Accepted), ShouldEqual, 1)
				So(res.Report().Accepted, ShouldEqual, 1)
				So(res.Rejected, ShouldResemble, []ingest.Rejection{
					{Index: 0, Reason: ingest.ReasonInvalidBehaviorID},
					{Index: 1, Reason: ingest.ReasonInvalidBehaviorID},
					{Index: 2, Reason: ingest.ReasonInvalidEventType},
					{Index: 3, Reason: ingest.ReasonInvalidEventType},
					{Index: 4, Reason: ingest.ReasonUnknownBehavior},
					{Index: 5, Reason: ingest.ReasonClientMismatch},
					{Index: 6, Reason: ingest.ReasonNotObject},
				})
			})
		})

		Convey("When an event type does not match the behavior's method", func() {
			batch := decodeBatch(`[{"behavior_id": 100, "event_type": "HIT"}]`)
			res, err := v.Behaviors(ctx, session, batch, lookup)

			Convey("Then it is still accepted", func() {
				So(err, ShouldBeNil)
				So(len(res.Accepted), ShouldEqual, 1)
			})
		})

		Convey("When value is not an integer", func() {
			batch := decodeBatch(`[
				{"behavior_id": 100, "event_type": "INC", "value": 1.5},
				{"behavior_id": 100, "event_type": "INC", "value": "1"},
				{"behavior_id": 100, "event_type": "INC", "value": null},
				{"behavior_id": 100, "event_type": "INC"}
			]`)
			res, err := v.Behaviors(ctx, session, batch, lookup)

			Convey("Then the event is accepted with no value", func() {
				So(err, ShouldBeNil)
				So(len(res.Accepted), ShouldEqual, 4)
				for _, ev := range res.Accepted {
					So(ev.Value, ShouldBeNil)
				}
			})
		})

		Convey("When happened_at is unparsable, absent or not a string", func() {
			batch := decodeBatch(`[
				{"behavior_id": 100, "event_type": "INC", "happened_at": "yesterday"},
				{"behavior_id": 100, "event_type": "INC"},
				{"behavior_id": 100, "event_type": "INC", "happened_at": 1704447000}
			]`)
			res, err := v.Behaviors(ctx, session, batch, lookup)

			Convey("Then the event is accepted and stamped with the current time", func() {
				So(err, ShouldBeNil)
				So(len(res.Accepted), ShouldEqual, 3)
				for _, ev := range res.Accepted {
					So(ev.HappenedAt.Equal(fixedNow), ShouldBeTrue)
				}
			})
		})

		Convey("When extra is empty or not an object", func() {
			batch := decodeBatch(`[
				{"behavior_id": 100, "event_type": "INC", "extra": {}},
				{"behavior_id": 100, "event_type": "INC", "extra": "note"}
			]`)
			res, err := v.Behaviors(ctx, session, batch, lookup)

			Convey("Then extra is absent", func() {
				So(err, ShouldBeNil)
				So(res.Accepted[0].Extra, ShouldBeNil)
				So(res.Accepted[1].Extra, ShouldBeNil)
			})
		})

		Convey("When the lookup fails for a reason other than not found", func() {
			boom := errors.New("database is locked")
			failing := func(context.Context, int64) (int64, error) { return 0, boom }
			batch := decodeBatch(`[{"behavior_id": 100, "event_type": "INC"}]`)
			_, err := v.Behaviors(ctx, session, batch, failing)

			Convey("Then the error is surfaced", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When the same behavior appears many times", func() {
			calls := 0
			counting := func(_ context.Context, _ int64) (int64, error) {
				calls++
				return 1, nil
			}
			batch := decodeBatch(`[
				{"behavior_id": 100, "event_type": "INC"},
				{"behavior_id": 100, "event_type": "INC"},
				{"behavior_id": 100, "event_type": "INC"}
			]`)
			_, err := v.Behaviors(ctx, session, batch, counting)

			Convey("Then the owner is looked up once", func() {
				So(err, ShouldBeNil)
				So(calls, ShouldEqual, 1)
			})
		})

		Convey("When the batch is empty", func() {
			res, err := v.Behaviors(ctx, session, nil, lookup)

			Convey("Then the report carries zero and an empty rejection list", func() {
				So(err, ShouldBeNil)
				report := res.Report()
				So(report.Accepted, ShouldEqual, 0)
				So(report.Rejected, ShouldNotBeNil)
				So(report.Rejected, ShouldBeEmpty)
			})
		})
	})
}

func TestValidator_Skills(t *testing.T) {
	Convey("Given a validator and a session for client 1", t, func() {
		v := ingest.New(ingest.WithClock(func() time.Time { return fixedNow }))
		session := model.Session{ID: 3, ClientID: 1}
		lookup := owners(map[int64]int64{7: 1, 8: 2})

		Convey("When a mixed skill batch is validated", func() {
			batch := decodeBatch(`[
				{"skill_id": 7, "event_type": "correct"},
				{"skill_id": 7, "event_type": "WRONG", "happened_at": "2024-01-05 08:00:00"},
				{"skill_id": 7, "event_type": "HIT"},
				{"skill_id": 8, "event_type": "CORRECT"},
				{"skill_id": 9, "event_type": "CORRECT"},
				{"behavior_id": 7, "event_type": "CORRECT"}
			]`)
			res, err := v.Skills(context.Background(), session, batch, lookup)

			Convey("Then only same-client, in-vocabulary trials are accepted", func() {
				So(err, ShouldBeNil)
				So(len(res.Accepted), ShouldEqual, 2)
				So(res.Accepted[0].EventType, ShouldEqual, types.SkillCorrect)
				So(res.Accepted[1].HappenedAt.Equal(time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(res.Rejected, ShouldResemble, []ingest.Rejection{
					{Index: 2, Reason: ingest.ReasonInvalidEventType},
					{Index: 3, Reason: ingest.ReasonClientMismatch},
					{Index: 4, Reason: ingest.ReasonUnknownSkill},
					{Index: 5, Reason: ingest.ReasonInvalidSkillID},
				})
			})
		})
	})
}
