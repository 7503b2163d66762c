package aggregate_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/okian/sessiontrack/internal/domain/aggregate"
	"github.com/okian/sessiontrack/internal/domain/model"
	"github.com/okian/sessiontrack/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func day(d, hour int) time.Time {
	return time.Date(2024, 1, d, hour, 0, 0, 0, time.UTC)
}

func val(n int64) *int64 { return &n }

func fact(session int64, start time.Time, t types.EventType, v *int64) model.BehaviorFact {
	return model.BehaviorFact{SessionID: session, SessionStartedAt: start, EventType: t, Value: v}
}

func TestBehavior(t *testing.T) {
	Convey("Given behavior facts", t, func() {
		Convey("When a FREQUENCY behavior records INC 1, INC 1, DEC -1 in one session", func() {
			points := aggregate.Behavior(types.MethodFrequency, []model.BehaviorFact{
				fact(1, day(5, 9), types.EventInc, val(1)),
				fact(1, day(5, 9), types.EventInc, val(1)),
				fact(1, day(5, 9), types.EventDec, val(-1)),
			}, time.UTC)

			Convey("Then the date's value is the net count", func() {
				So(points, ShouldResemble, []model.DatePoint{{Date: "2024-01-05", Value: 1, SessionCount: 1}})
			})
		})

		Convey("When a DURATION behavior has STOP 30 in two sessions on the same day", func() {
			points := aggregate.Behavior(types.MethodDuration, []model.BehaviorFact{
				fact(1, day(5, 9), types.EventStart, nil),
				fact(1, day(5, 9), types.EventStop, val(30)),
				fact(2, day(5, 15), types.EventStop, val(30)),
			}, time.UTC)

			Convey("Then both merge into one point", func() {
				So(points, ShouldResemble, []model.DatePoint{{Date: "2024-01-05", Value: 60, SessionCount: 2}})
			})
		})

		Convey("When an INTERVAL behavior has 3 HIT and 1 START", func() {
			points := aggregate.Behavior(types.MethodInterval, []model.BehaviorFact{
				fact(1, day(5, 9), types.EventHit, nil),
				fact(1, day(5, 9), types.EventStart, nil),
				fact(1, day(5, 9), types.EventHit, val(99)),
				fact(1, day(5, 9), types.EventHit, nil),
			}, time.UTC)

			Convey("Then only HITs count and values are ignored", func() {
				So(points[0].Value, ShouldEqual, 3.0)
			})
		})

		Convey("When an MTS behavior only has mismatched event types", func() {
			points := aggregate.Behavior(types.MethodMTS, []model.BehaviorFact{
				fact(4, day(6, 9), types.EventInc, val(5)),
			}, time.UTC)

			Convey("Then the session still counts but the value is zero", func() {
				So(points, ShouldResemble, []model.DatePoint{{Date: "2024-01-06", Value: 0, SessionCount: 1}})
			})
		})

		Convey("When INC/DEC carry no value", func() {
			points := aggregate.Behavior(types.MethodFrequency, []model.BehaviorFact{
				fact(1, day(5, 9), types.EventInc, nil),
				fact(1, day(5, 9), types.EventInc, val(2)),
			}, time.UTC)
			So(points[0].Value, ShouldEqual, 2.0)
		})

		Convey("When events span several dates with gaps", func() {
			points := aggregate.Behavior(types.MethodFrequency, []model.BehaviorFact{
				fact(3, day(9, 9), types.EventInc, val(1)),
				fact(1, day(2, 9), types.EventInc, val(1)),
				fact(2, day(4, 9), types.EventInc, val(4)),
			}, time.UTC)

			Convey("Then points are sorted ascending and gaps are not filled", func() {
				So(len(points), ShouldEqual, 3)
				So(points[0].Date, ShouldEqual, "2024-01-02")
				So(points[1].Date, ShouldEqual, "2024-01-04")
				So(points[2].Date, ShouldEqual, "2024-01-09")
			})
		})

		Convey("When a session starts before midnight and its events come after", func() {
			start := time.Date(2024, 1, 5, 23, 50, 0, 0, time.UTC)
			points := aggregate.Behavior(types.MethodFrequency, []model.BehaviorFact{
				fact(1, start, types.EventInc, val(1)),
				fact(1, start, types.EventInc, val(1)),
			}, time.UTC)

			Convey("Then everything lands on the start date", func() {
				So(points, ShouldResemble, []model.DatePoint{{Date: "2024-01-05", Value: 2, SessionCount: 1}})
			})
		})

		Convey("When bucketing in a zone other than UTC", func() {
			loc := time.FixedZone("UTC-5", -5*60*60)
			points := aggregate.Behavior(types.MethodFrequency, []model.BehaviorFact{
				fact(1, time.Date(2024, 1, 6, 2, 0, 0, 0, time.UTC), types.EventInc, val(1)),
			}, loc)

			Convey("Then the local calendar date is used", func() {
				So(points[0].Date, ShouldEqual, "2024-01-05")
			})
		})

		Convey("When there are no facts", func() {
			points := aggregate.Behavior(types.MethodDuration, nil, time.UTC)

			Convey("Then there are no points", func() {
				So(points, ShouldNotBeNil)
				So(points, ShouldBeEmpty)
			})
		})

		Convey("When the same facts arrive in different orders", func() {
			facts := []model.BehaviorFact{
				fact(1, day(5, 9), types.EventInc, val(1)),
				fact(1, day(5, 9), types.EventDec, val(-1)),
				fact(2, day(5, 13), types.EventInc, val(3)),
				fact(3, day(7, 9), types.EventInc, val(2)),
				fact(3, day(7, 9), types.EventHit, nil),
				fact(4, day(8, 9), types.EventStop, val(10)),
			}
			want := aggregate.Behavior(types.MethodFrequency, facts, time.UTC)
			rng := rand.New(rand.NewSource(42))

			Convey("Then the points are identical", func() {
				for i := 0; i < 20; i++ {
					shuffled := append([]model.BehaviorFact(nil), facts...)
					rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
					So(aggregate.Behavior(types.MethodFrequency, shuffled, time.UTC), ShouldResemble, want)
				}
			})
		})
	})
}

func TestContribution(t *testing.T) {
	Convey("Given every method and event type", t, func() {
		ten := val(10)
		cases := []struct {
			method types.Method
			event  types.EventType
			want   int64
		}{
			{types.MethodFrequency, types.EventInc, 10},
			{types.MethodFrequency, types.EventDec, 10},
			{types.MethodFrequency, types.EventStop, 0},
			{types.MethodFrequency, types.EventHit, 0},
			{types.MethodDuration, types.EventStop, 10},
			{types.MethodDuration, types.EventStart, 0},
			{types.MethodDuration, types.EventInc, 0},
			{types.MethodInterval, types.EventHit, 1},
			{types.MethodInterval, types.EventStop, 0},
			{types.MethodMTS, types.EventHit, 1},
			{types.MethodMTS, types.EventInc, 0},
			{types.Method("BOGUS"), types.EventHit, 0},
		}
		for _, c := range cases {
			So(aggregate.Contribution(c.method, c.event, ten), ShouldEqual, c.want)
		}
	})
}

func TestSkill(t *testing.T) {
	Convey("Given skill facts", t, func() {
		Convey("When a skill has 3 CORRECT and 1 WRONG on one date", func() {
			points := aggregate.Skill([]model.SkillFact{
				{SessionID: 1, SessionStartedAt: day(5, 9), EventType: types.SkillCorrect},
				{SessionID: 1, SessionStartedAt: day(5, 9), EventType: types.SkillWrong},
				{SessionID: 2, SessionStartedAt: day(5, 14), EventType: types.SkillCorrect},
				{SessionID: 2, SessionStartedAt: day(5, 14), EventType: types.SkillCorrect},
			}, time.UTC)

			Convey("Then the value is 75 percent over two sessions", func() {
				So(points, ShouldResemble, []model.DatePoint{{Date: "2024-01-05", Value: 75.0, SessionCount: 2}})
			})
		})

		Convey("When the ratio is not a round number", func() {
			points := aggregate.Skill([]model.SkillFact{
				{SessionID: 1, SessionStartedAt: day(5, 9), EventType: types.SkillCorrect},
				{SessionID: 1, SessionStartedAt: day(5, 9), EventType: types.SkillWrong},
				{SessionID: 1, SessionStartedAt: day(5, 9), EventType: types.SkillWrong},
			}, time.UTC)

			Convey("Then it is rounded to two decimals", func() {
				So(points[0].Value, ShouldEqual, 33.33)
			})
		})

		Convey("When a date has no trials", func() {
			points := aggregate.Skill([]model.SkillFact{
				{SessionID: 1, SessionStartedAt: day(5, 9), EventType: types.SkillWrong},
				{SessionID: 2, SessionStartedAt: day(7, 9), EventType: types.SkillCorrect},
			}, time.UTC)

			Convey("Then no point is produced for it", func() {
				So(len(points), ShouldEqual, 2)
				So(points[0], ShouldResemble, model.DatePoint{Date: "2024-01-05", Value: 0, SessionCount: 1})
				So(points[1], ShouldResemble, model.DatePoint{Date: "2024-01-07", Value: 100, SessionCount: 1})
			})
		})
	})
}

func TestPercentage(t *testing.T) {
	Convey("Given correct and total counts", t, func() {
		So(aggregate.Percentage(0, 0), ShouldEqual, 0.0)
		So(aggregate.Percentage(1, 3), ShouldEqual, 33.33)
		So(aggregate.Percentage(2, 3), ShouldEqual, 66.67)
		So(aggregate.Percentage(1, 8), ShouldEqual, 12.5)
		So(aggregate.Percentage(5, 5), ShouldEqual, 100.0)
	})
}
