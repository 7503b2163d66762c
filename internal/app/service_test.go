package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	service "github.com/okian/sessiontrack/internal/app"
	"github.com/okian/sessiontrack/internal/domain/ingest"
	"github.com/okian/sessiontrack/internal/domain/model"
	"github.com/okian/sessiontrack/internal/domain/taxonomy"
	"github.com/okian/sessiontrack/internal/domain/types"
	"github.com/okian/sessiontrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// clock is a settable test clock.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func batch(raw string) []any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out []any
	if err := dec.Decode(&out); err != nil {
		panic(err)
	}
	return out
}

func interval(n int64) types.Settings { return types.IntervalSettings(n) }

func startService(opts ...service.Option) *service.Service {
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("When it has not been started", func() {
			_, err := svc.ListClients(ctx)

			Convey("Then operations fail with ErrNotStarted", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})
		})

		Convey("When starting and stopping it", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["records"], ShouldNotBeNil)
			svc.Stop()
			svc.Stop()

			Convey("Then it is marked as stopped", func() {
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
				_, err := svc.GetClient(ctx, 1)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_Taxonomy(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService()
		defer svc.Stop()
		ctx := context.Background()

		Convey("When creating a client with bad input", func() {
			_, errName := svc.CreateClient(ctx, service.ClientInput{Name: "  ", Birthdate: "2018-01-01"})
			_, errDate := svc.CreateClient(ctx, service.ClientInput{Name: "Ada", Birthdate: "01/02/2018"})

			Convey("Then validation errors name the field", func() {
				var ve *types.ValidationError
				So(errors.As(errName, &ve), ShouldBeTrue)
				So(ve.Field, ShouldEqual, "name")
				So(errors.As(errDate, &ve), ShouldBeTrue)
				So(ve.Field, ShouldEqual, "birthdate")
			})
		})

		Convey("When a client exists", func() {
			client, err := svc.CreateClient(ctx, service.ClientInput{Name: " Ada ", Birthdate: "2018-01-01", Info: new(string)})
			So(err, ShouldBeNil)
			So(client.Name, ShouldEqual, "Ada")
			So(client.Info, ShouldBeNil)

			Convey("Then INTERVAL/MTS behaviors require a positive interval", func() {
				for _, method := range []string{"INTERVAL", "MTS"} {
					_, err := svc.CreateBehavior(ctx, client.ID, taxonomy.BehaviorInput{Name: "x", Method: method})
					So(errors.Is(err, types.ErrValidation), ShouldBeTrue)
					_, err = svc.CreateBehavior(ctx, client.ID, taxonomy.BehaviorInput{Name: "x", Method: method, Settings: interval(0)})
					So(errors.Is(err, types.ErrValidation), ShouldBeTrue)
					b, err := svc.CreateBehavior(ctx, client.ID, taxonomy.BehaviorInput{Name: "x", Method: method, Settings: interval(15)})
					So(err, ShouldBeNil)
					So(*b.Settings.IntervalSeconds, ShouldEqual, int64(15))
				}
			})

			Convey("And unknown methods are rejected", func() {
				_, err := svc.CreateBehavior(ctx, client.ID, taxonomy.BehaviorInput{Name: "x", Method: "RATE"})
				var ve *types.ValidationError
				So(errors.As(err, &ve), ShouldBeTrue)
				So(ve.Field, ShouldEqual, "method")
			})

			Convey("And behaviors and skills list in creation order", func() {
				_, err := svc.CreateBehavior(ctx, client.ID, taxonomy.BehaviorInput{Name: "b1", Method: "frequency"})
				So(err, ShouldBeNil)
				_, err = svc.CreateBehavior(ctx, client.ID, taxonomy.BehaviorInput{Name: "b2", Method: "DURATION"})
				So(err, ShouldBeNil)
				sk, err := svc.CreateSkill(ctx, client.ID, taxonomy.SkillInput{Name: "s1"})
				So(err, ShouldBeNil)
				So(sk.Method, ShouldEqual, types.SkillPercentage)
				So(sk.SkillType, ShouldEqual, types.SkillTypeOther)

				behaviors, err := svc.ListBehaviors(ctx, client.ID)
				So(err, ShouldBeNil)
				So(len(behaviors), ShouldEqual, 2)
				So(behaviors[0].Name, ShouldEqual, "b1")
				So(behaviors[0].Method, ShouldEqual, types.MethodFrequency)
				skills, err := svc.ListSkills(ctx, client.ID)
				So(err, ShouldBeNil)
				So(len(skills), ShouldEqual, 1)
			})
		})

		Convey("When the client does not exist", func() {
			_, errBehavior := svc.CreateBehavior(ctx, 404, taxonomy.BehaviorInput{Name: "x", Method: "FREQUENCY"})
			_, errSkill := svc.CreateSkill(ctx, 404, taxonomy.SkillInput{Name: "x"})
			_, errList := svc.ListBehaviors(ctx, 404)
			_, errSkills := svc.ListSkills(ctx, 404)
			_, errSession := svc.StartSession(ctx, 404)

			Convey("Then every call fails with NotFound", func() {
				for _, err := range []error{errBehavior, errSkill, errList, errSkills, errSession} {
					So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
				}
			})
		})
	})
}

func TestService_Ingestion(t *testing.T) {
	Convey("Given two clients with behaviors and a session for the first", t, func() {
		clk := &clock{now: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)}
		svc := startService(service.WithClock(clk.Now), service.WithMaxBatchSize(5))
		defer svc.Stop()
		ctx := context.Background()

		ada, _ := svc.CreateClient(ctx, service.ClientInput{Name: "Ada", Birthdate: "2018-01-01"})
		bo, _ := svc.CreateClient(ctx, service.ClientInput{Name: "Bo", Birthdate: "2017-01-01"})
		mine, _ := svc.CreateBehavior(ctx, ada.ID, taxonomy.BehaviorInput{Name: "Hit", Method: "FREQUENCY"})
		theirs, _ := svc.CreateBehavior(ctx, bo.ID, taxonomy.BehaviorInput{Name: "Kick", Method: "FREQUENCY"})
		skill, _ := svc.CreateSkill(ctx, ada.ID, taxonomy.SkillInput{Name: "Mand"})
		sess, err := svc.StartSession(ctx, ada.ID)
		So(err, ShouldBeNil)
		So(sess.Open(), ShouldBeTrue)

		Convey("When a mixed batch is recorded", func() {
			raw := `[
				{"behavior_id": ` + itoa(mine.ID) + `, "event_type": "INC", "value": 1},
				{"behavior_id": ` + itoa(theirs.ID) + `, "event_type": "INC", "value": 1},
				{"behavior_id": 999, "event_type": "INC", "value": 1},
				{"behavior_id": ` + itoa(mine.ID) + `, "event_type": "BOGUS"},
				{"behavior_id": ` + itoa(mine.ID) + `, "event_type": "INC", "value": 1, "happened_at": "not a time"}
			]`
			report, err := svc.RecordEvents(ctx, sess.ID, batch(raw))

			Convey("Then only valid same-client elements are accepted", func() {
				So(err, ShouldBeNil)
				So(report.Accepted, ShouldEqual, 2)
				So(report.Accepted, ShouldBeLessThanOrEqualTo, 5)
				So(report.Rejected, ShouldResemble, []ingest.Rejection{
					{Index: 1, Reason: ingest.ReasonClientMismatch},
					{Index: 2, Reason: ingest.ReasonUnknownBehavior},
					{Index: 3, Reason: ingest.ReasonInvalidEventType},
				})
			})
		})

		Convey("When the batch exceeds the cap", func() {
			_, err := svc.RecordEvents(ctx, sess.ID, make([]any, 6))

			Convey("Then the whole call is rejected", func() {
				So(errors.Is(err, types.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the session does not exist", func() {
			_, errEvents := svc.RecordEvents(ctx, 999, nil)
			_, errSkills := svc.RecordSkillEvents(ctx, 999, nil)
			_, errEnd := svc.EndSession(ctx, 999, nil, nil)

			Convey("Then NotFound is returned", func() {
				So(errors.Is(errEvents, types.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errSkills, types.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errEnd, types.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When skill trials are recorded", func() {
			report, err := svc.RecordSkillEvents(ctx, sess.ID, batch(`[
				{"skill_id": `+itoa(skill.ID)+`, "event_type": "CORRECT"},
				{"skill_id": `+itoa(skill.ID)+`, "event_type": "HIT"}
			]`))

			Convey("Then vocabulary is enforced per element", func() {
				So(err, ShouldBeNil)
				So(report.Accepted, ShouldEqual, 1)
				So(report.Rejected[0].Reason, ShouldEqual, ingest.ReasonInvalidEventType)
			})
		})

		Convey("When the session is ended with final events", func() {
			clk.Set(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))
			res, err := svc.EndSession(ctx, sess.ID,
				batch(`[{"behavior_id": `+itoa(mine.ID)+`, "event_type": "INC", "value": 2}]`),
				batch(`[{"skill_id": `+itoa(skill.ID)+`, "event_type": "WRONG"}]`),
			)

			Convey("Then ended_at is stamped and the events are stored", func() {
				So(err, ShouldBeNil)
				So(res.Session.EndedAt, ShouldNotBeNil)
				So(res.Session.EndedAt.Equal(clk.Now()), ShouldBeTrue)
				So(res.Events.Accepted, ShouldEqual, 1)
				So(res.SkillEvents.Accepted, ShouldEqual, 1)

				got, err := svc.GetSession(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(got.Open(), ShouldBeFalse)

				points, err := svc.BehaviorSessionPoints(ctx, mine.ID)
				So(err, ShouldBeNil)
				So(points.Points, ShouldResemble, []model.DatePoint{{Date: "2024-01-05", Value: 2, SessionCount: 1}})
			})

			Convey("And a closed session still accepts events", func() {
				report, err := svc.RecordEvents(ctx, sess.ID,
					batch(`[{"behavior_id": `+itoa(mine.ID)+`, "event_type": "INC", "value": 1}]`))
				So(err, ShouldBeNil)
				So(report.Accepted, ShouldEqual, 1)
			})
		})
	})
}

func TestService_Analysis(t *testing.T) {
	Convey("Given a client with one behavior per method and a skill", t, func() {
		clk := &clock{now: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)}
		svc := startService(service.WithClock(clk.Now))
		defer svc.Stop()
		ctx := context.Background()

		c, _ := svc.CreateClient(ctx, service.ClientInput{Name: "Ada", Birthdate: "2018-01-01"})
		freq, _ := svc.CreateBehavior(ctx, c.ID, taxonomy.BehaviorInput{Name: "f", Method: "FREQUENCY"})
		dur, _ := svc.CreateBehavior(ctx, c.ID, taxonomy.BehaviorInput{Name: "d", Method: "DURATION"})
		itv, _ := svc.CreateBehavior(ctx, c.ID, taxonomy.BehaviorInput{Name: "i", Method: "INTERVAL", Settings: interval(10)})
		skill, _ := svc.CreateSkill(ctx, c.ID, taxonomy.SkillInput{Name: "s", SkillType: "tact"})

		first, _ := svc.StartSession(ctx, c.ID)
		clk.Set(time.Date(2024, 1, 5, 15, 0, 0, 0, time.UTC))
		second, _ := svc.StartSession(ctx, c.ID)

		Convey("When FREQUENCY records INC 1, INC 1, DEC -1", func() {
			_, err := svc.RecordEvents(ctx, first.ID, batch(`[
				{"behavior_id": `+itoa(freq.ID)+`, "event_type": "INC", "value": 1},
				{"behavior_id": `+itoa(freq.ID)+`, "event_type": "INC", "value": 1},
				{"behavior_id": `+itoa(freq.ID)+`, "event_type": "DEC", "value": -1}
			]`))
			So(err, ShouldBeNil)
			got, err := svc.BehaviorSessionPoints(ctx, freq.ID)

			Convey("Then the value is 1", func() {
				So(err, ShouldBeNil)
				So(got.Behavior.Method, ShouldEqual, types.MethodFrequency)
				So(got.Points, ShouldResemble, []model.DatePoint{{Date: "2024-01-05", Value: 1, SessionCount: 1}})
			})
		})

		Convey("When DURATION has STOP 30 in two sessions on the same day", func() {
			for _, id := range []int64{first.ID, second.ID} {
				_, err := svc.RecordEvents(ctx, id, batch(`[
					{"behavior_id": `+itoa(dur.ID)+`, "event_type": "START"},
					{"behavior_id": `+itoa(dur.ID)+`, "event_type": "STOP", "value": 30}
				]`))
				So(err, ShouldBeNil)
			}
			got, err := svc.BehaviorSessionPoints(ctx, dur.ID)

			Convey("Then one point carries 60 seconds over two sessions", func() {
				So(err, ShouldBeNil)
				So(got.Points, ShouldResemble, []model.DatePoint{{Date: "2024-01-05", Value: 60, SessionCount: 2}})
			})
		})

		Convey("When INTERVAL has three HITs and a START", func() {
			_, err := svc.RecordEvents(ctx, first.ID, batch(`[
				{"behavior_id": `+itoa(itv.ID)+`, "event_type": "HIT"},
				{"behavior_id": `+itoa(itv.ID)+`, "event_type": "HIT"},
				{"behavior_id": `+itoa(itv.ID)+`, "event_type": "START"},
				{"behavior_id": `+itoa(itv.ID)+`, "event_type": "HIT"}
			]`))
			So(err, ShouldBeNil)
			got, err := svc.BehaviorSessionPoints(ctx, itv.ID)

			Convey("Then the value is 3", func() {
				So(err, ShouldBeNil)
				So(got.Points[0].Value, ShouldEqual, 3.0)
			})
		})

		Convey("When a skill has 3 CORRECT and 1 WRONG", func() {
			_, err := svc.RecordSkillEvents(ctx, first.ID, batch(`[
				{"skill_id": `+itoa(skill.ID)+`, "event_type": "CORRECT"},
				{"skill_id": `+itoa(skill.ID)+`, "event_type": "CORRECT"},
				{"skill_id": `+itoa(skill.ID)+`, "event_type": "WRONG"},
				{"skill_id": `+itoa(skill.ID)+`, "event_type": "CORRECT"}
			]`))
			So(err, ShouldBeNil)
			got, err := svc.SkillSessionPoints(ctx, skill.ID)

			Convey("Then the value is 75 percent", func() {
				So(err, ShouldBeNil)
				So(got.Skill.SkillType, ShouldEqual, types.SkillTypeTact)
				So(got.Points, ShouldResemble, []model.DatePoint{{Date: "2024-01-05", Value: 75, SessionCount: 1}})
			})
		})

		Convey("When a behavior has no events", func() {
			got, err := svc.BehaviorSessionPoints(ctx, freq.ID)

			Convey("Then there are no zero-event points", func() {
				So(err, ShouldBeNil)
				So(got.Points, ShouldBeEmpty)
			})
		})

		Convey("When the behavior or skill is unknown", func() {
			_, errB := svc.BehaviorSessionPoints(ctx, 999)
			_, errS := svc.SkillSessionPoints(ctx, 999)

			Convey("Then NotFound is returned", func() {
				So(errors.Is(errB, types.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errS, types.ErrNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service bucketing in a western time zone", t, func() {
		clk := &clock{now: time.Date(2024, 1, 6, 2, 0, 0, 0, time.UTC)}
		loc := time.FixedZone("UTC-5", -5*60*60)
		svc := startService(service.WithClock(clk.Now), service.WithLocation(loc))
		defer svc.Stop()
		ctx := context.Background()

		c, _ := svc.CreateClient(ctx, service.ClientInput{Name: "Ada", Birthdate: "2018-01-01"})
		b, _ := svc.CreateBehavior(ctx, c.ID, taxonomy.BehaviorInput{Name: "f", Method: "FREQUENCY"})
		sess, _ := svc.StartSession(ctx, c.ID)
		_, err := svc.RecordEvents(ctx, sess.ID, batch(`[{"behavior_id": `+itoa(b.ID)+`, "event_type": "INC", "value": 1}]`))
		So(err, ShouldBeNil)

		Convey("Then the session's local start date is the bucket", func() {
			got, err := svc.BehaviorSessionPoints(ctx, b.ID)
			So(err, ShouldBeNil)
			So(got.Points[0].Date, ShouldEqual, "2024-01-05")
		})
	})
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
