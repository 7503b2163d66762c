package types_test

import (
	"encoding/json"
	"errors"
	"testing"

	types "github.com/okian/sessiontrack/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVocabularies(t *testing.T) {
	Convey("Given the closed vocabularies", t, func() {
		Convey("When parsing methods", func() {
			m, ok := types.ParseMethod("mts")
			So(ok, ShouldBeTrue)
			So(m, ShouldEqual, types.MethodMTS)
			So(m.RequiresInterval(), ShouldBeTrue)

			_, ok = types.ParseMethod("RATE")
			So(ok, ShouldBeFalse)
			So(types.MethodFrequency.RequiresInterval(), ShouldBeFalse)
		})

		Convey("When parsing behavior event types", func() {
			for _, s := range []string{"inc", "DEC", "Start", "stop", "HIT"} {
				_, ok := types.ParseEventType(s)
				So(ok, ShouldBeTrue)
			}
			_, ok := types.ParseEventType("CORRECT")
			So(ok, ShouldBeFalse)
			_, ok = types.ParseEventType("")
			So(ok, ShouldBeFalse)
		})

		Convey("When parsing skill event types", func() {
			st, ok := types.ParseSkillEventType("correct")
			So(ok, ShouldBeTrue)
			So(st, ShouldEqual, types.SkillCorrect)
			_, ok = types.ParseSkillEventType("HIT")
			So(ok, ShouldBeFalse)
		})

		Convey("When parsing skill types", func() {
			So(len(types.SkillTypes()), ShouldEqual, 11)
			for _, st := range types.SkillTypes() {
				So(st.Valid(), ShouldBeTrue)
			}
			_, ok := types.ParseSkillType("SPEAK")
			So(ok, ShouldBeFalse)
		})

		Convey("When parsing roles", func() {
			r, ok := types.ParseRole(" bcba ")
			So(ok, ShouldBeTrue)
			So(r, ShouldEqual, types.RoleBCBA)
			_, ok = types.ParseRole("ADMIN")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSettings(t *testing.T) {
	Convey("Given behavior settings JSON", t, func() {
		Convey("When interval_seconds is an integer with extra keys", func() {
			var s types.Settings
			err := json.Unmarshal([]byte(`{"interval_seconds": 15, "prompt": "verbal"}`), &s)

			Convey("Then the interval is typed and the rest preserved", func() {
				So(err, ShouldBeNil)
				So(*s.IntervalSeconds, ShouldEqual, int64(15))
				So(s.HasInterval(), ShouldBeTrue)

				out, err := json.Marshal(s)
				So(err, ShouldBeNil)
				var back map[string]any
				So(json.Unmarshal(out, &back), ShouldBeNil)
				So(back["interval_seconds"], ShouldEqual, float64(15))
				So(back["prompt"], ShouldEqual, "verbal")
			})
		})

		Convey("When interval_seconds is a float literal", func() {
			var s types.Settings
			So(json.Unmarshal([]byte(`{"interval_seconds": 5.0}`), &s), ShouldBeNil)

			Convey("Then it stays raw and untyped", func() {
				So(s.IntervalSeconds, ShouldBeNil)
				So(s.HasInterval(), ShouldBeTrue)
				raw, ok := s.Raw("interval_seconds")
				So(ok, ShouldBeTrue)
				So(string(raw), ShouldEqual, "5.0")
			})
		})

		Convey("When settings are null or empty", func() {
			var s types.Settings
			So(json.Unmarshal([]byte(`null`), &s), ShouldBeNil)
			So(s.HasInterval(), ShouldBeFalse)

			out, err := json.Marshal(s)
			So(err, ShouldBeNil)
			So(string(out), ShouldEqual, "{}")
		})

		Convey("When settings are not an object", func() {
			var s types.Settings
			So(json.Unmarshal([]byte(`[1,2]`), &s), ShouldNotBeNil)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given typed domain errors", t, func() {
		Convey("Then they unwrap to their sentinel kinds", func() {
			So(errors.Is(types.Invalid("name", "name is required"), types.ErrValidation), ShouldBeTrue)
			So(errors.Is(types.NotFound("session", 7), types.ErrNotFound), ShouldBeTrue)
			So(errors.Is(types.NotFound("session", 7), types.ErrValidation), ShouldBeFalse)
			So(types.NotFound("session", 7).Error(), ShouldEqual, "session 7 not found")
		})
	})
}
