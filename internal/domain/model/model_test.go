package model_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	model "github.com/okian/tally/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestKind(t *testing.T) {
	convey.Convey("Given the action kinds", t, func() {
		convey.Convey("When parsing item types", func() {
			k, err := model.ParseKind(" Reward ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(k, convey.ShouldEqual, model.KindReward)

			k, err = model.ParseKind("punishment")
			convey.So(err, convey.ShouldBeNil)
			convey.So(k, convey.ShouldEqual, model.KindPunishment)

			_, err = model.ParseKind("bonus")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When decoding item types from JSON", func() {
			var req struct {
				ItemType model.Kind `json:"itemType"`
			}
			convey.So(json.Unmarshal([]byte(`{"itemType":" Punishment "}`), &req), convey.ShouldBeNil)
			convey.So(req.ItemType, convey.ShouldEqual, model.KindPunishment)

			err := json.Unmarshal([]byte(`{"itemType":"bonus"}`), &req)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, `got "bonus"`)
			convey.So(json.Unmarshal([]byte(`{"itemType":3}`), &req), convey.ShouldNotBeNil)
		})

		convey.Convey("Then every kind is listed", func() {
			convey.So(model.Kinds, convey.ShouldResemble, []model.Kind{model.KindReward, model.KindPunishment})
		})

		convey.Convey("Then each kind enforces its sign", func() {
			convey.So(model.KindReward.Allows(10), convey.ShouldBeTrue)
			convey.So(model.KindReward.Allows(0), convey.ShouldBeFalse)
			convey.So(model.KindReward.Allows(-1), convey.ShouldBeFalse)
			convey.So(model.KindPunishment.Allows(-5), convey.ShouldBeTrue)
			convey.So(model.KindPunishment.Allows(0), convey.ShouldBeFalse)
			convey.So(model.KindPunishment.Allows(5), convey.ShouldBeFalse)
			convey.So(model.Kind("other").Allows(1), convey.ShouldBeFalse)
		})
	})
}

func TestSeverityOf(t *testing.T) {
	convey.Convey("Given punishment values", t, func() {
		cases := []struct {
			value int64
			want  model.Severity
		}{
			{-1, model.SeverityMild},
			{-5, model.SeverityMild},
			{-6, model.SeverityModerate},
			{-15, model.SeverityModerate},
			{-16, model.SeveritySevere},
			{-30, model.SeveritySevere},
			{-31, model.SeverityVerySevere},
			{-500, model.SeverityVerySevere},
		}
		for _, c := range cases {
			sev, ok := model.SeverityOf(c.value)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(sev, convey.ShouldEqual, c.want)
		}

		convey.Convey("Then non-negative values have no severity", func() {
			_, ok := model.SeverityOf(0)
			convey.So(ok, convey.ShouldBeFalse)
			_, ok = model.SeverityOf(7)
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}

func TestNames(t *testing.T) {
	convey.Convey("Given user supplied names", t, func() {
		convey.So(model.NormalizeName("  Alice \t"), convey.ShouldEqual, "Alice")
		convey.So(model.NameKey(" ALICE "), convey.ShouldEqual, model.NameKey("alice"))
		convey.So(model.NameProblem("", 10), convey.ShouldContainSubstring, "empty")
		convey.So(model.NameProblem(strings.Repeat("é", 11), 10), convey.ShouldContainSubstring, "at most 10")
		convey.So(model.NameProblem(strings.Repeat("é", 10), 10), convey.ShouldEqual, "")
	})
}

func TestSnapshot(t *testing.T) {
	convey.Convey("Given an action", t, func() {
		at := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
		action := model.Action{ID: 4, Kind: model.KindPunishment, Name: "Late", Value: -5}

		convey.Convey("When snapshotting it for a person", func() {
			a := model.Snapshot(9, action, at)

			convey.Convey("Then the name and value are copied", func() {
				convey.So(a.PersonID, convey.ShouldEqual, 9)
				convey.So(a.ItemType, convey.ShouldEqual, model.KindPunishment)
				convey.So(a.ItemID, convey.ShouldEqual, 4)
				convey.So(a.ItemName, convey.ShouldEqual, "Late")
				convey.So(a.ItemValue, convey.ShouldEqual, -5)
				convey.So(a.AssignedAt, convey.ShouldEqual, at)
			})

			convey.Convey("And editing the action afterwards does not touch it", func() {
				action.Value = -50
				action.Name = "Very late"
				convey.So(a.ItemValue, convey.ShouldEqual, -5)
				convey.So(a.ItemName, convey.ShouldEqual, "Late")
			})
		})
	})
}

func TestCollation(t *testing.T) {
	convey.Convey("Given the default collation", t, func() {
		cmp := model.DefaultCollation.Comparer()

		convey.Convey("Then names sort alphabetically regardless of accents", func() {
			convey.So(cmp("Alice", "Bob"), convey.ShouldBeLessThan, 0)
			convey.So(cmp("Émile", "Frank"), convey.ShouldBeLessThan, 0)
			convey.So(cmp("bob", "Alice"), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("Then equal names fall back to the id", func() {
			a := model.Person{ID: 2, Name: "Sam"}
			b := model.Person{ID: 5, Name: "Sam"}
			convey.So(model.ComparePersons(cmp, a, b), convey.ShouldBeLessThan, 0)
			convey.So(model.ComparePersons(cmp, b, a), convey.ShouldBeGreaterThan, 0)
			convey.So(model.ComparePersons(cmp, a, a), convey.ShouldEqual, 0)
		})
	})

	convey.Convey("Given locale tags", t, func() {
		c, err := model.ParseCollation(" sv ")
		convey.So(err, convey.ShouldBeNil)
		convey.So(c.String(), convey.ShouldEqual, "sv")

		_, err = model.ParseCollation("not a locale!")
		convey.So(err, convey.ShouldNotBeNil)
	})
}
