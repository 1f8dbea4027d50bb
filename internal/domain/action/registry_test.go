package action_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/action"
	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry_SignRules(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		ctx := context.Background()
		reg := action.New(repository.NewMemoryStore())

		Convey("When creating a punishment with a positive value", func() {
			_, err := reg.Create(ctx, model.KindPunishment, "Late", 5)
			So(errs.IsValidation(err), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "negative")
		})

		Convey("When creating a punishment with a negative value", func() {
			p, err := reg.Create(ctx, model.KindPunishment, "Late", -5)
			So(err, ShouldBeNil)
			So(p.Value, ShouldEqual, -5)
			So(p.Kind, ShouldEqual, model.KindPunishment)
		})

		Convey("When creating rewards", func() {
			_, err := reg.Create(ctx, model.KindReward, "Nothing", 0)
			So(errs.IsValidation(err), ShouldBeTrue)
			_, err = reg.Create(ctx, model.KindReward, "Negative", -1)
			So(errs.IsValidation(err), ShouldBeTrue)
			_, err = reg.Create(ctx, model.KindReward, "  ", 3)
			So(errs.IsValidation(err), ShouldBeTrue)
			_, err = reg.Create(ctx, model.Kind("bonus"), "Bonus", 3)
			So(errs.IsValidation(err), ShouldBeTrue)
		})

		Convey("When updating a reward to a negative value", func() {
			r, err := reg.Create(ctx, model.KindReward, "Chore", 10)
			So(err, ShouldBeNil)
			_, err = reg.Update(ctx, model.KindReward, r.ID, "Chore", -10)
			So(errs.IsValidation(err), ShouldBeTrue)

			got, err := reg.Get(ctx, model.KindReward, r.ID)
			So(err, ShouldBeNil)
			So(got.Value, ShouldEqual, 10)
		})
	})
}

func TestRegistry_Names(t *testing.T) {
	Convey("Given a reward named Chore", t, func() {
		ctx := context.Background()
		reg := action.New(repository.NewMemoryStore())
		chore, err := reg.Create(ctx, model.KindReward, "Chore", 10)
		So(err, ShouldBeNil)

		Convey("Then another reward with the same name is rejected", func() {
			_, err := reg.Create(ctx, model.KindReward, "chore", 5)
			So(errs.IsAlreadyExists(err), ShouldBeTrue)
		})

		Convey("Then a punishment may share the name", func() {
			_, err := reg.Create(ctx, model.KindPunishment, "Chore", -5)
			So(err, ShouldBeNil)
		})

		Convey("Then updating keeps its own name available", func() {
			a, err := reg.Update(ctx, model.KindReward, chore.ID, "CHORE", 20)
			So(err, ShouldBeNil)
			So(a, ShouldResemble, model.Action{ID: chore.ID, Kind: model.KindReward, Name: "CHORE", Value: 20})
		})

		Convey("Then updating onto another reward's name fails", func() {
			other, err := reg.Create(ctx, model.KindReward, "Dishes", 5)
			So(err, ShouldBeNil)
			_, err = reg.Update(ctx, model.KindReward, other.ID, "chore", 5)
			So(errs.IsAlreadyExists(err), ShouldBeTrue)
		})

		Convey("Then unknown ids are not found", func() {
			_, err := reg.Update(ctx, model.KindReward, 404, "Ghost", 5)
			So(errs.IsNotFound(err), ShouldBeTrue)
			_, err = reg.Get(ctx, model.KindPunishment, chore.ID)
			So(errs.IsNotFound(err), ShouldBeTrue)
		})
	})
}

func TestRegistry_DeleteReferenced(t *testing.T) {
	Convey("Given a reward of value 10 assigned to a person", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		reg := action.New(store)
		p, err := store.CreatePerson(ctx, model.Person{Name: "Alice"})
		So(err, ShouldBeNil)
		r, err := reg.Create(ctx, model.KindReward, "Good", 10)
		So(err, ShouldBeNil)
		a, err := store.CreateAssignment(ctx, model.Snapshot(p.ID, r, time.Now()))
		So(err, ShouldBeNil)

		Convey("When deleting the reward", func() {
			err := reg.Delete(ctx, model.KindReward, r.ID)
			So(errs.IsBusinessRule(err), ShouldBeTrue)
		})

		Convey("When the assignment is deleted first", func() {
			So(store.DeleteAssignment(ctx, a.ID), ShouldBeNil)
			So(reg.Delete(ctx, model.KindReward, r.ID), ShouldBeNil)

			list, err := reg.List(ctx, model.KindReward)
			So(err, ShouldBeNil)
			So(list, ShouldBeEmpty)
			So(errs.IsNotFound(reg.Delete(ctx, model.KindReward, r.ID)), ShouldBeTrue)
		})
	})
}

func TestRegistry_RecommendedValue(t *testing.T) {
	Convey("Given a registry with custom defaults", t, func() {
		ctx := context.Background()
		reg := action.New(repository.NewMemoryStore(), action.WithDefaultValues(20, -15))

		Convey("Then empty kinds return the defaults", func() {
			v, err := reg.RecommendedValue(ctx, model.KindReward)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 20)
			v, err = reg.RecommendedValue(ctx, model.KindPunishment)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, -15)
		})

		Convey("Then existing values are averaged and rounded to a multiple of 5", func() {
			for i, v := range []int64{-3, -8, -20} {
				_, err := reg.Create(ctx, model.KindPunishment, []string{"a", "b", "c"}[i], v)
				So(err, ShouldBeNil)
			}
			// mean 31/3 = 10.33
			v, err := reg.RecommendedValue(ctx, model.KindPunishment)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, -10)
		})

		Convey("Then small averages never recommend zero", func() {
			_, err := reg.Create(ctx, model.KindReward, "Tiny", 1)
			So(err, ShouldBeNil)
			v, err := reg.RecommendedValue(ctx, model.KindReward)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 5)
		})

		Convey("Then an unknown kind is a validation error", func() {
			_, err := reg.RecommendedValue(ctx, model.Kind("x"))
			So(errs.IsValidation(err), ShouldBeTrue)
		})
	})

	Convey("Given the built-in defaults", t, func() {
		reg := action.New(repository.NewMemoryStore(), action.WithDefaultValues(-1, 1))
		v, err := reg.RecommendedValue(context.Background(), model.KindReward)
		So(err, ShouldBeNil)
		So(v, ShouldEqual, action.DefaultRewardValue)
		v, err = reg.RecommendedValue(context.Background(), model.KindPunishment)
		So(err, ShouldBeNil)
		So(v, ShouldEqual, action.DefaultPunishmentValue)
	})
}

func TestSeverityLevel(t *testing.T) {
	Convey("Given punishment values", t, func() {
		sev, err := action.SeverityLevel(-5)
		So(err, ShouldBeNil)
		So(sev, ShouldEqual, model.SeverityMild)

		sev, err = action.SeverityLevel(-31)
		So(err, ShouldBeNil)
		So(sev, ShouldEqual, model.SeverityVerySevere)

		_, err = action.SeverityLevel(0)
		So(errs.IsValidation(err), ShouldBeTrue)
	})
}
