package person_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/person"
	. "github.com/smartystreets/goconvey/convey"
)

// failingStore breaks every lookup to exercise infrastructure errors.
type failingStore struct {
	*repository.MemoryStore
}

var errDisk = errors.New("disk on fire")

func (failingStore) FindPersonByName(context.Context, string) (model.Person, error) {
	return model.Person{}, errDisk
}

func TestRegistry_Create(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		ctx := context.Background()
		reg := person.New(repository.NewMemoryStore(), person.WithMaxNameLength(10))

		Convey("When creating a person with surrounding spaces", func() {
			p, err := reg.Create(ctx, "  Alice  ")

			Convey("Then the name is trimmed and an id assigned", func() {
				So(err, ShouldBeNil)
				So(p.ID, ShouldBeGreaterThan, 0)
				So(p.Name, ShouldEqual, "Alice")
			})

			Convey("And a case-insensitive duplicate is rejected", func() {
				_, err := reg.Create(ctx, "ALICE")
				So(errs.IsAlreadyExists(err), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "ALICE")
			})
		})

		Convey("When the name is blank or too long", func() {
			_, err := reg.Create(ctx, "   ")
			So(errs.IsValidation(err), ShouldBeTrue)

			_, err = reg.Create(ctx, strings.Repeat("x", 11))
			So(errs.IsValidation(err), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "at most 10")
		})

		Convey("When the store fails", func() {
			broken := person.New(failingStore{repository.NewMemoryStore()})
			_, err := broken.Create(ctx, "Bob")

			Convey("Then the failure carries no domain kind", func() {
				So(errors.Is(err, errDisk), ShouldBeTrue)
				So(errs.KindOf(err), ShouldBeNil)
			})
		})
	})
}

func TestRegistry_Rename(t *testing.T) {
	Convey("Given Alice and Bob", t, func() {
		ctx := context.Background()
		reg := person.New(repository.NewMemoryStore())
		alice, _ := reg.Create(ctx, "Alice")
		bob, _ := reg.Create(ctx, "Bob")

		Convey("Then renaming to a free name succeeds", func() {
			p, err := reg.Rename(ctx, alice.ID, " Alicia ")
			So(err, ShouldBeNil)
			So(p, ShouldResemble, model.Person{ID: alice.ID, Name: "Alicia"})
		})

		Convey("Then renaming to one's own name in another case succeeds", func() {
			p, err := reg.Rename(ctx, alice.ID, "ALICE")
			So(err, ShouldBeNil)
			So(p.Name, ShouldEqual, "ALICE")
		})

		Convey("Then taking another person's name fails", func() {
			_, err := reg.Rename(ctx, bob.ID, "alice")
			So(errs.IsAlreadyExists(err), ShouldBeTrue)
		})

		Convey("Then unknown ids and bad names fail", func() {
			_, err := reg.Rename(ctx, 999, "Carol")
			So(errs.IsNotFound(err), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "999")

			_, err = reg.Rename(ctx, bob.ID, "")
			So(errs.IsValidation(err), ShouldBeTrue)
		})
	})
}

func TestRegistry_Delete(t *testing.T) {
	Convey("Given a person with an assignment", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		reg := person.New(store)
		alice, _ := reg.Create(ctx, "Alice")
		reward, err := store.CreateAction(ctx, model.Action{Kind: model.KindReward, Name: "Chore", Value: 10})
		So(err, ShouldBeNil)
		a, err := store.CreateAssignment(ctx, model.Snapshot(alice.ID, reward, time.Now()))
		So(err, ShouldBeNil)

		Convey("When deleting the person", func() {
			err := reg.Delete(ctx, alice.ID)

			Convey("Then the business rule blocks it", func() {
				So(errs.IsBusinessRule(err), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "has dependent assignments")
			})
		})

		Convey("When the assignment is removed first", func() {
			So(store.DeleteAssignment(ctx, a.ID), ShouldBeNil)
			So(reg.Delete(ctx, alice.ID), ShouldBeNil)

			Convey("Then the person is gone", func() {
				_, err := reg.Get(ctx, alice.ID)
				So(errs.IsNotFound(err), ShouldBeTrue)
				So(errs.IsNotFound(reg.Delete(ctx, alice.ID)), ShouldBeTrue)
			})
		})
	})
}

func TestRegistry_IsNameAvailable(t *testing.T) {
	Convey("Given Alice", t, func() {
		ctx := context.Background()
		reg := person.New(repository.NewMemoryStore())
		alice, _ := reg.Create(ctx, "Alice")

		cases := []struct {
			name    string
			exclude int64
			want    bool
		}{
			{"Bob", 0, true},
			{"alice", 0, false},
			{"alice", alice.ID, true},
			{"alice", alice.ID + 1, false},
			{"   ", 0, false},
			{"", alice.ID, false},
		}
		for _, c := range cases {
			ok, err := reg.IsNameAvailable(ctx, c.name, c.exclude)
			So(err, ShouldBeNil)
			So(ok, ShouldEqual, c.want)
		}
	})
}

func TestRegistry_List(t *testing.T) {
	Convey("Given people created out of order", t, func() {
		ctx := context.Background()
		reg := person.New(repository.NewMemoryStore())
		for _, n := range []string{"Charlie", "alice", "Bob"} {
			_, err := reg.Create(ctx, n)
			So(err, ShouldBeNil)
		}

		Convey("Then List orders them by name", func() {
			people, err := reg.List(ctx)
			So(err, ShouldBeNil)
			names := make([]string, len(people))
			for i, p := range people {
				names[i] = p.Name
			}
			So(names, ShouldResemble, []string{"alice", "Bob", "Charlie"})
		})

		Convey("Then Get rejects non-positive ids", func() {
			_, err := reg.Get(ctx, 0)
			So(errs.IsValidation(err), ShouldBeTrue)
		})
	})
}
