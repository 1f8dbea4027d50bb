// Package storetest holds the behavioral contract every repository.Store
// implementation must satisfy. Store packages call Run from their tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. Cleanup is the factory's concern.
type Factory func(t *testing.T) repository.Store

var base = time.Date(2026, time.October, 12, 9, 0, 0, 0, time.UTC)

// Run executes the contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("persons", func(t *testing.T) { testPersons(t, newStore(t)) })
	t.Run("actions", func(t *testing.T) { testActions(t, newStore(t)) })
	t.Run("assignments", func(t *testing.T) { testAssignments(t, newStore(t)) })
	t.Run("batch rollback", func(t *testing.T) { testBatchRollback(t, newStore(t)) })
	t.Run("sum by person", func(t *testing.T) { testSumByPerson(t, newStore(t)) })
	t.Run("referenced rows", func(t *testing.T) { testInUse(t, newStore(t)) })
}

func testPersons(t *testing.T, s repository.Store) {
	ctx := context.Background()

	alice, err := s.CreatePerson(ctx, model.Person{Name: "Alice"})
	require.NoError(t, err)
	require.NotZero(t, alice.ID)

	_, err = s.CreatePerson(ctx, model.Person{Name: "alice"})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)

	bob, err := s.CreatePerson(ctx, model.Person{Name: "Bob"})
	require.NoError(t, err)

	got, err := s.FindPersonByName(ctx, "ALICE")
	require.NoError(t, err)
	require.Equal(t, alice, got)

	_, err = s.FindPersonByName(ctx, "Carol")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.UpdatePerson(ctx, model.Person{ID: bob.ID, Name: "ALICE"})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)

	renamed, err := s.UpdatePerson(ctx, model.Person{ID: alice.ID, Name: "ALICE"})
	require.NoError(t, err)
	require.Equal(t, "ALICE", renamed.Name)

	_, err = s.UpdatePerson(ctx, model.Person{ID: 9999, Name: "Ghost"})
	require.ErrorIs(t, err, repository.ErrNotFound)

	all, err := s.ListPersons(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Person{renamed, bob}, all)

	require.NoError(t, s.DeletePerson(ctx, bob.ID))
	_, err = s.FindPersonByID(ctx, bob.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, s.DeletePerson(ctx, bob.ID), repository.ErrNotFound)
}

func testActions(t *testing.T, s repository.Store) {
	ctx := context.Background()

	chore, err := s.CreateAction(ctx, model.Action{Kind: model.KindReward, Name: "Chore", Value: 10})
	require.NoError(t, err)

	_, err = s.CreateAction(ctx, model.Action{Kind: model.KindReward, Name: "chore", Value: 5})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)

	// Names are unique per kind only.
	late, err := s.CreateAction(ctx, model.Action{Kind: model.KindPunishment, Name: "Chore", Value: -5})
	require.NoError(t, err)

	_, err = s.FindActionByID(ctx, model.KindPunishment, chore.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	got, err := s.FindActionByName(ctx, model.KindPunishment, "CHORE")
	require.NoError(t, err)
	require.Equal(t, late, got)

	chore.Value = 20
	updated, err := s.UpdateAction(ctx, chore)
	require.NoError(t, err)
	require.EqualValues(t, 20, updated.Value)

	rewards, err := s.ListActions(ctx, model.KindReward)
	require.NoError(t, err)
	require.Equal(t, []model.Action{updated}, rewards)

	require.ErrorIs(t, s.DeleteAction(ctx, model.KindReward, late.ID), repository.ErrNotFound)
	require.NoError(t, s.DeleteAction(ctx, model.KindPunishment, late.ID))
	punishments, err := s.ListActions(ctx, model.KindPunishment)
	require.NoError(t, err)
	require.Empty(t, punishments)
}

func seed(t *testing.T, s repository.Store) (model.Person, model.Person, model.Action, model.Action) {
	t.Helper()
	ctx := context.Background()
	alice, err := s.CreatePerson(ctx, model.Person{Name: "Alice"})
	require.NoError(t, err)
	bob, err := s.CreatePerson(ctx, model.Person{Name: "Bob"})
	require.NoError(t, err)
	good, err := s.CreateAction(ctx, model.Action{Kind: model.KindReward, Name: "Good", Value: 10})
	require.NoError(t, err)
	late, err := s.CreateAction(ctx, model.Action{Kind: model.KindPunishment, Name: "Late", Value: -3})
	require.NoError(t, err)
	return alice, bob, good, late
}

func testAssignments(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice, bob, good, late := seed(t, s)

	a1, err := s.CreateAssignment(ctx, model.Snapshot(alice.ID, good, base))
	require.NoError(t, err)
	require.NotZero(t, a1.ID)

	batch, err := s.CreateAssignments(ctx, []model.Assignment{
		model.Snapshot(bob.ID, late, base.Add(time.Hour)),
		model.Snapshot(alice.ID, late, base.Add(2*time.Hour)),
	})
	require.NoError(t, err)
	require.Len(t, batch, 2)

	got, err := s.FindAssignmentByID(ctx, a1.ID)
	require.NoError(t, err)
	require.Equal(t, a1.PersonID, got.PersonID)
	require.Equal(t, "Good", got.ItemName)
	require.EqualValues(t, 10, got.ItemValue)
	require.Equal(t, model.KindReward, got.ItemType)
	require.True(t, base.Equal(got.AssignedAt))

	all, err := s.ListAssignments(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{a1.ID, batch[0].ID, batch[1].ID}, ids(all))

	byAlice, err := s.ListAssignmentsByPerson(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{a1.ID, batch[1].ID}, ids(byAlice))

	inRange, err := s.ListAssignmentsByDateRange(ctx, repository.Range{From: base.Add(time.Hour), To: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, []int64{batch[0].ID, batch[1].ID}, ids(inRange))

	recent, err := s.RecentAssignments(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{batch[1].ID, batch[0].ID}, ids(recent))

	n, err := s.CountAssignmentsByPerson(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = s.CountAssignmentsByAction(ctx, model.KindPunishment, late.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = s.CountAssignmentsByAction(ctx, model.KindReward, late.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, s.DeleteAssignment(ctx, a1.ID))
	require.ErrorIs(t, s.DeleteAssignment(ctx, a1.ID), repository.ErrNotFound)
	_, err = s.FindAssignmentByID(ctx, a1.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func testBatchRollback(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice, _, good, _ := seed(t, s)

	_, err := s.CreateAssignments(ctx, []model.Assignment{
		model.Snapshot(alice.ID, good, base),
		model.Snapshot(424242, good, base),
	})
	require.Error(t, err)

	all, err := s.ListAssignments(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func testSumByPerson(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice, bob, good, late := seed(t, s)

	_, err := s.CreateAssignments(ctx, []model.Assignment{
		model.Snapshot(alice.ID, good, base),
		model.Snapshot(alice.ID, late, base.Add(24*time.Hour)),
		model.Snapshot(bob.ID, late, base.Add(-time.Millisecond)),
	})
	require.NoError(t, err)

	all, err := s.SumByPerson(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, []repository.Tally{
		{PersonID: alice.ID, Total: 7, Count: 2},
		{PersonID: bob.ID, Total: -3, Count: 1},
	}, all)

	windowed, err := s.SumByPerson(ctx, &repository.Range{From: base, To: base.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, []repository.Tally{{PersonID: alice.ID, Total: 7, Count: 2}}, windowed)

	exact, err := s.SumByPerson(ctx, &repository.Range{From: base, To: base})
	require.NoError(t, err)
	require.Equal(t, []repository.Tally{{PersonID: alice.ID, Total: 10, Count: 1}}, exact)
}

func testInUse(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice, _, good, _ := seed(t, s)

	a, err := s.CreateAssignment(ctx, model.Snapshot(alice.ID, good, base))
	require.NoError(t, err)

	require.ErrorIs(t, s.DeletePerson(ctx, alice.ID), repository.ErrInUse)
	require.ErrorIs(t, s.DeleteAction(ctx, model.KindReward, good.ID), repository.ErrInUse)

	require.NoError(t, s.DeleteAssignment(ctx, a.ID))
	require.NoError(t, s.DeleteAction(ctx, model.KindReward, good.ID))
	require.NoError(t, s.DeletePerson(ctx, alice.ID))
}

func ids(as []model.Assignment) []int64 {
	out := make([]int64, len(as))
	for i, a := range as {
		out[i] = a.ID
	}
	return out
}
