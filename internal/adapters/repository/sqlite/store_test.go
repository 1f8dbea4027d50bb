package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/repository/storetest"
	"github.com/okian/tally/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store { return openTempStore(t) })
}

func TestReopenKeepsDataAndSkipsAppliedMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tally.db")

	first, err := Open(ctx, path)
	require.NoError(t, err)
	created, err := first.CreatePerson(ctx, model.Person{Name: "Alice"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	got, err := second.FindPersonByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)
}

func TestAssignedAtKeepsMillisecondPrecision(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	p, err := store.CreatePerson(ctx, model.Person{Name: "Alice"})
	require.NoError(t, err)
	a, err := store.CreateAction(ctx, model.Action{Kind: model.KindReward, Name: "Good", Value: 10})
	require.NoError(t, err)

	end := time.Date(2026, time.October, 18, 23, 59, 59, 999_000_000, time.UTC)
	row, err := store.CreateAssignment(ctx, model.Snapshot(p.ID, a, end))
	require.NoError(t, err)

	got, err := store.FindAssignmentByID(ctx, row.ID)
	require.NoError(t, err)
	require.True(t, end.Equal(got.AssignedAt))

	sums, err := store.SumByPerson(ctx, &repository.Range{From: end.Add(-time.Hour), To: end})
	require.NoError(t, err)
	require.Len(t, sums, 1)

	sums, err = store.SumByPerson(ctx, &repository.Range{From: end.Add(500 * time.Microsecond), To: end.Add(time.Hour)})
	require.NoError(t, err)
	require.Empty(t, sums)
}

func TestUpsection(t *testing.T) {
	t.Parallel()

	require.Equal(t, "\nCREATE TABLE x (id INTEGER);\n",
		upSection("-- +migrate Up\nCREATE TABLE x (id INTEGER);\n-- +migrate Down\nDROP TABLE x;\n"))
	require.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}
