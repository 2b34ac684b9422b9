package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/storage"
	"budget/internal/storage/storagetest"
)

func newSQLite(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Backend { return newSQLite(t) })
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "budget.db")
	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, storage.RunMigrations(path))

	version, dirty, err := storage.MigrationVersion(path)
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)
	assert.False(t, dirty)
}

func TestSQLiteForeignKeysEnforced(t *testing.T) {
	repo := newSQLite(t)
	ctx := context.Background()

	_, err := repo.CreateExpense(ctx, core.Expense{
		Amount: core.Money{Cents: 100}, CategoryID: 42, Date: core.NewDate(2024, 1, 1),
	})
	assert.ErrorIs(t, err, storage.ErrCategoryNotFound)
}

func TestSQLiteNullDescriptionRoundTrip(t *testing.T) {
	repo := newSQLite(t)
	ctx := context.Background()
	require.NoError(t, repo.InsertCategories(ctx, core.DefaultCategories()))

	e, err := repo.CreateExpense(ctx, core.Expense{
		Amount: core.Money{Cents: 100}, CategoryID: 1, Date: core.NewDate(2024, 1, 1),
	})
	require.NoError(t, err)
	assert.Nil(t, e.Description)

	empty := ""
	e, err = repo.UpdateExpense(ctx, e.ID, core.ExpensePatch{Description: &empty})
	require.NoError(t, err)
	require.NotNil(t, e.Description)
	assert.Equal(t, "", *e.Description)
}
