package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Backend { return New() })
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertCategories(ctx, core.DefaultCategories()))

	desc := "original"
	created, err := s.CreateExpense(ctx, core.Expense{
		Amount: core.Money{Cents: 100}, CategoryID: 1, Date: core.NewDate(2024, 1, 1), Description: &desc,
	})
	require.NoError(t, err)

	desc = "mutated by caller"
	*created.Description = "mutated result"

	got, err := s.GetExpense(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", *got.Description)
}

func TestStoreClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return fixed })
	require.NoError(t, s.InsertCategories(ctx, core.DefaultCategories()))

	e, err := s.CreateExpense(ctx, core.Expense{Amount: core.Money{Cents: 1}, CategoryID: 1, Date: core.NewDate(2024, 6, 1)})
	require.NoError(t, err)
	assert.Equal(t, fixed, e.CreatedAt)
	assert.Equal(t, fixed, e.UpdatedAt)
}

func TestInsertCategoriesRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertCategories(ctx, core.DefaultCategories()))
	assert.Error(t, s.InsertCategories(ctx, []core.Category{{Name: "Food", Icon: "x", Color: "#000"}}))

	n, err := s.CountCategories(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}
