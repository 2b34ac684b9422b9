// Package storagetest holds the behaviour every Store backend must satisfy.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/storage"
)

// Backend is a Store that also keeps the audit trail.
type Backend interface {
	storage.Store
	storage.EventRecorder
}

// Run exercises newBackend against the shared contract. newBackend must
// return an empty, migrated store.
func Run(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Run("categories", func(t *testing.T) { testCategories(t, newBackend(t)) })
	t.Run("create", func(t *testing.T) { testCreate(t, newBackend(t)) })
	t.Run("list", func(t *testing.T) { testList(t, newBackend(t)) })
	t.Run("update", func(t *testing.T) { testUpdate(t, newBackend(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newBackend(t)) })
	t.Run("aggregates", func(t *testing.T) { testAggregates(t, newBackend(t)) })
	t.Run("events", func(t *testing.T) { testEvents(t, newBackend(t)) })
}

func seed(t *testing.T, s storage.Store) map[string]core.Category {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InsertCategories(ctx, core.DefaultCategories()))
	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	byName := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		byName[c.Name] = c
	}
	return byName
}

func add(t *testing.T, s storage.Store, cat core.Category, cents int64, date string) core.Expense {
	t.Helper()
	d, err := core.ParseDate(date)
	require.NoError(t, err)
	e, err := s.CreateExpense(context.Background(), core.Expense{
		Amount:     core.Money{Cents: cents},
		CategoryID: cat.ID,
		Date:       d,
	})
	require.NoError(t, err)
	return e
}

func testCategories(t *testing.T, s Backend) {
	ctx := context.Background()

	n, err := s.CountCategories(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	cats := seed(t, s)
	n, err = s.CountCategories(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Food", "Shopping", "Transport", "Utilities"}, names)

	got, err := s.GetCategory(ctx, cats["Food"].ID)
	require.NoError(t, err)
	assert.Equal(t, "🍴", got.Icon)
	assert.Equal(t, "#10b981", got.Color)

	_, err = s.GetCategory(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrCategoryNotFound)
}

func testCreate(t *testing.T, s Backend) {
	ctx := context.Background()
	cats := seed(t, s)

	desc := "Groceries"
	created, err := s.CreateExpense(ctx, core.Expense{
		Amount:      core.Money{Cents: 5050},
		CategoryID:  cats["Food"].ID,
		Date:        core.NewDate(2024, 3, 15),
		Description: &desc,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.EqualValues(t, 5050, created.Amount.Cents)
	assert.Equal(t, "2024-03-15", created.Date.String())
	require.NotNil(t, created.Description)
	assert.Equal(t, "Groceries", *created.Description)
	assert.Equal(t, cats["Food"].Ref(), created.Category)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = s.CreateExpense(ctx, core.Expense{
		Amount:     core.Money{Cents: 100},
		CategoryID: 9999,
		Date:       core.NewDate(2024, 3, 15),
	})
	assert.ErrorIs(t, err, storage.ErrCategoryNotFound)

	all, err := s.ListExpenses(ctx, core.ExpenseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testList(t *testing.T, s Backend) {
	ctx := context.Background()
	cats := seed(t, s)

	a := add(t, s, cats["Food"], 1000, "2024-01-10")
	b := add(t, s, cats["Transport"], 2000, "2024-01-20")
	c := add(t, s, cats["Food"], 3000, "2024-01-20")
	d := add(t, s, cats["Shopping"], 4000, "2024-02-01")

	all, err := s.ListExpenses(ctx, core.ExpenseFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{d.ID, c.ID, b.ID, a.ID}, ids(all))
	assert.Equal(t, "Shopping", all[0].Category.Name)

	rng := core.DateRange{Start: core.NewDate(2024, 1, 10), End: core.NewDate(2024, 1, 20)}
	inRange, err := s.ListExpenses(ctx, core.ExpenseFilter{Range: &rng})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, ids(inRange))

	food := cats["Food"].ID
	both, err := s.ListExpenses(ctx, core.ExpenseFilter{Range: &rng, CategoryID: &food})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, a.ID}, ids(both))

	got, err := s.GetExpense(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Transport", got.Category.Name)

	_, err = s.GetExpense(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrExpenseNotFound)
}

func testUpdate(t *testing.T, s Backend) {
	ctx := context.Background()
	cats := seed(t, s)
	orig := add(t, s, cats["Food"], 1000, "2024-05-05")

	note := "Lunch"
	updated, err := s.UpdateExpense(ctx, orig.ID, core.ExpensePatch{Description: &note})
	require.NoError(t, err)
	assert.Equal(t, orig.Amount, updated.Amount)
	assert.Equal(t, orig.CategoryID, updated.CategoryID)
	assert.Equal(t, orig.Date.String(), updated.Date.String())
	require.NotNil(t, updated.Description)
	assert.Equal(t, "Lunch", *updated.Description)

	transport := cats["Transport"].ID
	amount := core.Money{Cents: 2500}
	moved, err := s.UpdateExpense(ctx, orig.ID, core.ExpensePatch{Amount: &amount, CategoryID: &transport})
	require.NoError(t, err)
	assert.EqualValues(t, 2500, moved.Amount.Cents)
	assert.Equal(t, "Transport", moved.Category.Name)
	assert.Equal(t, "Lunch", *moved.Description)

	missing := int64(9999)
	_, err = s.UpdateExpense(ctx, orig.ID, core.ExpensePatch{CategoryID: &missing, Amount: &core.Money{Cents: 1}})
	assert.ErrorIs(t, err, storage.ErrCategoryNotFound)

	after, err := s.GetExpense(ctx, orig.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2500, after.Amount.Cents)
	assert.Equal(t, transport, after.CategoryID)

	_, err = s.UpdateExpense(ctx, 9999, core.ExpensePatch{Description: &note})
	assert.ErrorIs(t, err, storage.ErrExpenseNotFound)
}

func testDelete(t *testing.T, s Backend) {
	ctx := context.Background()
	cats := seed(t, s)
	e := add(t, s, cats["Utilities"], 9900, "2024-07-01")

	require.NoError(t, s.DeleteExpense(ctx, e.ID))
	_, err := s.GetExpense(ctx, e.ID)
	assert.ErrorIs(t, err, storage.ErrExpenseNotFound)
	assert.ErrorIs(t, s.DeleteExpense(ctx, e.ID), storage.ErrExpenseNotFound)
}

func testAggregates(t *testing.T, s Backend) {
	ctx := context.Background()
	cats := seed(t, s)

	add(t, s, cats["Food"], 2000, "2024-02-01")
	add(t, s, cats["Food"], 3050, "2024-02-29")
	add(t, s, cats["Transport"], 5050, "2024-03-01")
	add(t, s, cats["Shopping"], 700, "2023-12-31")

	feb, err := s.SumExpenses(ctx, core.MonthBounds(2024, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 5050, feb.Cents)

	empty, err := s.SumExpenses(ctx, core.MonthBounds(2024, 6))
	require.NoError(t, err)
	assert.Zero(t, empty.Cents)

	monthly, err := s.MonthlyTotals(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, map[int]core.Money{2: {Cents: 5050}, 3: {Cents: 5050}}, monthly)

	totals, err := s.CategoryTotals(ctx, nil)
	require.NoError(t, err)
	require.Len(t, totals, 3)
	// Food and Transport tie; the lower category id comes first.
	first, second := cats["Food"], cats["Transport"]
	if second.ID < first.ID {
		first, second = second, first
	}
	assert.Equal(t, first.ID, totals[0].CategoryID)
	assert.Equal(t, second.ID, totals[1].CategoryID)
	assert.Equal(t, "Shopping", totals[2].CategoryName)
	assert.EqualValues(t, 700, totals[2].Total.Cents)

	rng := core.MonthBounds(2024, 2)
	febTotals, err := s.CategoryTotals(ctx, &rng)
	require.NoError(t, err)
	require.Len(t, febTotals, 1)
	assert.Equal(t, core.CategoryTotal{
		CategoryID:   cats["Food"].ID,
		CategoryName: "Food",
		Icon:         "🍴",
		Color:        "#10b981",
		Total:        core.Money{Cents: 5050},
	}, febTotals[0])
}

func testEvents(t *testing.T, s Backend) {
	ctx := context.Background()
	occurred := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordEvent(ctx, storage.AuditEvent{
		EventType: "expense.created", ExpenseID: 7, CategoryID: 1, AmountCents: 1200,
		Date: core.NewDate(2024, 4, 1), OccurredAt: occurred,
	}))
	require.NoError(t, s.RecordEvent(ctx, storage.AuditEvent{
		EventType: "expense.deleted", ExpenseID: 7, CategoryID: 1, AmountCents: 1200,
		Date: core.NewDate(2024, 4, 1), OccurredAt: occurred.Add(time.Hour),
	}))
	require.NoError(t, s.RecordEvent(ctx, storage.AuditEvent{
		EventType: "expense.created", ExpenseID: 8, CategoryID: 2, AmountCents: 10,
		Date: core.NewDate(2024, 4, 2), OccurredAt: occurred,
	}))

	events, err := s.ListEvents(ctx, 7)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "expense.created", events[0].EventType)
	assert.Equal(t, "expense.deleted", events[1].EventType)
	assert.Equal(t, "2024-04-01", events[0].Date.String())
	assert.True(t, events[0].OccurredAt.Equal(occurred))
	assert.False(t, events[0].RecordedAt.IsZero())
}

func ids(es []core.Expense) []int64 {
	out := make([]int64, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}
