package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
	"budget/internal/storage/memory"
)

var errDiskFull = errors.New("disk full")

func ptr[T any](v T) *T { return &v }

func money(cents int64) *core.Money { return &core.Money{Cents: cents} }

func date(t *testing.T, s string) *core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	require.NoError(t, err)
	return &d
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	n, err := NewCategoryService(s, nil).EnsureDefaults(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	return s
}

// brokenStore fails every call with errDiskFull.
type brokenStore struct{ *memory.Store }

func (brokenStore) ListCategories(context.Context) ([]core.Category, error) { return nil, errDiskFull }
func (brokenStore) CountCategories(context.Context) (int64, error)         { return 0, errDiskFull }
func (brokenStore) ListExpenses(context.Context, core.ExpenseFilter) ([]core.Expense, error) {
	return nil, errDiskFull
}
func (brokenStore) CreateExpense(context.Context, core.Expense) (core.Expense, error) {
	return core.Expense{}, errDiskFull
}
func (brokenStore) SumExpenses(context.Context, core.DateRange) (core.Money, error) {
	return core.Money{}, errDiskFull
}
func (brokenStore) MonthlyTotals(context.Context, int) (map[int]core.Money, error) {
	return nil, errDiskFull
}
func (brokenStore) CategoryTotals(context.Context, *core.DateRange) ([]core.CategoryTotal, error) {
	return nil, errDiskFull
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.ExpenseEvent
	err    error
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, ev *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

func TestCategoryService(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	svc := NewCategoryService(store, nil)

	cats, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 4)
	assert.Equal(t, "Food", cats[0].Name)
	assert.Equal(t, "Utilities", cats[3].Name)

	n, err := svc.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding twice must not insert again")

	empty, err := NewCategoryService(memory.New(), nil).ListAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = NewCategoryService(brokenStore{memory.New()}, nil).ListAll(ctx)
	var ie *core.InternalError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, errDiskFull)
}

func TestExpenseService_Create(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	pub := &recordingPublisher{}
	inv := &countingInvalidator{}
	svc := NewExpenseService(store, WithPublisher(pub), WithInvalidator(inv))

	created, err := svc.Create(ctx, core.NewExpense{
		Amount:      money(2000),
		CategoryID:  ptr(int64(1)),
		Date:        date(t, "2024-03-15"),
		Description: ptr("  Groceries "),
	})
	require.NoError(t, err)
	assert.Equal(t, core.CategoryRef{ID: 1, Name: "Food", Icon: "🍴", Color: "#10b981"}, created.Category)
	assert.Equal(t, "Groceries", *created.Description)
	assert.Equal(t, 1, inv.n)
	require.Len(t, pub.events, 1)
	assert.Equal(t, amqp.EventExpenseCreated, pub.events[0].Type)
	assert.Equal(t, created.ID, pub.events[0].ExpenseID)

	tests := []struct {
		name    string
		in      core.NewExpense
		check   func(error) bool
		message string
	}{
		{
			name:    "missing amount",
			in:      core.NewExpense{CategoryID: ptr(int64(1)), Date: date(t, "2024-03-15")},
			check:   core.IsValidation,
			message: "Amount, category, and date are required",
		},
		{
			name:    "negative amount",
			in:      core.NewExpense{Amount: money(-100), CategoryID: ptr(int64(1)), Date: date(t, "2024-03-15")},
			check:   core.IsValidation,
			message: "Amount must be greater than 0",
		},
		{
			name:    "negative amount with unknown category still validation",
			in:      core.NewExpense{Amount: money(-1), CategoryID: ptr(int64(999)), Date: date(t, "2024-03-15")},
			check:   core.IsValidation,
			message: "Amount must be greater than 0",
		},
		{
			name:    "unknown category",
			in:      core.NewExpense{Amount: money(100), CategoryID: ptr(int64(999)), Date: date(t, "2024-03-15")},
			check:   core.IsNotFound,
			message: "Category not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error type %T", err)
			assert.Equal(t, tt.message, err.Error())
		})
	}

	all, err := svc.List(ctx, core.ExpenseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "failed creates must not write")
	assert.Equal(t, 1, inv.n, "failed creates must not invalidate")
	assert.Len(t, pub.events, 1)
}

func TestExpenseService_CreatePublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	svc := NewExpenseService(seededStore(t), WithPublisher(&recordingPublisher{err: errors.New("broker down")}))

	_, err := svc.Create(ctx, core.NewExpense{Amount: money(100), CategoryID: ptr(int64(2)), Date: date(t, "2024-01-01")})
	assert.NoError(t, err)
}

func TestExpenseService_CreateStoreFailure(t *testing.T) {
	svc := NewExpenseService(brokenStore{memory.New()})
	_, err := svc.Create(context.Background(), core.NewExpense{Amount: money(100), CategoryID: ptr(int64(1)), Date: date(t, "2024-01-01")})

	var ie *core.InternalError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "create expense", ie.Op)
}

func TestExpenseService_Update(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	pub := &recordingPublisher{}
	svc := NewExpenseService(store, WithPublisher(pub))

	orig, err := svc.Create(ctx, core.NewExpense{
		Amount: money(1000), CategoryID: ptr(int64(1)), Date: date(t, "2024-05-05"), Description: ptr("Lunch"),
	})
	require.NoError(t, err)

	t.Run("description only", func(t *testing.T) {
		got, err := svc.Update(ctx, orig.ID, core.ExpensePatch{Description: ptr("Dinner")})
		require.NoError(t, err)
		assert.Equal(t, orig.Amount, got.Amount)
		assert.Equal(t, orig.CategoryID, got.CategoryID)
		assert.Equal(t, orig.Date.String(), got.Date.String())
		assert.Equal(t, "Dinner", *got.Description)
	})

	t.Run("zero category and empty date keep stored values", func(t *testing.T) {
		got, err := svc.Update(ctx, orig.ID, core.ExpensePatch{CategoryID: ptr(int64(0)), Date: &core.Date{}})
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.CategoryID)
		assert.Equal(t, "2024-05-05", got.Date.String())
	})

	t.Run("move category", func(t *testing.T) {
		got, err := svc.Update(ctx, orig.ID, core.ExpensePatch{CategoryID: ptr(int64(2)), Amount: money(1250)})
		require.NoError(t, err)
		assert.Equal(t, "Transport", got.Category.Name)
		assert.EqualValues(t, 1250, got.Amount.Cents)
	})

	t.Run("non-positive amount rejected before lookup", func(t *testing.T) {
		_, err := svc.Update(ctx, 9999, core.ExpensePatch{Amount: money(0)})
		assert.True(t, core.IsValidation(err))
		assert.Equal(t, "Amount must be greater than 0", err.Error())
	})

	t.Run("unknown expense", func(t *testing.T) {
		_, err := svc.Update(ctx, 9999, core.ExpensePatch{Description: ptr("x")})
		assert.True(t, core.IsNotFound(err))
		assert.Equal(t, "Expense not found", err.Error())
	})

	t.Run("unknown category leaves record untouched", func(t *testing.T) {
		_, err := svc.Update(ctx, orig.ID, core.ExpensePatch{CategoryID: ptr(int64(999)), Amount: money(1)})
		assert.True(t, core.IsNotFound(err))
		assert.Equal(t, "Category not found", err.Error())

		stored, err := store.GetExpense(ctx, orig.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1250, stored.Amount.Cents)
		assert.EqualValues(t, 2, stored.CategoryID)
	})

	types := make([]amqp.EventType, 0, len(pub.events))
	for _, ev := range pub.events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []amqp.EventType{
		amqp.EventExpenseCreated, amqp.EventExpenseUpdated, amqp.EventExpenseUpdated, amqp.EventExpenseUpdated,
	}, types)
}

func TestExpenseService_Delete(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewExpenseService(seededStore(t), WithPublisher(pub))

	e, err := svc.Create(ctx, core.NewExpense{Amount: money(500), CategoryID: ptr(int64(3)), Date: date(t, "2024-02-02")})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, e.ID))
	require.Len(t, pub.events, 2)
	assert.Equal(t, amqp.EventExpenseDeleted, pub.events[1].Type)
	assert.EqualValues(t, 500, pub.events[1].AmountCents)

	err = svc.Delete(ctx, e.ID)
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, "Expense not found", err.Error())

	assert.True(t, core.IsNotFound(svc.Delete(ctx, 0)))
}

func TestExpenseService_ListFilters(t *testing.T) {
	ctx := context.Background()
	svc := NewExpenseService(seededStore(t))

	for _, in := range []core.NewExpense{
		{Amount: money(100), CategoryID: ptr(int64(1)), Date: date(t, "2024-01-01")},
		{Amount: money(200), CategoryID: ptr(int64(2)), Date: date(t, "2024-01-15")},
		{Amount: money(300), CategoryID: ptr(int64(1)), Date: date(t, "2024-01-31")},
		{Amount: money(400), CategoryID: ptr(int64(1)), Date: date(t, "2024-02-01")},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	jan := core.MonthBounds(2024, 1)
	got, err := svc.List(ctx, core.ExpenseFilter{Range: &jan, CategoryID: ptr(int64(1))})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-31", got[0].Date.String())
	assert.Equal(t, "2024-01-01", got[1].Date.String())

	none, err := svc.List(ctx, core.ExpenseFilter{CategoryID: ptr(int64(4))})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = NewExpenseService(brokenStore{memory.New()}).List(ctx, core.ExpenseFilter{})
	var ie *core.InternalError
	assert.ErrorAs(t, err, &ie)
}

func TestAnalyticsService(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	expenses := NewExpenseService(store)
	clock := func() time.Time { return time.Date(2024, 2, 20, 15, 0, 0, 0, time.UTC) }
	svc := NewAnalyticsService(store, WithClock(clock))

	for _, in := range []core.NewExpense{
		{Amount: money(2000), CategoryID: ptr(int64(1)), Date: date(t, "2024-02-01")},
		{Amount: money(3050), CategoryID: ptr(int64(1)), Date: date(t, "2024-02-29")},
		{Amount: money(5050), CategoryID: ptr(int64(2)), Date: date(t, "2024-03-01")},
		{Amount: money(700), CategoryID: ptr(int64(3)), Date: date(t, "2023-12-31")},
	} {
		_, err := expenses.Create(ctx, in)
		require.NoError(t, err)
	}

	t.Run("current month", func(t *testing.T) {
		got, err := svc.CurrentMonthTotal(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.MonthSummary{Total: core.Money{Cents: 5050}, Month: "February", Year: 2024}, got)
	})

	t.Run("monthly totals zero-filled", func(t *testing.T) {
		got, year, err := svc.MonthlyTotals(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 2024, year)
		require.Len(t, got, 12)
		assert.Equal(t, core.MonthTotal{Month: "Feb", MonthNumber: 2, Total: core.Money{Cents: 5050}}, got[1])
		assert.Equal(t, core.MonthTotal{Month: "Mar", MonthNumber: 3, Total: core.Money{Cents: 5050}}, got[2])
		assert.Zero(t, got[0].Total.Cents)
		assert.Equal(t, "Dec", got[11].Month)

		prev, year, err := svc.MonthlyTotals(ctx, ptr(2023))
		require.NoError(t, err)
		assert.Equal(t, 2023, year)
		assert.EqualValues(t, 700, prev[11].Total.Cents)

		_, _, err = svc.MonthlyTotals(ctx, ptr(0))
		assert.True(t, core.IsValidation(err))
	})

	t.Run("by category", func(t *testing.T) {
		got, err := svc.ByCategory(ctx, nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].CategoryID, got[1].CategoryID, got[2].CategoryID})
		assert.EqualValues(t, 5050, got[0].Total.Cents)
		assert.Equal(t, "Food", got[0].CategoryName)

		feb := core.MonthBounds(2024, 2)
		inFeb, err := svc.ByCategory(ctx, &feb)
		require.NoError(t, err)
		require.Len(t, inFeb, 1)
		assert.EqualValues(t, 5050, inFeb[0].Total.Cents)

		empty := core.MonthBounds(2030, 1)
		none, err := svc.ByCategory(ctx, &empty)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("store failure", func(t *testing.T) {
		broken := NewAnalyticsService(brokenStore{memory.New()}, WithClock(clock))
		_, err := broken.CurrentMonthTotal(ctx)
		var ie *core.InternalError
		assert.ErrorAs(t, err, &ie)
		_, _, err = broken.MonthlyTotals(ctx, nil)
		assert.ErrorAs(t, err, &ie)
		_, err = broken.ByCategory(ctx, nil)
		assert.ErrorAs(t, err, &ie)
	})
}

func TestAnalyticsCacheInvalidatedByMutations(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	clock := func() time.Time { return time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC) }
	analytics := NewAnalyticsService(store, WithClock(clock), WithCacheTTL(time.Hour))
	expenses := NewExpenseService(store, WithInvalidator(analytics))

	first, err := expenses.Create(ctx, core.NewExpense{Amount: money(1000), CategoryID: ptr(int64(1)), Date: date(t, "2024-06-01")})
	require.NoError(t, err)

	got, err := analytics.CurrentMonthTotal(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, got.Total.Cents)
	assert.Equal(t, 1, analytics.Cache().Size())

	// Writing behind the service's back is not seen until the cache is invalidated.
	_, err = store.CreateExpense(ctx, core.Expense{Amount: core.Money{Cents: 1}, CategoryID: 1, Date: core.NewDate(2024, 6, 2)})
	require.NoError(t, err)
	got, err = analytics.CurrentMonthTotal(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, got.Total.Cents)

	_, err = expenses.Update(ctx, first.ID, core.ExpensePatch{Amount: money(2000)})
	require.NoError(t, err)
	got, err = analytics.CurrentMonthTotal(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2001, got.Total.Cents)

	require.NoError(t, expenses.Delete(ctx, first.ID))
	got, err = analytics.CurrentMonthTotal(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Total.Cents)
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate("op", nil))
	assert.Equal(t, "Expense not found", translate("op", storage.ErrExpenseNotFound).Error())
	assert.Equal(t, "Category not found", translate("op", storage.ErrCategoryNotFound).Error())

	ve := &core.ValidationError{Message: "bad"}
	assert.Same(t, ve, translate("op", ve))

	err := translate("list expenses", errDiskFull)
	assert.Equal(t, "list expenses: disk full", err.Error())
}
