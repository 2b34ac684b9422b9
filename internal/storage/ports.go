package storage

import (
	"context"
	"errors"
	"time"

	"budget/internal/core"
)

var (
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// Ports implemented by every backend.
type (
	CategoryStore interface {
		// ListCategories returns every category ordered by name ascending.
		ListCategories(ctx context.Context) ([]core.Category, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		CountCategories(ctx context.Context) (int64, error)
		// InsertCategories inserts all categories in one transaction.
		InsertCategories(ctx context.Context, cats []core.Category) error
	}

	ExpenseStore interface {
		// ListExpenses returns matching expenses enriched with their category,
		// ordered by date then creation time, newest first.
		ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error)
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		// CreateExpense checks the category and inserts atomically. Returns
		// ErrCategoryNotFound without writing when the category is missing.
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		// UpdateExpense loads, merges and rewrites the expense atomically.
		UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error)
		DeleteExpense(ctx context.Context, id int64) error
	}

	// AnalyticsReader aggregates amounts directly in the backend.
	AnalyticsReader interface {
		SumExpenses(ctx context.Context, r core.DateRange) (core.Money, error)
		// MonthlyTotals returns per-month sums for year, keyed by month 1..12.
		// Months without expenses are absent.
		MonthlyTotals(ctx context.Context, year int) (map[int]core.Money, error)
		// CategoryTotals groups by category; r == nil means all time.
		CategoryTotals(ctx context.Context, r *core.DateRange) ([]core.CategoryTotal, error)
	}

	Store interface {
		CategoryStore
		ExpenseStore
		AnalyticsReader
		Ping(ctx context.Context) error
		Close() error
	}

	// EventRecorder persists the expense audit trail written by the worker.
	EventRecorder interface {
		RecordEvent(ctx context.Context, ev AuditEvent) error
		ListEvents(ctx context.Context, expenseID int64) ([]AuditEvent, error)
	}
)

// AuditEvent is one row of the expense audit trail.
type AuditEvent struct {
	ID          int64
	EventType   string
	ExpenseID   int64
	CategoryID  int64
	AmountCents int64
	Date        core.Date
	OccurredAt  time.Time
	RecordedAt  time.Time
}
