// Package postgres implements the Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"budget/internal/core"
	"budget/internal/storage"
)

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ storage.Store         = (*Store)(nil)
	_ storage.EventRecorder = (*Store)(nil)
)

// Open migrates the schema and connects a pool to databaseURL.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, icon, color, created_at, updated_at FROM categories ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, icon, color, created_at, updated_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, storage.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (s *Store) CountCategories(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

func (s *Store) InsertCategories(ctx context.Context, cats []core.Category) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, c := range cats {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("category %q: %w", c.Name, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO categories (name, icon, color) VALUES ($1, $2, $3)`,
				c.Name, c.Icon, c.Color); err != nil {
				return fmt.Errorf("insert category %q: %w", c.Name, err)
			}
		}
		return nil
	})
}

const expenseSelect = `SELECT e.id, e.amount_cents, e.category_id, e.date, e.description,
       e.created_at, e.updated_at, c.id, c.name, c.icon, c.color
FROM expenses e
JOIN categories c ON c.id = e.category_id`

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e    core.Expense
		date time.Time
	)
	err := row.Scan(&e.ID, &e.Amount.Cents, &e.CategoryID, &date, &e.Description,
		&e.CreatedAt, &e.UpdatedAt,
		&e.Category.ID, &e.Category.Name, &e.Category.Icon, &e.Category.Color)
	if err != nil {
		return core.Expense{}, err
	}
	e.Date = core.DateOf(date)
	return e, nil
}

func (s *Store) ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	var (
		where []string
		args  []any
	)
	if f.Range != nil {
		args = append(args, f.Range.Start.Time, f.Range.End.Time)
		where = append(where, "e.date BETWEEN $1 AND $2")
	}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		where = append(where, "e.category_id = $"+strconv.Itoa(len(args)))
	}

	q := expenseSelect
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY e.date DESC, e.created_at DESC, e.id DESC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getExpense(ctx context.Context, q querier, id int64) (core.Expense, error) {
	e, err := scanExpense(q.QueryRow(ctx, expenseSelect+"\nWHERE e.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, storage.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func categoryExists(ctx context.Context, q querier, id int64) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check category %d: %w", id, err)
	}
	if !exists {
		return storage.ErrCategoryNotFound
	}
	return nil
}

func (s *Store) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return getExpense(ctx, s.pool, id)
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var created core.Expense
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := categoryExists(ctx, tx, e.CategoryID); err != nil {
			return err
		}
		var id int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO expenses (amount_cents, category_id, date, description)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			e.Amount.Cents, e.CategoryID, e.Date.Time, e.Description).Scan(&id); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		var err error
		created, err = getExpense(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}
	return created, nil
}

func (s *Store) UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error) {
	var updated core.Expense
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		existing, err := getExpenseForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		merged := p.Apply(existing)
		if p.ChangesCategory() {
			if err := categoryExists(ctx, tx, merged.CategoryID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx,
			`UPDATE expenses
			 SET amount_cents = $1, category_id = $2, date = $3, description = $4, updated_at = now()
			 WHERE id = $5`,
			merged.Amount.Cents, merged.CategoryID, merged.Date.Time, merged.Description, id); err != nil {
			return fmt.Errorf("update expense %d: %w", id, err)
		}
		updated, err = getExpense(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}
	return updated, nil
}

func getExpenseForUpdate(ctx context.Context, tx pgx.Tx, id int64) (core.Expense, error) {
	var locked int64
	err := tx.QueryRow(ctx, `SELECT id FROM expenses WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, storage.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("lock expense %d: %w", id, err)
	}
	return getExpense(ctx, tx, id)
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrExpenseNotFound
	}
	return nil
}

func (s *Store) SumExpenses(ctx context.Context, r core.DateRange) (core.Money, error) {
	var cents int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0)::BIGINT FROM expenses WHERE date BETWEEN $1 AND $2`,
		r.Start.Time, r.End.Time).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (s *Store) MonthlyTotals(ctx context.Context, year int) (map[int]core.Money, error) {
	yr := core.YearBounds(year)
	rows, err := s.pool.Query(ctx,
		`SELECT EXTRACT(MONTH FROM date)::INT AS month, SUM(amount_cents)::BIGINT
		 FROM expenses
		 WHERE date BETWEEN $1 AND $2
		 GROUP BY month`,
		yr.Start.Time, yr.End.Time)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	out := make(map[int]core.Money, 12)
	for rows.Next() {
		var (
			month int32
			cents int64
		)
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		out[int(month)] = core.Money{Cents: cents}
	}
	return out, rows.Err()
}

func (s *Store) CategoryTotals(ctx context.Context, r *core.DateRange) ([]core.CategoryTotal, error) {
	q := `SELECT c.id, c.name, c.icon, c.color, SUM(e.amount_cents)::BIGINT AS total
FROM expenses e
JOIN categories c ON c.id = e.category_id`
	var args []any
	if r != nil {
		q += "\nWHERE e.date BETWEEN $1 AND $2"
		args = append(args, r.Start.Time, r.End.Time)
	}
	q += "\nGROUP BY c.id, c.name, c.icon, c.color\nORDER BY total DESC, c.id ASC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.CategoryName, &ct.Icon, &ct.Color, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (s *Store) RecordEvent(ctx context.Context, ev storage.AuditEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO expense_events (event_type, expense_id, category_id, amount_cents, date, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.EventType, ev.ExpenseID, ev.CategoryID, ev.AmountCents, ev.Date.Time, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, expenseID int64) ([]storage.AuditEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_type, expense_id, category_id, amount_cents, date, occurred_at, recorded_at
		 FROM expense_events WHERE expense_id = $1 ORDER BY id ASC`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []storage.AuditEvent
	for rows.Next() {
		var (
			ev   storage.AuditEvent
			date time.Time
		)
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.ExpenseID, &ev.CategoryID, &ev.AmountCents,
			&date, &ev.OccurredAt, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Date = core.DateOf(date)
		out = append(out, ev)
	}
	return out, rows.Err()
}
