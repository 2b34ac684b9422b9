package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budget/internal/core"

	_ "modernc.org/sqlite"
)

const (
	sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	timestampFmt  = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteRepository is the embedded Store backend.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqlitePragmas
	}
	return path + "?" + sqlitePragmas
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, icon, color, created_at, updated_at FROM categories ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c                core.Category
			created, updated sqlTime
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt, c.UpdatedAt = created.Time, updated.Time
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var (
		c                core.Category
		created, updated sqlTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, icon, color, created_at, updated_at FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	c.CreatedAt, c.UpdatedAt = created.Time, updated.Time
	return c, nil
}

func (r *SQLiteRepository) CountCategories(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) InsertCategories(ctx context.Context, cats []core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := r.now().Format(timestampFmt)
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %q: %w", c.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, icon, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			c.Name, c.Icon, c.Color, now, now); err != nil {
			return fmt.Errorf("insert category %q: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit categories: %w", err)
	}
	slog.InfoContext(ctx, "Categories inserted", "count", len(cats))
	return nil
}

const expenseSelect = `SELECT e.id, e.amount_cents, e.category_id, e.date, e.description,
       e.created_at, e.updated_at, c.id, c.name, c.icon, c.color
FROM expenses e
JOIN categories c ON c.id = e.category_id`

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	var (
		where []string
		args  []any
	)
	if f.Range != nil {
		where = append(where, "e.date BETWEEN ? AND ?")
		args = append(args, f.Range.Start.String(), f.Range.End.String())
	}
	if f.CategoryID != nil {
		where = append(where, "e.category_id = ?")
		args = append(args, *f.CategoryID)
	}

	q := expenseSelect
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY e.date DESC, e.created_at DESC, e.id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return getExpense(ctx, r.db, id)
}

func getExpense(ctx context.Context, q queryRower, id int64) (core.Expense, error) {
	e, err := scanExpense(q.QueryRowContext(ctx, expenseSelect+"\nWHERE e.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrExpenseNotFound
	}
	return e, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                core.Expense
		date             sqlDate
		desc             sql.NullString
		created, updated sqlTime
	)
	err := row.Scan(&e.ID, &e.Amount.Cents, &e.CategoryID, &date, &desc, &created, &updated,
		&e.Category.ID, &e.Category.Name, &e.Category.Icon, &e.Category.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, err
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.Date = date.Date
	if desc.Valid {
		s := desc.String
		e.Description = &s
	}
	e.CreatedAt, e.UpdatedAt = created.Time, updated.Time
	return e, nil
}

func categoryExists(ctx context.Context, q queryRower, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCategoryNotFound
	}
	if err != nil {
		return fmt.Errorf("check category %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := categoryExists(ctx, tx, e.CategoryID); err != nil {
		return core.Expense{}, err
	}

	now := r.now().Format(timestampFmt)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (amount_cents, category_id, date, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Amount.Cents, e.CategoryID, e.Date.String(), nullString(e.Description), now, now)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("last insert id: %w", err)
	}

	created, err := getExpense(ctx, tx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("reload expense %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", created.ID,
		"amount_cents", created.Amount.Cents,
		"category_id", created.CategoryID,
		"date", created.Date.String())
	return created, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := getExpense(ctx, tx, id)
	if err != nil {
		return core.Expense{}, err
	}
	merged := p.Apply(existing)
	if p.ChangesCategory() {
		if err := categoryExists(ctx, tx, merged.CategoryID); err != nil {
			return core.Expense{}, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE expenses SET amount_cents = ?, category_id = ?, date = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		merged.Amount.Cents, merged.CategoryID, merged.Date.String(), nullString(merged.Description),
		r.now().Format(timestampFmt), id); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}

	updated, err := getExpense(ctx, tx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("reload expense %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}
	return updated, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

func (r *SQLiteRepository) SumExpenses(ctx context.Context, rng core.DateRange) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE date BETWEEN ? AND ?`,
		rng.Start.String(), rng.End.String()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, year int) (map[int]core.Money, error) {
	yr := core.YearBounds(year)
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(substr(date, 6, 2) AS INTEGER) AS month, SUM(amount_cents)
		 FROM expenses
		 WHERE date BETWEEN ? AND ?
		 GROUP BY month`,
		yr.Start.String(), yr.End.String())
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	out := make(map[int]core.Money, 12)
	for rows.Next() {
		var month int
		var cents int64
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		out[month] = core.Money{Cents: cents}
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CategoryTotals(ctx context.Context, rng *core.DateRange) ([]core.CategoryTotal, error) {
	q := `SELECT c.id, c.name, c.icon, c.color, SUM(e.amount_cents) AS total
FROM expenses e
JOIN categories c ON c.id = e.category_id`
	var args []any
	if rng != nil {
		q += "\nWHERE e.date BETWEEN ? AND ?"
		args = append(args, rng.Start.String(), rng.End.String())
	}
	q += "\nGROUP BY c.id, c.name, c.icon, c.color\nORDER BY total DESC, c.id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
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

func (r *SQLiteRepository) RecordEvent(ctx context.Context, ev AuditEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expense_events (event_type, expense_id, category_id, amount_cents, date, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.EventType, ev.ExpenseID, ev.CategoryID, ev.AmountCents, ev.Date.String(),
		ev.OccurredAt.UTC().Format(timestampFmt), r.now().Format(timestampFmt))
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListEvents(ctx context.Context, expenseID int64) ([]AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, expense_id, category_id, amount_cents, date, occurred_at, recorded_at
		 FROM expense_events WHERE expense_id = ? ORDER BY id ASC`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var (
			ev                 AuditEvent
			date               sqlDate
			occurred, recorded sqlTime
		)
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.ExpenseID, &ev.CategoryID, &ev.AmountCents,
			&date, &occurred, &recorded); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Date, ev.OccurredAt, ev.RecordedAt = date.Date, occurred.Time, recorded.Time
		out = append(out, ev)
	}
	return out, rows.Err()
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
