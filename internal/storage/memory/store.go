// Package memory provides a process-local Store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/storage"
)

type Store struct {
	mu         sync.RWMutex
	categories map[int64]core.Category
	expenses   map[int64]core.Expense
	events     []storage.AuditEvent
	nextCat    int64
	nextExp    int64
	nextEvent  int64
	now        func() time.Time
}

var (
	_ storage.Store         = (*Store)(nil)
	_ storage.EventRecorder = (*Store)(nil)
)

func New() *Store {
	return &Store{
		categories: make(map[int64]core.Category),
		expenses:   make(map[int64]core.Expense),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ListCategories(context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, storage.ErrCategoryNotFound
	}
	return c, nil
}

func (s *Store) CountCategories(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.categories)), nil
}

func (s *Store) InsertCategories(_ context.Context, cats []core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.categories)+len(cats))
	for _, c := range s.categories {
		seen[c.Name] = true
	}
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %q: %w", c.Name, err)
		}
		if seen[c.Name] {
			return fmt.Errorf("category %q already exists", c.Name)
		}
		seen[c.Name] = true
	}

	now := s.now()
	for _, c := range cats {
		s.nextCat++
		c.ID = s.nextCat
		c.CreatedAt, c.UpdatedAt = now, now
		s.categories[c.ID] = c
	}
	return nil
}

func (s *Store) ListExpenses(_ context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if f.Matches(e) {
			out = append(out, s.enrich(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, storage.ErrExpenseNotFound
	}
	return s.enrich(e), nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[e.CategoryID]; !ok {
		return core.Expense{}, storage.ErrCategoryNotFound
	}

	now := s.now()
	s.nextExp++
	e.ID = s.nextExp
	e.CreatedAt, e.UpdatedAt = now, now
	e.Description = cloneString(e.Description)
	e.Category = core.CategoryRef{}
	s.expenses[e.ID] = e
	return s.enrich(e), nil
}

func (s *Store) UpdateExpense(_ context.Context, id int64, p core.ExpensePatch) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, storage.ErrExpenseNotFound
	}
	merged := p.Apply(existing)
	if p.ChangesCategory() {
		if _, ok := s.categories[merged.CategoryID]; !ok {
			return core.Expense{}, storage.ErrCategoryNotFound
		}
	}
	merged.Description = cloneString(merged.Description)
	merged.UpdatedAt = s.now()
	s.expenses[id] = merged
	return s.enrich(merged), nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return storage.ErrExpenseNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) SumExpenses(_ context.Context, r core.DateRange) (core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total core.Money
	for _, e := range s.expenses {
		if r.Contains(e.Date) {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (s *Store) MonthlyTotals(_ context.Context, year int) (map[int]core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]core.Money, 12)
	for _, e := range s.expenses {
		if e.Date.Year() == year {
			m := e.Date.Month()
			out[m] = out[m].Add(e.Amount)
		}
	}
	return out, nil
}

func (s *Store) CategoryTotals(_ context.Context, r *core.DateRange) ([]core.CategoryTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[int64]core.Money)
	for _, e := range s.expenses {
		if r != nil && !r.Contains(e.Date) {
			continue
		}
		sums[e.CategoryID] = sums[e.CategoryID].Add(e.Amount)
	}

	out := make([]core.CategoryTotal, 0, len(sums))
	for id, total := range sums {
		c := s.categories[id]
		out = append(out, core.CategoryTotal{
			CategoryID:   id,
			CategoryName: c.Name,
			Icon:         c.Icon,
			Color:        c.Color,
			Total:        total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

func (s *Store) RecordEvent(_ context.Context, ev storage.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEvent++
	ev.ID = s.nextEvent
	ev.RecordedAt = s.now()
	s.events = append(s.events, ev)
	return nil
}

func (s *Store) ListEvents(_ context.Context, expenseID int64) ([]storage.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.AuditEvent
	for _, ev := range s.events {
		if ev.ExpenseID == expenseID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// enrich must be called with the lock held.
func (s *Store) enrich(e core.Expense) core.Expense {
	e.Category = s.categories[e.CategoryID].Ref()
	e.Description = cloneString(e.Description)
	return e
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
