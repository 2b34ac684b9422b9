package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/storage"
)

const analyticsCacheSize = 128

// AnalyticsService computes spending aggregates. Results are cached until the
// TTL expires or Invalidate is called.
type AnalyticsService struct {
	store  storage.AnalyticsReader
	cache  *cache.LRUCache[any]
	now    func() time.Time
	logger *log.Logger
}

type AnalyticsOption func(*AnalyticsService)

// WithClock sets the source of "now" used to pick the current month and year.
func WithClock(now func() time.Time) AnalyticsOption {
	return func(s *AnalyticsService) { s.now = now }
}

// WithCacheTTL enables result caching. A non-positive ttl disables it.
func WithCacheTTL(ttl time.Duration) AnalyticsOption {
	return func(s *AnalyticsService) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = cache.NewLRUCache[any](analyticsCacheSize, ttl)
	}
}

func WithAnalyticsLogger(l *log.Logger) AnalyticsOption {
	return func(s *AnalyticsService) { s.logger = l }
}

func NewAnalyticsService(store storage.AnalyticsReader, opts ...AnalyticsOption) *AnalyticsService {
	s := &AnalyticsService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentAnalytics)
	}
	return s
}

// Cache exposes the result cache for periodic cleanup; nil when disabled.
func (s *AnalyticsService) Cache() *cache.LRUCache[any] {
	return s.cache
}

// Invalidate drops every cached aggregate.
func (s *AnalyticsService) Invalidate() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

// CurrentMonthTotal sums the expenses dated within the current calendar month.
func (s *AnalyticsService) CurrentMonthTotal(ctx context.Context) (core.MonthSummary, error) {
	now := s.now()
	year, month := now.Year(), int(now.Month())

	return cached(s, fmt.Sprintf("current:%04d-%02d", year, month), func() (core.MonthSummary, error) {
		total, err := s.store.SumExpenses(ctx, core.MonthBounds(year, month))
		if err != nil {
			return core.MonthSummary{}, s.fail(ctx, "current month total", err)
		}
		return core.MonthSummary{Total: total, Month: time.Month(month).String(), Year: year}, nil
	})
}

// MonthlyTotals returns twelve entries, January to December, for year (the
// current year when nil), along with the year it reported on. Months without
// expenses report zero.
func (s *AnalyticsService) MonthlyTotals(ctx context.Context, year *int) ([]core.MonthTotal, int, error) {
	y := s.now().Year()
	if year != nil {
		y = *year
	}
	if y < 1 || y > 9999 {
		return nil, 0, core.Validationf("Invalid year: %d", y)
	}

	rows, err := cached(s, fmt.Sprintf("monthly:%04d", y), func() ([]core.MonthTotal, error) {
		sums, err := s.store.MonthlyTotals(ctx, y)
		if err != nil {
			return nil, s.fail(ctx, "monthly totals", err)
		}
		return core.FillYear(sums), nil
	})
	if err != nil {
		return nil, 0, err
	}
	return slices.Clone(rows), y, nil
}

// ByCategory sums spending per category over r (all time when nil). Only
// categories with at least one matching expense appear, largest total first.
func (s *AnalyticsService) ByCategory(ctx context.Context, r *core.DateRange) ([]core.CategoryTotal, error) {
	key := "bycat:all"
	if r != nil {
		key = "bycat:" + r.Start.String() + ":" + r.End.String()
	}

	rows, err := cached(s, key, func() ([]core.CategoryTotal, error) {
		totals, err := s.store.CategoryTotals(ctx, r)
		if err != nil {
			return nil, s.fail(ctx, "totals by category", err)
		}
		if totals == nil {
			totals = []core.CategoryTotal{}
		}
		sort.SliceStable(totals, func(i, j int) bool {
			if totals[i].Total.Cents != totals[j].Total.Cents {
				return totals[i].Total.Cents > totals[j].Total.Cents
			}
			return totals[i].CategoryID < totals[j].CategoryID
		})
		return totals, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(rows), nil
}

func (s *AnalyticsService) fail(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "Analytics query failed",
		log.FieldOperation, log.OpAggregate,
		"query", op,
		log.FieldError, err)
	return translate(op, err)
}

// cached serves key from the cache or computes it with load. A value computed
// across an Invalidate is returned but not stored.
func cached[T any](s *AnalyticsService, key string, load func() (T, error)) (T, error) {
	if s.cache == nil {
		return load()
	}
	if v, ok := s.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	gen := s.cache.Generation()
	v, err := load()
	if err != nil {
		return v, err
	}
	s.cache.SetIfGeneration(gen, key, v)
	return v, nil
}
