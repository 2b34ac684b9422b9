package services

import (
	"context"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/storage"
)

type CategoryService struct {
	store  storage.CategoryStore
	logger *log.Logger
}

func NewCategoryService(store storage.CategoryStore, logger *log.Logger) *CategoryService {
	if logger == nil {
		logger = log.Default(log.ComponentCategory)
	}
	return &CategoryService{store: store, logger: logger}
}

// ListAll returns every category ordered by name.
func (s *CategoryService) ListAll(ctx context.Context) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list categories", log.FieldOperation, log.OpList, log.FieldError, err)
		return nil, translate("list categories", err)
	}
	if cats == nil {
		cats = []core.Category{}
	}
	return cats, nil
}

// EnsureDefaults inserts the default categories when the store has none and
// reports how many were inserted.
func (s *CategoryService) EnsureDefaults(ctx context.Context) (int, error) {
	n, err := s.store.CountCategories(ctx)
	if err != nil {
		return 0, translate("count categories", err)
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "Categories already present, skipping seed", "count", n)
		return 0, nil
	}

	defaults := core.DefaultCategories()
	if err := s.store.InsertCategories(ctx, defaults); err != nil {
		s.logger.ErrorContext(ctx, "Failed to seed categories", log.FieldOperation, log.OpSeed, log.FieldError, err)
		return 0, translate("seed categories", err)
	}
	s.logger.InfoContext(ctx, "Default categories seeded", "count", len(defaults))
	return len(defaults), nil
}
