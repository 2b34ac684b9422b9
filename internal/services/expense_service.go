package services

import (
	"context"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/storage"
)

// EventPublisher announces committed expense changes.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// Invalidator drops derived data after a mutation.
type Invalidator interface {
	Invalidate()
}

// ExpenseService validates inputs before touching the store and maps every
// store failure onto the domain error taxonomy.
type ExpenseService struct {
	store       storage.ExpenseStore
	publisher   EventPublisher
	invalidator Invalidator
	logger      *log.Logger
	events      *log.StructuredLogger
}

type ExpenseOption func(*ExpenseService)

// WithPublisher enables expense events.
func WithPublisher(p EventPublisher) ExpenseOption {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithInvalidator(i Invalidator) ExpenseOption {
	return func(s *ExpenseService) { s.invalidator = i }
}

func WithExpenseLogger(l *log.Logger) ExpenseOption {
	return func(s *ExpenseService) { s.logger = l }
}

func NewExpenseService(store storage.ExpenseStore, opts ...ExpenseOption) *ExpenseService {
	s := &ExpenseService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentExpense)
	}
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// List returns the matching expenses, newest first.
func (s *ExpenseService) List(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, f)
	if err != nil {
		s.events.LogError(ctx, "Failed to list expenses", err, log.OpList, nil)
		return nil, translate("list expenses", err)
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

func (s *ExpenseService) Create(ctx context.Context, in core.NewExpense) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.store.CreateExpense(ctx, in.Expense())
	if err != nil {
		return core.Expense{}, s.fail(ctx, log.OpCreate, "create expense", err)
	}

	s.events.LogExpenseMutation(ctx, log.OpCreate, created.ID, created.CategoryID, created.Amount.Cents, created.Date.String())
	s.afterMutation(ctx, amqp.EventExpenseCreated, created)
	return created, nil
}

func (s *ExpenseService) Update(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error) {
	if err := p.Validate(); err != nil {
		return core.Expense{}, err
	}
	if id <= 0 {
		return core.Expense{}, &core.NotFoundError{Resource: "Expense"}
	}

	updated, err := s.store.UpdateExpense(ctx, id, p)
	if err != nil {
		return core.Expense{}, s.fail(ctx, log.OpUpdate, "update expense", err)
	}

	s.events.LogExpenseMutation(ctx, log.OpUpdate, updated.ID, updated.CategoryID, updated.Amount.Cents, updated.Date.String())
	s.afterMutation(ctx, amqp.EventExpenseUpdated, updated)
	return updated, nil
}

// Delete removes the expense permanently.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return &core.NotFoundError{Resource: "Expense"}
	}

	// Loaded only to describe the deletion in the outgoing event.
	existing, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return s.fail(ctx, log.OpDelete, "delete expense", err)
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return s.fail(ctx, log.OpDelete, "delete expense", err)
	}

	s.events.LogExpenseMutation(ctx, log.OpDelete, existing.ID, existing.CategoryID, existing.Amount.Cents, existing.Date.String())
	s.afterMutation(ctx, amqp.EventExpenseDeleted, existing)
	return nil
}

func (s *ExpenseService) fail(ctx context.Context, op, desc string, err error) error {
	translated := translate(desc, err)
	if _, internal := translated.(*core.InternalError); internal {
		s.events.LogError(ctx, "Expense store failure", err, op, log.NewFields().WithErrorType(log.ErrorTypeDatabase))
	}
	return translated
}

func (s *ExpenseService) afterMutation(ctx context.Context, t amqp.EventType, e core.Expense) {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(t, e)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish expense event",
			log.FieldOperation, log.OpPublish,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldEventType, t,
			log.FieldExpenseID, e.ID,
			log.FieldError, err)
	}
}
