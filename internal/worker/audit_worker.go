// Package worker consumes expense events and keeps the audit trail.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"budget/internal/amqp"
	"budget/internal/log"
	"budget/internal/storage"
)

// Consumer delivers expense events to a handler until ctx is done.
type Consumer interface {
	ConsumeExpenseEvents(ctx context.Context, handler amqp.Handler) error
}

// AuditWorker appends every received expense event to the audit table.
type AuditWorker struct {
	recorder  storage.EventRecorder
	logger    *log.Logger
	processed atomic.Int64
	failed    atomic.Int64
}

func NewAuditWorker(recorder storage.EventRecorder, logger *log.Logger) *AuditWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &AuditWorker{recorder: recorder, logger: logger}
}

// Handle records one event. A returned error makes the consumer requeue it.
func (w *AuditWorker) Handle(ctx context.Context, ev *amqp.ExpenseEvent) error {
	w.logger.DebugContext(ctx, "Processing expense event",
		log.FieldOperation, log.OpConsume,
		log.FieldEventType, ev.Type,
		log.FieldExpenseID, ev.ExpenseID)

	err := w.recorder.RecordEvent(ctx, storage.AuditEvent{
		EventType:   string(ev.Type),
		ExpenseID:   ev.ExpenseID,
		CategoryID:  ev.CategoryID,
		AmountCents: ev.AmountCents,
		Date:        ev.Date,
		OccurredAt:  ev.Timestamp,
	})
	if err != nil {
		w.failed.Add(1)
		w.logger.ErrorContext(ctx, "Failed to record expense event",
			log.FieldEventType, ev.Type,
			log.FieldExpenseID, ev.ExpenseID,
			log.FieldError, err)
		return fmt.Errorf("record %s for expense %d: %w", ev.Type, ev.ExpenseID, err)
	}

	w.processed.Add(1)
	w.logger.InfoContext(ctx, "Expense event recorded",
		log.FieldEventType, ev.Type,
		log.FieldExpenseID, ev.ExpenseID,
		log.FieldAmountCents, ev.AmountCents)
	return nil
}

// Run consumes from c until ctx is cancelled. Cancellation is not an error.
func (w *AuditWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.InfoContext(ctx, "Audit worker started")
	err := c.ConsumeExpenseEvents(ctx, w.Handle)
	w.logger.InfoContext(ctx, "Audit worker stopped",
		"processed", w.processed.Load(),
		"failed", w.failed.Load())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stats returns the number of recorded and failed events.
func (w *AuditWorker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}
