package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
	"budget/internal/storage/memory"
)

type failingRecorder struct{ storage.EventRecorder }

func (failingRecorder) RecordEvent(context.Context, storage.AuditEvent) error {
	return errors.New("database is locked")
}

// fakeConsumer replays events through the handler then waits for cancellation.
type fakeConsumer struct {
	events []*amqp.ExpenseEvent
	errs   []error
}

func (f *fakeConsumer) ConsumeExpenseEvents(ctx context.Context, handler amqp.Handler) error {
	for _, ev := range f.events {
		f.errs = append(f.errs, handler(ctx, ev))
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestAuditWorker_Handle(t *testing.T) {
	store := memory.New()
	w := NewAuditWorker(store, nil)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ev := &amqp.ExpenseEvent{
		Type:        amqp.EventExpenseCreated,
		ExpenseID:   42,
		CategoryID:  3,
		AmountCents: 1999,
		Date:        core.NewDate(2024, 3, 1),
		Timestamp:   ts,
	}
	if err := w.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	events, err := store.ListEvents(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	got := events[0]
	if got.EventType != "expense.created" || got.AmountCents != 1999 || got.CategoryID != 3 {
		t.Errorf("unexpected audit row %+v", got)
	}
	if !got.OccurredAt.Equal(ts) || got.Date.String() != "2024-03-01" {
		t.Errorf("timestamps not preserved: %+v", got)
	}
	if p, f := w.Stats(); p != 1 || f != 0 {
		t.Errorf("stats = %d/%d, want 1/0", p, f)
	}
}

func TestAuditWorker_HandleFailure(t *testing.T) {
	w := NewAuditWorker(failingRecorder{}, nil)
	err := w.Handle(context.Background(), &amqp.ExpenseEvent{Type: amqp.EventExpenseDeleted, ExpenseID: 7})
	if err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if p, f := w.Stats(); p != 0 || f != 1 {
		t.Errorf("stats = %d/%d, want 0/1", p, f)
	}
}

func TestAuditWorker_Run(t *testing.T) {
	store := memory.New()
	w := NewAuditWorker(store, nil)
	consumer := &fakeConsumer{events: []*amqp.ExpenseEvent{
		{Type: amqp.EventExpenseCreated, ExpenseID: 1, Timestamp: time.Now()},
		{Type: amqp.EventExpenseUpdated, ExpenseID: 1, Timestamp: time.Now()},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	deadline := time.After(2 * time.Second)
	for {
		if p, _ := w.Stats(); p == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("events were not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}
	events, _ := store.ListEvents(context.Background(), 1)
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
}
