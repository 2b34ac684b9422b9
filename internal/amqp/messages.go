package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"budget/internal/core"
)

type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseUpdated EventType = "expense.updated"
	EventExpenseDeleted EventType = "expense.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseUpdated, EventExpenseDeleted:
		return true
	}
	return false
}

// ExpenseEvent announces a committed change to an expense. It carries the
// state after the change (before it, for deletions).
type ExpenseEvent struct {
	Type        EventType `json:"type"`
	ExpenseID   int64     `json:"expenseId"`
	CategoryID  int64     `json:"categoryId"`
	AmountCents int64     `json:"amountCents"`
	Date        core.Date `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewExpenseEvent(t EventType, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Type:        t,
		ExpenseID:   e.ID,
		CategoryID:  e.CategoryID,
		AmountCents: e.Amount.Cents,
		Date:        e.Date,
		Timestamp:   time.Now().UTC(),
	}
}

func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and sanity-checks a message body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ExpenseID <= 0 {
		return nil, fmt.Errorf("invalid expense id %d", msg.ExpenseID)
	}
	return &msg, nil
}
