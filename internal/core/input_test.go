package core

import "testing"

func ptr[T any](v T) *T { return &v }

func TestNewExpenseValidate(t *testing.T) {
	date := NewDate(2024, 3, 1)
	good := NewExpense{Amount: &Money{Cents: 100}, CategoryID: ptr(int64(1)), Date: &date}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		in   NewExpense
		msg  string
	}{
		{"missing amount", NewExpense{CategoryID: ptr(int64(1)), Date: &date}, msgRequiredFields},
		{"zero amount", NewExpense{Amount: &Money{}, CategoryID: ptr(int64(1)), Date: &date}, msgRequiredFields},
		{"missing category", NewExpense{Amount: &Money{Cents: 1}, Date: &date}, msgRequiredFields},
		{"missing date", NewExpense{Amount: &Money{Cents: 1}, CategoryID: ptr(int64(1))}, msgRequiredFields},
		{"empty date", NewExpense{Amount: &Money{Cents: 1}, CategoryID: ptr(int64(1)), Date: &Date{}}, msgRequiredFields},
		{"negative amount", NewExpense{Amount: &Money{Cents: -1}, CategoryID: ptr(int64(1)), Date: &date}, msgAmountPositive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != tc.msg {
				t.Fatalf("message = %q, want %q", err.Error(), tc.msg)
			}
		})
	}
}

func TestExpensePatchValidate(t *testing.T) {
	if err := (ExpensePatch{Description: ptr("x")}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, cents := range []int64{0, -100} {
		err := ExpensePatch{Amount: &Money{Cents: cents}}.Validate()
		if !IsValidation(err) {
			t.Fatalf("amount %d: expected validation error, got %v", cents, err)
		}
	}
}

func TestExpensePatchApply(t *testing.T) {
	orig := Expense{
		ID:          7,
		Amount:      Money{Cents: 2000},
		CategoryID:  1,
		Date:        NewDate(2024, 3, 1),
		Description: ptr("lunch"),
	}

	got := ExpensePatch{Description: ptr("  dinner ")}.Apply(orig)
	if got.Amount != orig.Amount || got.CategoryID != orig.CategoryID || !got.Date.Equal(orig.Date.Time) {
		t.Fatalf("description-only patch changed other fields: %+v", got)
	}
	if got.Description == nil || *got.Description != "dinner" {
		t.Fatalf("unexpected description %v", got.Description)
	}
	if *orig.Description != "lunch" {
		t.Fatalf("apply must not mutate the original")
	}

	newDate := NewDate(2024, 4, 2)
	got = ExpensePatch{Amount: &Money{Cents: 1}, CategoryID: ptr(int64(3)), Date: &newDate}.Apply(orig)
	if got.Amount.Cents != 1 || got.CategoryID != 3 || got.Date.String() != "2024-04-02" {
		t.Fatalf("unexpected merge %+v", got)
	}

	got = ExpensePatch{CategoryID: ptr(int64(0)), Date: &Date{}}.Apply(orig)
	if got.CategoryID != 1 || got.Date.String() != "2024-03-01" {
		t.Fatalf("zero values must keep stored fields: %+v", got)
	}
}
