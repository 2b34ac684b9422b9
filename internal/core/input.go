package core

import "strings"

const (
	msgRequiredFields  = "Amount, category, and date are required"
	msgAmountPositive  = "Amount must be greater than 0"
	maxDescriptionSize = 1000
)

// NewExpense is the input of the create operation. Pointer fields are nil
// when the caller did not supply them.
type NewExpense struct {
	Amount      *Money  `json:"amount"`
	CategoryID  *int64  `json:"categoryId"`
	Date        *Date   `json:"date"`
	Description *string `json:"description"`
}

// ExpensePatch is the input of the update operation. Unsupplied fields keep
// their stored value.
type ExpensePatch struct {
	Amount      *Money  `json:"amount"`
	CategoryID  *int64  `json:"categoryId"`
	Date        *Date   `json:"date"`
	Description *string `json:"description"`
}

// Validate checks required fields and the amount sign. It never touches the store.
func (in NewExpense) Validate() error {
	if in.Amount == nil || in.Amount.Cents == 0 ||
		in.CategoryID == nil || *in.CategoryID == 0 ||
		in.Date == nil || in.Date.IsZero() {
		return &ValidationError{Message: msgRequiredFields}
	}
	if !in.Amount.IsPositive() {
		return &ValidationError{Message: msgAmountPositive}
	}
	if *in.CategoryID < 0 {
		return &ValidationError{Message: "Category id must be a positive integer"}
	}
	if err := validateDescription(in.Description); err != nil {
		return err
	}
	return nil
}

// Expense builds the record to persist. Call Validate first.
func (in NewExpense) Expense() Expense {
	return Expense{
		Amount:      *in.Amount,
		CategoryID:  *in.CategoryID,
		Date:        *in.Date,
		Description: normalizeDescription(in.Description),
	}
}

// Validate rejects a supplied non-positive amount.
func (p ExpensePatch) Validate() error {
	if p.Amount != nil && !p.Amount.IsPositive() {
		return &ValidationError{Message: msgAmountPositive}
	}
	if p.CategoryID != nil && *p.CategoryID < 0 {
		return &ValidationError{Message: "Category id must be a positive integer"}
	}
	return validateDescription(p.Description)
}

// ChangesCategory reports whether applying the patch moves the expense to
// another category reference that must be checked for existence.
func (p ExpensePatch) ChangesCategory() bool {
	return p.CategoryID != nil && *p.CategoryID != 0
}

// Apply merges the patch onto e. A zero category id or an empty date counts
// as "not supplied"; a supplied description replaces the stored one.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.ChangesCategory() {
		e.CategoryID = *p.CategoryID
	}
	if p.Date != nil && !p.Date.IsZero() {
		e.Date = *p.Date
	}
	if p.Description != nil {
		e.Description = normalizeDescription(p.Description)
	}
	return e
}

func validateDescription(desc *string) error {
	if desc != nil && len(*desc) > maxDescriptionSize {
		return &ValidationError{Message: "Description is too long (max 1000 characters)"}
	}
	return nil
}

func normalizeDescription(desc *string) *string {
	if desc == nil {
		return nil
	}
	s := strings.TrimSpace(*desc)
	return &s
}
