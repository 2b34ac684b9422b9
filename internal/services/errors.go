package services

import (
	"errors"

	"budget/internal/core"
	"budget/internal/storage"
)

// translate maps store failures onto the domain error taxonomy.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrExpenseNotFound):
		return &core.NotFoundError{Resource: "Expense"}
	case errors.Is(err, storage.ErrCategoryNotFound):
		return &core.NotFoundError{Resource: "Category"}
	}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return &core.InternalError{Op: op, Err: err}
}
