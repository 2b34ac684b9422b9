// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data.
// Every malformed parameter becomes a *core.ValidationError so handlers can
// hand it straight to writeError.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budget/internal/core"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ParseExpenseFilter reads startDate, endDate and categoryId. The date range
// applies only when both bounds are present; any supplied value must be
// well formed.
func ParseExpenseFilter(query url.Values) (core.ExpenseFilter, error) {
	var f core.ExpenseFilter

	r, err := ParseDateRange(query)
	if err != nil {
		return f, err
	}
	f.Range = r

	if v := strings.TrimSpace(query.Get("categoryId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, core.Validationf("Invalid categoryId: %q", v)
		}
		f.CategoryID = &id
	}
	return f, nil
}

// ParseDateRange reads the optional startDate/endDate pair. It returns nil
// when either bound is missing.
func ParseDateRange(query url.Values) (*core.DateRange, error) {
	start, err := parseOptionalDate(query, "startDate")
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate(query, "endDate")
	if err != nil {
		return nil, err
	}
	if start == nil || end == nil {
		return nil, nil
	}
	return &core.DateRange{Start: *start, End: *end}, nil
}

func parseOptionalDate(query url.Values, key string) (*core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, core.Validationf("Invalid %s: expected YYYY-MM-DD", key)
	}
	return &d, nil
}

// ParseYear reads the optional year parameter.
func ParseYear(query url.Values) (*int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return nil, nil
	}
	y, err := strconv.Atoi(v)
	if err != nil {
		return nil, core.Validationf("Invalid year: %q", v)
	}
	return &y, nil
}

// ParseExpenseID reads the {id} path segment.
func ParseExpenseID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, core.Validationf("Invalid expense id: %q", raw)
	}
	return id, nil
}

// DecodeNewExpense decodes the create payload.
func DecodeNewExpense(w http.ResponseWriter, r *http.Request) (core.NewExpense, error) {
	var in core.NewExpense
	if err := decodeJSON(w, r, &in); err != nil {
		return in, err
	}
	in.Description = sanitizeDescription(in.Description)
	return in, nil
}

// DecodeExpensePatch decodes the update payload. An empty body is an empty patch.
func DecodeExpensePatch(w http.ResponseWriter, r *http.Request) (core.ExpensePatch, error) {
	var p core.ExpensePatch
	if err := decodeJSON(w, r, &p); err != nil {
		return p, err
	}
	p.Description = sanitizeDescription(p.Description)
	return p, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(dst)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		// An empty body decodes as an empty input; Validate reports what is missing.
		return nil
	default:
		return bodyError(err)
	}
	if dec.More() {
		return core.Validationf("Request body must contain a single JSON object")
	}
	return nil
}

// bodyError turns a decode failure into a client-facing validation error.
func bodyError(err error) error {
	var (
		typeErr *json.UnmarshalTypeError
		maxErr  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return core.Validationf("Invalid amount: expected a decimal number")
	case errors.Is(err, core.ErrInvalidDate):
		return core.Validationf("Invalid date: expected YYYY-MM-DD")
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return core.Validationf("Invalid %s: wrong type", typeErr.Field)
		}
		return core.Validationf("Request body must be a JSON object")
	case errors.As(err, &maxErr):
		return core.Validationf("Request body too large (max %d bytes)", maxErr.Limit)
	default:
		return &core.ValidationError{Message: fmt.Sprintf("Invalid JSON body: %v", err)}
	}
}

func sanitizeDescription(desc *string) *string {
	if desc == nil {
		return nil
	}
	s := sanitizeInput(*desc)
	return &s
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
