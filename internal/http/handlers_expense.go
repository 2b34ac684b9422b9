package http

import (
	"net/http"

	"budget/internal/core"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseExpenseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	items, err := s.svc.Expenses.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch expenses")
		return
	}
	if items == nil {
		items = []core.Expense{}
	}
	NewJSONResponse().Data(items).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := DecodeNewExpense(w, r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	e, err := s.svc.Expenses.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err, "Failed to create expense")
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Data(e).
		Message("Expense created successfully").
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseExpenseID(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	patch, err := DecodeExpensePatch(w, r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	e, err := s.svc.Expenses.Update(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, err, "Failed to update expense")
		return
	}

	NewJSONResponse().
		Data(e).
		Message("Expense updated successfully").
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseExpenseID(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	if err := s.svc.Expenses.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err, "Failed to delete expense")
		return
	}

	NewJSONResponse().Message("Expense deleted successfully").Write(w)
}
