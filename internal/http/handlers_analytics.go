package http

import (
	"net/http"

	"budget/internal/core"
)

func (s *Server) handleCurrentMonth(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Analytics.CurrentMonthTotal(r.Context())
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch current month total")
		return
	}
	NewJSONResponse().Data(summary).Write(w)
}

// handleMonthly reports twelve months for ?year= (default: current year).
// The resolved year is echoed at the top level of the envelope.
func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYear(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	rows, reported, err := s.svc.Analytics.MonthlyTotals(r.Context(), year)
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch monthly analytics")
		return
	}
	if rows == nil {
		rows = []core.MonthTotal{}
	}
	NewJSONResponse().
		Data(rows).
		Year(reported).
		Write(w)
}

func (s *Server) handleByCategory(w http.ResponseWriter, r *http.Request) {
	dr, err := ParseDateRange(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	rows, err := s.svc.Analytics.ByCategory(r.Context(), dr)
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch category analytics")
		return
	}
	if rows == nil {
		rows = []core.CategoryTotal{}
	}
	NewJSONResponse().Data(rows).Write(w)
}
