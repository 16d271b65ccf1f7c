package http

import (
	"net/http"
)

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Dashboard.Stats(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSpendingBreakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := s.svc.Dashboard.SpendingBreakdown(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleSpendingTrends(w http.ResponseWriter, r *http.Request) {
	months, err := monthsBack(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	trends, err := s.svc.Dashboard.SpendingTrends(r.Context(), owner(r), months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

// handleMonthlyExpenseStats serves /api/expenses/stats/monthly. Unless both
// month and year are given the current month is used.
func (s *Server) handleMonthlyExpenseStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	month, err := optionalInt(query, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := optionalInt(query, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.svc.Dashboard.MonthlyExpenseStats(r.Context(), owner(r), month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
