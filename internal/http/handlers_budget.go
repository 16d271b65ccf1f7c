package http

import (
	"net/http"
	"time"

	"finledger/internal/core"
	"finledger/internal/log"

	"github.com/shopspring/decimal"
)

// budgetRequest sets a monthly limit. A zero month or year means the current
// one.
type budgetRequest struct {
	Month        int             `json:"month"`
	Year         int             `json:"year"`
	MonthlyLimit decimal.Decimal `json:"monthlyLimit"`
}

func (s *Server) handleCurrentBudget(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Budgets.ResolveCurrentBudget(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBudgetFor(w http.ResponseWriter, r *http.Request) {
	month, err := pathInt(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := pathInt(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.svc.Budgets.ResolveBudget(r.Context(), owner(r), month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	current := core.PeriodOf(time.Now())
	if req.Month == 0 {
		req.Month = current.Month
	}
	if req.Year == 0 {
		req.Year = current.Year
	}
	view, err := s.svc.Budgets.UpsertBudget(r.Context(), owner(r), req.Month, req.Year, req.MonthlyLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Budget saved",
		log.NewFields().WithOwner(owner(r)).WithPeriod(req.Month, req.Year).WithComponent(log.ComponentBudget).ToSlice()...)
	writeJSON(w, http.StatusOK, view)
}
