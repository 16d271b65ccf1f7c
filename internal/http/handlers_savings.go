package http

import (
	"net/http"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/services"

	"github.com/shopspring/decimal"
)

type goalRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	TargetDate   core.Date       `json:"targetDate"`
	Icon         string          `json:"icon"`
	Color        string          `json:"color"`
}

func (req goalRequest) input() services.GoalInput {
	return services.GoalInput{
		Name:         req.Name,
		Description:  req.Description,
		TargetAmount: req.TargetAmount,
		TargetDate:   req.TargetDate,
		Icon:         req.Icon,
		Color:        req.Color,
	}
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.svc.Goals.ListGoals(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := s.svc.Goals.CreateGoal(r.Context(), owner(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.svc.Goals.GetGoal(r.Context(), r.PathValue("id"), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := s.svc.Goals.UpdateGoal(r.Context(), r.PathValue("id"), owner(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Goals.DeleteGoal(r.Context(), r.PathValue("id"), owner(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := s.svc.Goals.Deposit(r.Context(), r.PathValue("id"), owner(r), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Deposit recorded",
		log.NewFields().WithOwner(goal.OwnerID).WithGoal(goal.ID, goal.CurrentAmount).ToSlice()...)
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleSavingsProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.svc.Goals.Progress(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}
