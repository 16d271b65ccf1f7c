package http

import (
	"net/http"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/services"

	"github.com/shopspring/decimal"
)

type participantRequest struct {
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	AmountOwed decimal.Decimal `json:"amountOwed"`
}

type billRequest struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Category     string               `json:"category"`
	TotalAmount  decimal.Decimal      `json:"totalAmount"`
	Date         core.Date            `json:"date"`
	Participants []participantRequest `json:"participants"`
}

func (req billRequest) input() services.BillInput {
	return services.BillInput{
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		TotalAmount:  req.TotalAmount,
		Date:         req.Date,
		Participants: participants(req.Participants),
	}
}

type participantsRequest struct {
	Participants []participantRequest `json:"participants"`
}

// participants converts request rows. Paid is never taken from the client.
func participants(in []participantRequest) []core.Participant {
	out := make([]core.Participant, 0, len(in))
	for _, p := range in {
		out = append(out, core.Participant{Name: p.Name, Email: p.Email, AmountOwed: p.AmountOwed})
	}
	return out
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.svc.Bills.ListBills(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	bill, err := s.svc.Bills.CreateBill(r.Context(), owner(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.svc.Bills.GetBill(r.Context(), r.PathValue("id"), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	bill, err := s.svc.Bills.UpdateBill(r.Context(), r.PathValue("id"), owner(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Bills.DeleteBill(r.Context(), r.PathValue("id"), owner(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddParticipants(w http.ResponseWriter, r *http.Request) {
	var req participantsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	bill, err := s.svc.Bills.AddParticipants(r.Context(), r.PathValue("id"), owner(r), participants(req.Participants))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	bill, err := s.svc.Bills.MarkPaid(r.Context(), r.PathValue("id"), owner(r), r.PathValue("pid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Participant marked paid",
		log.NewFields().WithOwner(bill.OwnerID).WithBill(bill.ID).WithOperation(log.OpPay).ToSlice()...)
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleBillSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Bills.Summary(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
