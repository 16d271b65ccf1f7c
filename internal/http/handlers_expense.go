package http

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/storage"

	"github.com/shopspring/decimal"
)

// defaultMaxUpload applies when the server is configured without a limit.
const defaultMaxUpload = 10 << 20

type expenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        core.Date       `json:"date"`
	Description string          `json:"description"`
	Notes       string          `json:"notes"`
}

func (req expenseRequest) input() services.ExpenseInput {
	return services.ExpenseInput{
		Amount:      req.Amount,
		Category:    req.Category,
		Date:        req.Date,
		Description: req.Description,
		Notes:       req.Notes,
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.svc.Expenses.ListExpenses(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.CreateExpense(r.Context(), owner(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.NewFields().WithOwner(e.OwnerID).WithExpense(e.ID, e.Amount, e.Category).ToSlice()...)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Expenses.GetExpense(r.Context(), r.PathValue("id"), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.UpdateExpense(r.Context(), r.PathValue("id"), owner(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Expenses.DeleteExpense(r.Context(), r.PathValue("id"), owner(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExpensesByCategory(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.svc.Expenses.ExpensesByCategory(r.Context(), owner(r), r.PathValue("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleFilterExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	expenses, err := s.svc.Expenses.ExpensesBetween(r.Context(), owner(r), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.svc.Expenses.Categories(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// handleUploadAttachment takes a multipart form with the photo in "file".
func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	// Leave room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, storage.ErrAttachmentTooLarge)
			return
		}
		writeError(w, r, fmt.Errorf("%w: malformed multipart form: %v", core.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: form field \"file\" is required", core.ErrInvalidInput))
		return
	}
	defer file.Close()

	e, err := s.svc.Expenses.AttachBill(r.Context(), r.PathValue("id"), owner(r), header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	f, name, err := s.svc.Expenses.OpenAttachment(r.Context(), r.PathValue("id"), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	modified := time.Time{}
	if info, err := f.Stat(); err == nil {
		modified = info.ModTime()
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, modified, f)
}
