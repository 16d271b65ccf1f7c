package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseInput carries the editable fields of an expense.
type ExpenseInput struct {
	Amount      decimal.Decimal
	Category    string
	Date        core.Date
	Description string
	Notes       string
}

// ExpenseService stores expenses and their bill photos and announces every
// change on the event bus.
type ExpenseService struct {
	store       storage.Store
	attachments *storage.AttachmentStore
	events      EventPublisher
	now         func() time.Time
}

func NewExpenseService(store storage.Store, attachments *storage.AttachmentStore, events EventPublisher) *ExpenseService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ExpenseService{
		store:       store,
		attachments: attachments,
		events:      events,
		now:         time.Now,
	}
}

// CreateExpense validates and saves a new expense, then publishes
// expense.created.
func (s *ExpenseService) CreateExpense(ctx context.Context, ownerID string, in ExpenseInput) (core.Expense, error) {
	now := s.now().UTC()
	e := core.Expense{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		CreatedAt: now,
	}
	in.apply(&e, now)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.SaveExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	publish(ctx, s.events, core.NewLedgerEvent(core.EventExpenseCreated, ownerID, e.ID, e.Amount, now))
	return e, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, id, ownerID string) (core.Expense, error) {
	return s.store.ExpenseByID(ctx, id, ownerID)
}

// ListExpenses returns the owner's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, ownerID string) ([]core.Expense, error) {
	expenses, err := s.store.ExpensesOf(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return newestFirst(expenses), nil
}

// UpdateExpense replaces the editable fields and publishes expense.updated.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id, ownerID string, in ExpenseInput) (core.Expense, error) {
	e, err := s.store.ExpenseByID(ctx, id, ownerID)
	if err != nil {
		return core.Expense{}, err
	}
	now := s.now().UTC()
	in.apply(&e, now)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.SaveExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	publish(ctx, s.events, core.NewLedgerEvent(core.EventExpenseUpdated, ownerID, e.ID, e.Amount, now))
	return e, nil
}

// DeleteExpense removes the expense and its attachment, if any.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id, ownerID string) error {
	e, err := s.store.ExpenseByID(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, e); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.dropAttachment(ctx, e.Attachment)
	return nil
}

func (s *ExpenseService) ExpensesByCategory(ctx context.Context, ownerID, category string) ([]core.Expense, error) {
	if strings.TrimSpace(category) == "" {
		return nil, core.ErrEmptyCategory
	}
	expenses, err := s.store.ExpensesByCategory(ctx, ownerID, category)
	if err != nil {
		return nil, fmt.Errorf("list expenses by category: %w", err)
	}
	return newestFirst(expenses), nil
}

// ExpensesBetween lists expenses dated in [from, to], newest first.
func (s *ExpenseService) ExpensesBetween(ctx context.Context, ownerID string, from, to core.Date) ([]core.Expense, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if from.After(to.Time) {
		return nil, core.ErrInvalidRange
	}
	expenses, err := s.store.ExpensesBetween(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expenses between %s and %s: %w", from, to, err)
	}
	return newestFirst(expenses), nil
}

// Categories merges the categories the owner used with the defaults, sorted
// and without duplicates.
func (s *ExpenseService) Categories(ctx context.Context, ownerID string) ([]string, error) {
	used, err := s.store.CategoriesOf(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	all := append(slices.Clone(core.DefaultCategories), used...)
	slices.Sort(all)
	return slices.Compact(all), nil
}

// AttachBill stores a bill photo for the expense, replacing the previous one.
func (s *ExpenseService) AttachBill(ctx context.Context, id, ownerID, filename string, r io.Reader) (core.Expense, error) {
	if s.attachments == nil {
		return core.Expense{}, fmt.Errorf("%w: attachments are disabled", core.ErrInvalidState)
	}
	e, err := s.store.ExpenseByID(ctx, id, ownerID)
	if err != nil {
		return core.Expense{}, err
	}

	ref, err := s.attachments.Save(filename, r)
	if err != nil {
		return core.Expense{}, err
	}
	previous := e.Attachment
	e.Attachment = ref
	e.UpdatedAt = s.now().UTC()
	if err := s.store.SaveExpense(ctx, e); err != nil {
		s.dropAttachment(ctx, ref)
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.dropAttachment(ctx, previous)

	slog.InfoContext(ctx, "Bill photo attached", log.FieldExpenseID, e.ID, "attachment", ref)
	return e, nil
}

// OpenAttachment returns the expense's bill photo and its original file
// name. The caller closes the file.
func (s *ExpenseService) OpenAttachment(ctx context.Context, id, ownerID string) (*os.File, string, error) {
	if s.attachments == nil {
		return nil, "", fmt.Errorf("%w: attachments are disabled", core.ErrInvalidState)
	}
	e, err := s.store.ExpenseByID(ctx, id, ownerID)
	if err != nil {
		return nil, "", err
	}
	if e.Attachment == "" {
		return nil, "", core.NotFoundError("attachment of expense", id)
	}
	f, err := s.attachments.Open(e.Attachment)
	if err != nil {
		return nil, "", err
	}
	return f, storage.OriginalName(e.Attachment), nil
}

func (s *ExpenseService) dropAttachment(ctx context.Context, ref string) {
	if ref == "" || s.attachments == nil {
		return
	}
	if err := s.attachments.Delete(ref); err != nil {
		slog.WarnContext(ctx, "Failed to delete attachment", "attachment", ref, log.FieldError, err)
	}
}

func (in ExpenseInput) apply(e *core.Expense, now time.Time) {
	e.Amount = core.Round2(in.Amount)
	e.Category = strings.TrimSpace(in.Category)
	e.Date = in.Date
	e.Description = strings.TrimSpace(in.Description)
	e.Notes = strings.TrimSpace(in.Notes)
	e.UpdatedAt = now
}

// newestFirst reverses a date-ascending list.
func newestFirst(expenses []core.Expense) []core.Expense {
	out := make([]core.Expense, len(expenses))
	copy(out, expenses)
	slices.Reverse(out)
	return out
}
