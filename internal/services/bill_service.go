package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finledger/internal/core"
	"finledger/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillInput carries the fields of a split bill. TotalAmount and Participants
// are only read on creation.
type BillInput struct {
	Name         string
	Description  string
	Category     string
	TotalAmount  decimal.Decimal
	Date         core.Date
	Participants []core.Participant
}

// BillService manages split bills and publishes bill.settled when the last
// participant pays.
type BillService struct {
	bills  ledger.BillStore
	engine *ledger.SplitBillEngine
	events EventPublisher
	now    func() time.Time
}

func NewBillService(bills ledger.BillStore, engine *ledger.SplitBillEngine, events EventPublisher) *BillService {
	if events == nil {
		events = NopPublisher{}
	}
	return &BillService{bills: bills, engine: engine, events: events, now: time.Now}
}

// CreateBill opens a bill. Participants start unpaid.
func (s *BillService) CreateBill(ctx context.Context, ownerID string, in BillInput) (core.SplitBillView, error) {
	now := s.now().UTC()
	b := core.SplitBill{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		TotalAmount:  core.Round2(in.TotalAmount),
		Participants: ledger.AssignParticipantIDs(nil, unpaid(in.Participants)),
		State:        core.BillOpen,
		CreatedAt:    now,
	}
	in.apply(&b, now)
	if err := b.Validate(); err != nil {
		return core.SplitBillView{}, err
	}
	if err := s.bills.SaveSplitBill(ctx, b); err != nil {
		return core.SplitBillView{}, fmt.Errorf("save split bill: %w", err)
	}
	return ledger.BillViewOf(b), nil
}

func (s *BillService) GetBill(ctx context.Context, id, ownerID string) (core.SplitBillView, error) {
	b, err := s.bills.SplitBillByID(ctx, id, ownerID)
	if err != nil {
		return core.SplitBillView{}, err
	}
	return ledger.BillViewOf(b), nil
}

func (s *BillService) ListBills(ctx context.Context, ownerID string) ([]core.SplitBillView, error) {
	bills, err := s.bills.SplitBillsOf(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list split bills: %w", err)
	}
	views := make([]core.SplitBillView, 0, len(bills))
	for _, b := range bills {
		views = append(views, ledger.BillViewOf(b))
	}
	return views, nil
}

// UpdateBill changes name, description, category and date. The total and
// the participants are left alone.
func (s *BillService) UpdateBill(ctx context.Context, id, ownerID string, in BillInput) (core.SplitBillView, error) {
	b, err := s.bills.SplitBillByID(ctx, id, ownerID)
	if err != nil {
		return core.SplitBillView{}, err
	}
	in.apply(&b, s.now().UTC())
	if err := b.Validate(); err != nil {
		return core.SplitBillView{}, err
	}
	if err := s.bills.SaveSplitBill(ctx, b); err != nil {
		return core.SplitBillView{}, fmt.Errorf("save split bill: %w", err)
	}
	return ledger.BillViewOf(b), nil
}

func (s *BillService) DeleteBill(ctx context.Context, id, ownerID string) error {
	b, err := s.bills.SplitBillByID(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := s.bills.DeleteSplitBill(ctx, b); err != nil {
		return fmt.Errorf("delete split bill: %w", err)
	}
	return nil
}

func (s *BillService) AddParticipants(ctx context.Context, id, ownerID string, participants []core.Participant) (core.SplitBillView, error) {
	return s.engine.AddParticipants(ctx, id, ownerID, unpaid(participants))
}

// MarkPaid records a participant's payment.
func (s *BillService) MarkPaid(ctx context.Context, id, ownerID, participantID string) (core.SplitBillView, error) {
	before, err := s.bills.SplitBillByID(ctx, id, ownerID)
	if err != nil {
		return core.SplitBillView{}, err
	}
	view, err := s.engine.MarkParticipantPaid(ctx, id, ownerID, participantID)
	if err != nil {
		return core.SplitBillView{}, err
	}
	if !before.Settled() && view.Settled {
		event := core.NewLedgerEvent(core.EventBillSettled, ownerID, view.ID, view.TotalAmount, s.now())
		event.Label = view.Name
		publish(ctx, s.events, event)
	}
	return view, nil
}

func (s *BillService) Summary(ctx context.Context, ownerID string) (core.SplitBillSummary, error) {
	return s.engine.Summary(ctx, ownerID)
}

func (in BillInput) apply(b *core.SplitBill, now time.Time) {
	b.Name = strings.TrimSpace(in.Name)
	b.Description = strings.TrimSpace(in.Description)
	b.Category = strings.TrimSpace(in.Category)
	b.Date = in.Date
	b.UpdatedAt = now
}

func unpaid(participants []core.Participant) []core.Participant {
	out := make([]core.Participant, len(participants))
	for i, p := range participants {
		p.Name = strings.TrimSpace(p.Name)
		p.Email = strings.TrimSpace(p.Email)
		p.AmountOwed = core.Round2(p.AmountOwed)
		p.Paid = false
		out[i] = p
	}
	return out
}
