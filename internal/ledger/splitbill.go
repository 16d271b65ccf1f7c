package ledger

import (
	"context"
	"fmt"

	"finledger/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitBillEngine tracks participant payments and bill settlement.
type SplitBillEngine struct {
	bills BillStore
	opts  options
}

func NewSplitBillEngine(bills BillStore, opts ...Option) *SplitBillEngine {
	return &SplitBillEngine{bills: bills, opts: buildOptions(opts)}
}

// AssignParticipantIDs gives a fresh id to every added participant that has
// none or whose id is already used by existing or an earlier addition.
func AssignParticipantIDs(existing, added []core.Participant) []core.Participant {
	taken := make(map[string]bool, len(existing)+len(added))
	for _, p := range existing {
		taken[p.ID] = true
	}
	out := make([]core.Participant, len(added))
	for i, p := range added {
		if p.ID == "" || taken[p.ID] {
			p.ID = uuid.NewString()
		}
		taken[p.ID] = true
		out[i] = p
	}
	return out
}

// AddParticipants appends participants in the given order. Duplicates by
// name or email are kept and the bill total is left untouched.
func (e *SplitBillEngine) AddParticipants(ctx context.Context, billID, ownerID string, participants []core.Participant) (core.SplitBillView, error) {
	for _, p := range participants {
		if err := p.Validate(); err != nil {
			return core.SplitBillView{}, err
		}
	}
	b, err := e.bills.SplitBillByID(ctx, billID, ownerID)
	if err != nil {
		return core.SplitBillView{}, fmt.Errorf("get split bill: %w", err)
	}

	b.Participants = append(b.Participants, AssignParticipantIDs(b.Participants, participants)...)
	b.UpdatedAt = e.opts.now().UTC()

	if err := e.bills.SaveSplitBill(ctx, b); err != nil {
		return core.SplitBillView{}, fmt.Errorf("save split bill: %w", err)
	}
	return BillViewOf(b), nil
}

// MarkParticipantPaid records a payment and settles the bill once everyone
// has paid. Marking an already paid participant changes nothing.
func (e *SplitBillEngine) MarkParticipantPaid(ctx context.Context, billID, ownerID, participantID string) (core.SplitBillView, error) {
	b, err := e.bills.SplitBillByID(ctx, billID, ownerID)
	if err != nil {
		return core.SplitBillView{}, fmt.Errorf("get split bill: %w", err)
	}
	i := b.Participant(participantID)
	if i < 0 {
		return core.SplitBillView{}, core.NotFoundError("participant", participantID)
	}
	if b.Participants[i].Paid {
		return BillViewOf(b), nil
	}

	b.Participants[i].Paid = true
	b.State = b.State.AfterPayment(b.Participants)
	b.UpdatedAt = e.opts.now().UTC()

	if err := e.bills.SaveSplitBill(ctx, b); err != nil {
		return core.SplitBillView{}, fmt.Errorf("save split bill: %w", err)
	}
	return BillViewOf(b), nil
}

// Summary totals every bill of the owner.
func (e *SplitBillEngine) Summary(ctx context.Context, ownerID string) (core.SplitBillSummary, error) {
	bills, err := e.bills.SplitBillsOf(ctx, ownerID)
	if err != nil {
		return core.SplitBillSummary{}, fmt.Errorf("list split bills: %w", err)
	}
	return SummaryOf(bills), nil
}

func SummaryOf(bills []core.SplitBill) core.SplitBillSummary {
	s := core.SplitBillSummary{
		TotalBills: len(bills),
		TotalOwed:  decimal.Zero,
		TotalPaid:  decimal.Zero,
	}
	for _, b := range bills {
		v := BillViewOf(b)
		s.TotalOwed = core.Add(s.TotalOwed, b.TotalAmount)
		s.TotalPaid = core.Add(s.TotalPaid, v.PaidAmount)
		if v.Settled {
			s.SettledBills++
		} else {
			s.PendingBills++
		}
	}
	s.TotalPending = core.Subtract(s.TotalOwed, s.TotalPaid)
	return s
}

// BillViewOf derives paid and remaining amounts from participant state.
func BillViewOf(b core.SplitBill) core.SplitBillView {
	paid := decimal.Zero
	for _, p := range b.Participants {
		if p.Paid {
			paid = core.Add(paid, p.AmountOwed)
		}
	}
	return core.SplitBillView{
		SplitBill:       b,
		PaidAmount:      paid,
		RemainingAmount: core.Subtract(b.TotalAmount, paid),
		Settled:         b.Settled(),
	}
}
