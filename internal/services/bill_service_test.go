package services

import (
	"context"
	"testing"

	"finledger/internal/core"
	"finledger/internal/ledger"
	"finledger/internal/storage/memory"
)

func newBillService(rec *recorder) *BillService {
	store := memory.New()
	s := NewBillService(store, ledger.NewSplitBillEngine(store), rec)
	s.now = fixedClock
	return s
}

func dinner() BillInput {
	return BillInput{
		Name:        "Dinner",
		TotalAmount: dec("90"),
		Date:        core.NewDate(2025, 3, 14),
		Participants: []core.Participant{
			{Name: "Ann", AmountOwed: dec("30"), Paid: true},
			{Name: "Bob", AmountOwed: dec("30")},
		},
	}
}

func TestCreateBill(t *testing.T) {
	s := newBillService(&recorder{})
	v, err := s.CreateBill(context.Background(), owner, dinner())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.State != core.BillOpen || len(v.Participants) != 2 {
		t.Fatalf("unexpected bill %+v", v)
	}
	for _, p := range v.Participants {
		if p.ID == "" || p.Paid {
			t.Fatalf("participants start unpaid with ids, got %+v", p)
		}
	}
	if !v.RemainingAmount.Equal(dec("60")) || !v.PaidAmount.IsZero() {
		t.Fatalf("unexpected amounts paid=%s remaining=%s", v.PaidAmount, v.RemainingAmount)
	}

	in := dinner()
	in.TotalAmount = dec("0")
	_, err = s.CreateBill(context.Background(), owner, in)
	wantKind(t, err, core.ErrInvalidAmount)
}

func TestMarkPaidSettlesOnce(t *testing.T) {
	rec := &recorder{}
	s := newBillService(rec)
	ctx := context.Background()
	b, _ := s.CreateBill(ctx, owner, dinner())

	v, err := s.MarkPaid(ctx, b.ID, owner, b.Participants[0].ID)
	if err != nil || v.Settled {
		t.Fatalf("first payment: %+v %v", v, err)
	}
	v, err = s.MarkPaid(ctx, b.ID, owner, b.Participants[1].ID)
	if err != nil || !v.Settled {
		t.Fatalf("last payment should settle: %+v %v", v, err)
	}
	if len(rec.events) != 1 || rec.events[0].Type != core.EventBillSettled || rec.events[0].Label != "Dinner" {
		t.Fatalf("unexpected events %+v", rec.events)
	}

	if _, err := s.MarkPaid(ctx, b.ID, owner, b.Participants[1].ID); err != nil {
		t.Fatalf("repeat payment: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("settlement is announced once, got %v", rec.types())
	}

	_, err = s.MarkPaid(ctx, b.ID, owner, "missing")
	wantKind(t, err, core.ErrNotFound)
}

func TestAddParticipantsAndUpdate(t *testing.T) {
	s := newBillService(nil)
	ctx := context.Background()
	b, _ := s.CreateBill(ctx, owner, BillInput{Name: "Trip", TotalAmount: dec("100"), Date: core.NewDate(2025, 3, 1)})

	v, err := s.AddParticipants(ctx, b.ID, owner, []core.Participant{{Name: "Cy", AmountOwed: dec("50"), Paid: true}})
	if err != nil || len(v.Participants) != 1 || v.Participants[0].Paid {
		t.Fatalf("unexpected add %+v %v", v, err)
	}

	in := BillInput{Name: "Road trip", Category: "Travel", TotalAmount: dec("1"), Date: core.NewDate(2025, 3, 2)}
	v, err = s.UpdateBill(ctx, b.ID, owner, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if v.Name != "Road trip" || !v.TotalAmount.Equal(dec("100")) || len(v.Participants) != 1 {
		t.Fatalf("update must keep total and participants: %+v", v)
	}

	sum, err := s.Summary(ctx, owner)
	if err != nil || sum.TotalBills != 1 || sum.PendingBills != 1 {
		t.Fatalf("unexpected summary %+v (%v)", sum, err)
	}

	wantKind(t, s.DeleteBill(ctx, b.ID, "other"), core.ErrNotFound)
	if err := s.DeleteBill(ctx, b.ID, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ := s.ListBills(ctx, owner)
	if len(list) != 0 {
		t.Fatalf("expected no bills, got %d", len(list))
	}
}
