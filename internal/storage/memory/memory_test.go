package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"finledger/internal/core"
	"finledger/internal/storage"
	"finledger/internal/storage/memory"

	"github.com/shopspring/decimal"
)

var _ storage.Store = (*memory.Store)(nil)

func TestExpensesAreOwnerScopedAndOrdered(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, e := range []core.Expense{
		{ID: "c", OwnerID: "u1", Category: "Travel", Date: core.NewDate(2025, 2, 1), CreatedAt: base},
		{ID: "a", OwnerID: "u1", Category: "Food & Dining", Date: core.NewDate(2025, 1, 5), CreatedAt: base.Add(time.Hour)},
		{ID: "b", OwnerID: "u1", Category: "Travel", Date: core.NewDate(2025, 1, 5), CreatedAt: base},
		{ID: "x", OwnerID: "u2", Category: "Other", Date: core.NewDate(2025, 1, 5), CreatedAt: base},
	} {
		e.Amount = decimal.NewFromInt(int64(i + 1))
		if err := s.SaveExpense(ctx, e); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	all, _ := s.ExpensesOf(ctx, "u1")
	got := ""
	for _, e := range all {
		got += e.ID
	}
	if got != "bac" {
		t.Fatalf("expected date then creation order bac, got %q", got)
	}

	jan, _ := s.ExpensesBetween(ctx, "u1", core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31))
	if len(jan) != 2 {
		t.Fatalf("expected 2 january expenses, got %d", len(jan))
	}

	cats, _ := s.CategoriesOf(ctx, "u1")
	if len(cats) != 2 || cats[0] != "Food & Dining" || cats[1] != "Travel" {
		t.Fatalf("unexpected categories %v", cats)
	}

	if _, err := s.ExpenseByID(ctx, "x", "u1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for foreign expense, got %v", err)
	}
}

func TestSplitBillIsCopiedOnSaveAndRead(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	b := core.SplitBill{
		ID: "b1", OwnerID: "u1",
		Participants: []core.Participant{{ID: "p1", Name: "A"}},
	}
	if err := s.SaveSplitBill(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}
	b.Participants[0].Paid = true

	got, _ := s.SplitBillByID(ctx, "b1", "u1")
	if got.Participants[0].Paid {
		t.Fatalf("caller mutation leaked into the store")
	}
	got.Participants[0].Name = "changed"

	again, _ := s.SplitBillByID(ctx, "b1", "u1")
	if again.Participants[0].Name != "A" {
		t.Fatalf("read copy mutation leaked into the store")
	}
}

func TestBudgetsFor(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	for _, b := range []core.Budget{
		{ID: "1", OwnerID: "u2", Month: 3, Year: 2025},
		{ID: "2", OwnerID: "u1", Month: 3, Year: 2025},
		{ID: "3", OwnerID: "u1", Month: 4, Year: 2025},
	} {
		_ = s.SaveBudget(ctx, b)
	}
	got, _ := s.BudgetsFor(ctx, 3, 2025)
	if len(got) != 2 || got[0].OwnerID != "u1" || got[1].OwnerID != "u2" {
		t.Fatalf("unexpected budgets %+v", got)
	}
}

func TestUserEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if err := s.CreateUser(ctx, core.User{ID: "u1", Email: "me@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateUser(ctx, core.User{ID: "u2", Email: "ME@example.com"}); !errors.Is(err, core.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
	if _, err := s.UserByEmail(ctx, "Me@Example.com"); err != nil {
		t.Fatalf("lookup is case-insensitive: %v", err)
	}
}

func TestUpdateUserChangesOnlyDisplayName(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if err := s.CreateUser(ctx, core.User{ID: "u1", Email: "me@example.com", DisplayName: "Me", PasswordHash: "hash"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpdateUser(ctx, core.User{ID: "u1", Email: "evil@example.com", DisplayName: "New"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.UserByID(ctx, "u1")
	if err != nil || got.DisplayName != "New" || got.Email != "me@example.com" || got.PasswordHash != "hash" {
		t.Fatalf("after update: %+v (err=%v)", got, err)
	}
	if err := s.UpdateUser(ctx, core.User{ID: "ghost"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
