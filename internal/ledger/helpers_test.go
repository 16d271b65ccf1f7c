package ledger

import (
	"context"
	"testing"
	"time"

	"finledger/internal/core"
	"finledger/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const owner = "owner-1"

// fixedNow is mid March 2025.
var fixedNow = time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)

func clock() Option {
	return WithClock(func() time.Time { return fixedNow })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func addExpense(t *testing.T, s *memory.Store, ownerID, amount, category string, date core.Date) {
	t.Helper()
	err := s.SaveExpense(context.Background(), core.Expense{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Amount:    dec(amount),
		Category:  category,
		Date:      date,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("save expense: %v", err)
	}
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: got %s, want %s", name, got, want)
	}
}
