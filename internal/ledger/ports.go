// Package ledger derives budget, savings, split-bill and dashboard views
// from stored records.
//
// Engines hold no state between calls and read everything fresh from the
// stores on every operation. Stores scope every query by owner and report
// missing records with an error wrapping core.ErrNotFound.
package ledger

import (
	"context"
	"time"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

// ExpenseReader lists an owner's expenses ordered by date, oldest first.
type ExpenseReader interface {
	ExpensesOf(ctx context.Context, ownerID string) ([]core.Expense, error)
	// ExpensesBetween includes both from and to.
	ExpensesBetween(ctx context.Context, ownerID string, from, to core.Date) ([]core.Expense, error)
	ExpensesByCategory(ctx context.Context, ownerID, category string) ([]core.Expense, error)
}

type BudgetStore interface {
	BudgetOf(ctx context.Context, ownerID string, month, year int) (core.Budget, error)
	SaveBudget(ctx context.Context, b core.Budget) error
}

type GoalStore interface {
	SavingsGoalsOf(ctx context.Context, ownerID string) ([]core.SavingsGoal, error)
	SavingsGoalByID(ctx context.Context, id, ownerID string) (core.SavingsGoal, error)
	SaveSavingsGoal(ctx context.Context, g core.SavingsGoal) error
	DeleteSavingsGoal(ctx context.Context, g core.SavingsGoal) error
}

type BillStore interface {
	SplitBillsOf(ctx context.Context, ownerID string) ([]core.SplitBill, error)
	SplitBillByID(ctx context.Context, id, ownerID string) (core.SplitBill, error)
	SaveSplitBill(ctx context.Context, b core.SplitBill) error
	DeleteSplitBill(ctx context.Context, b core.SplitBill) error
}

// Clock returns the current time. Engines use it to find the current month.
type Clock func() time.Time

type options struct {
	now Clock
}

// Option configures an engine.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.now = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func sumAmounts(expenses []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = core.Add(total, e.Amount)
	}
	return total
}
