package ledger

import (
	"context"
	"errors"
	"fmt"

	"finledger/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetEngine computes spend against a monthly limit.
type BudgetEngine struct {
	expenses ExpenseReader
	budgets  BudgetStore
	opts     options
}

func NewBudgetEngine(expenses ExpenseReader, budgets BudgetStore, opts ...Option) *BudgetEngine {
	return &BudgetEngine{expenses: expenses, budgets: budgets, opts: buildOptions(opts)}
}

// ResolveBudget returns the owner's budget for the month with its spend.
func (e *BudgetEngine) ResolveBudget(ctx context.Context, ownerID string, month, year int) (core.BudgetView, error) {
	period := core.Period{Year: year, Month: month}
	if err := period.Validate(); err != nil {
		return core.BudgetView{}, err
	}
	b, err := e.budgets.BudgetOf(ctx, ownerID, month, year)
	if err != nil {
		return core.BudgetView{}, fmt.Errorf("get budget %s: %w", period, err)
	}
	return e.enrich(ctx, b)
}

// ResolveCurrentBudget resolves the budget of the clock's current month.
func (e *BudgetEngine) ResolveCurrentBudget(ctx context.Context, ownerID string) (core.BudgetView, error) {
	p := core.PeriodOf(e.opts.now())
	return e.ResolveBudget(ctx, ownerID, p.Month, p.Year)
}

// UpsertBudget creates the budget for (owner, month, year) or replaces the
// limit of the existing one. Owner, month and year never change after
// creation.
func (e *BudgetEngine) UpsertBudget(ctx context.Context, ownerID string, month, year int, limit decimal.Decimal) (core.BudgetView, error) {
	now := e.opts.now().UTC()
	b, err := e.budgets.BudgetOf(ctx, ownerID, month, year)
	switch {
	case errors.Is(err, core.ErrNotFound):
		b = core.Budget{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Month:     month,
			Year:      year,
			CreatedAt: now,
		}
	case err != nil:
		return core.BudgetView{}, fmt.Errorf("get budget: %w", err)
	}
	b.MonthlyLimit = limit
	b.UpdatedAt = now
	if err := b.Validate(); err != nil {
		return core.BudgetView{}, err
	}
	if err := e.budgets.SaveBudget(ctx, b); err != nil {
		return core.BudgetView{}, fmt.Errorf("save budget: %w", err)
	}
	return e.enrich(ctx, b)
}

func (e *BudgetEngine) enrich(ctx context.Context, b core.Budget) (core.BudgetView, error) {
	p := b.Period()
	expenses, err := e.expenses.ExpensesBetween(ctx, b.OwnerID, p.First(), p.Last())
	if err != nil {
		return core.BudgetView{}, fmt.Errorf("list expenses for %s: %w", p, err)
	}
	return BudgetViewOf(b, sumAmounts(expenses)), nil
}

// BudgetViewOf derives remaining and percent used. Remaining goes negative
// on overspend.
func BudgetViewOf(b core.Budget, spent decimal.Decimal) core.BudgetView {
	return core.BudgetView{
		Budget:      b,
		Spent:       spent,
		Remaining:   core.Subtract(b.MonthlyLimit, spent),
		PercentUsed: core.PercentOf(spent, b.MonthlyLimit),
	}
}
