package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultTrendMonths is used when a caller does not say how far back to go.
const DefaultTrendMonths = 6

// MaxTrendMonths bounds how far back SpendingTrends reaches.
const MaxTrendMonths = 120

// Dashboard merges the per-domain engines with raw expense history.
type Dashboard struct {
	expenses ExpenseReader
	budgets  *BudgetEngine
	savings  *SavingsEngine
	bills    *SplitBillEngine
	opts     options
}

func NewDashboard(expenses ExpenseReader, budgets *BudgetEngine, savings *SavingsEngine, bills *SplitBillEngine, opts ...Option) *Dashboard {
	return &Dashboard{
		expenses: expenses,
		budgets:  budgets,
		savings:  savings,
		bills:    bills,
		opts:     buildOptions(opts),
	}
}

func (d *Dashboard) currentPeriod() core.Period {
	return core.PeriodOf(d.opts.now())
}

// Stats collects the headline numbers. The reads are independent and run
// concurrently; the first failure cancels the rest.
func (d *Dashboard) Stats(ctx context.Context, ownerID string) (core.DashboardStats, error) {
	period := d.currentPeriod()

	var (
		all       []core.Expense
		month     []core.Expense
		budget    core.BudgetView
		hasBudget bool
		savings   core.SavingsProgress
		bills     core.SplitBillSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = d.expenses.ExpensesOf(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		month, err = d.expenses.ExpensesBetween(gctx, ownerID, period.First(), period.Last())
		if err != nil {
			return fmt.Errorf("list expenses for %s: %w", period, err)
		}
		return nil
	})
	g.Go(func() error {
		v, err := d.budgets.ResolveBudget(gctx, ownerID, period.Month, period.Year)
		switch {
		case errors.Is(err, core.ErrNotFound):
			return nil
		case err != nil:
			return err
		}
		budget, hasBudget = v, true
		return nil
	})
	g.Go(func() error {
		var err error
		savings, err = d.savings.ProgressSummary(gctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		bills, err = d.bills.Summary(gctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.DashboardStats{}, err
	}

	stats := core.DashboardStats{
		TotalExpenses:        sumAmounts(all),
		TotalSavings:         savings.TotalSaved,
		CurrentMonthExpenses: sumAmounts(month),
		BudgetLimit:          decimal.Zero,
		BudgetRemaining:      decimal.Zero,
		BudgetPercentUsed:    decimal.Zero,
		ActiveGoals:          savings.ActiveGoals,
		CompletedGoals:       savings.CompletedGoals,
		PendingSplitBills:    bills.PendingBills,
	}
	if hasBudget {
		v := BudgetViewOf(budget.Budget, stats.CurrentMonthExpenses)
		stats.BudgetLimit = v.MonthlyLimit
		stats.BudgetRemaining = v.Remaining
		stats.BudgetPercentUsed = v.PercentUsed
	}
	return stats, nil
}

// SpendingBreakdown groups the current month's expenses by category, largest
// first. Equal amounts keep the order in which their category first appeared.
func (d *Dashboard) SpendingBreakdown(ctx context.Context, ownerID string) ([]core.CategoryBreakdown, error) {
	period := d.currentPeriod()
	expenses, err := d.expenses.ExpensesBetween(ctx, ownerID, period.First(), period.Last())
	if err != nil {
		return nil, fmt.Errorf("list expenses for %s: %w", period, err)
	}
	groups := groupByCategory(expenses)
	total := sumAmounts(expenses)
	for i := range groups {
		groups[i].Percentage = core.PercentOf(groups[i].Amount, total)
	}
	slices.SortStableFunc(groups, func(a, b core.CategoryBreakdown) int {
		return b.Amount.Cmp(a.Amount)
	})
	return groups, nil
}

// SpendingTrends returns monthsBack months ending with the current one,
// oldest first. Months without expenses report zero.
func (d *Dashboard) SpendingTrends(ctx context.Context, ownerID string, monthsBack int) ([]core.MonthlyTrend, error) {
	if monthsBack < 1 || monthsBack > MaxTrendMonths {
		return nil, core.ErrInvalidMonthsBack
	}
	current := d.currentPeriod()
	oldest := current.Shift(-(monthsBack - 1))

	expenses, err := d.expenses.ExpensesBetween(ctx, ownerID, oldest.First(), current.Last())
	if err != nil {
		return nil, fmt.Errorf("list expenses since %s: %w", oldest, err)
	}
	byPeriod := make(map[core.Period]decimal.Decimal, monthsBack)
	for _, e := range expenses {
		p := core.PeriodOf(e.Date.Time)
		byPeriod[p] = core.Add(byPeriod[p], e.Amount)
	}

	trends := make([]core.MonthlyTrend, 0, monthsBack)
	for i := 0; i < monthsBack; i++ {
		p := oldest.Shift(i)
		amount, ok := byPeriod[p]
		if !ok {
			amount = decimal.Zero
		}
		trends = append(trends, core.MonthlyTrend{
			Month:     p.Month,
			Year:      p.Year,
			MonthName: p.ShortName(),
			Amount:    amount,
		})
	}
	return trends, nil
}

// MonthlyExpenseStats summarises one month. A nil month or year selects the
// current month.
func (d *Dashboard) MonthlyExpenseStats(ctx context.Context, ownerID string, month, year *int) (core.MonthlyExpenseStats, error) {
	period := d.currentPeriod()
	if month != nil && year != nil {
		period = core.Period{Year: *year, Month: *month}
		if period.Month < 1 || period.Month > 12 {
			return core.MonthlyExpenseStats{}, core.ErrInvalidMonth
		}
	}
	expenses, err := d.expenses.ExpensesBetween(ctx, ownerID, period.First(), period.Last())
	if err != nil {
		return core.MonthlyExpenseStats{}, fmt.Errorf("list expenses for %s: %w", period, err)
	}

	total := sumAmounts(expenses)
	stats := core.MonthlyExpenseStats{
		TotalAmount:       total,
		TotalTransactions: len(expenses),
		AverageAmount:     core.Average(total, len(expenses)),
		Month:             period.Month,
		Year:              period.Year,
	}
	var top *core.CategoryBreakdown
	groups := groupByCategory(expenses)
	for i := range groups {
		if top == nil || groups[i].Amount.GreaterThan(top.Amount) {
			top = &groups[i]
		}
	}
	if top != nil {
		category, amount := top.Category, top.Amount
		stats.TopCategory = &category
		stats.TopCategoryAmount = &amount
	}
	return stats, nil
}

// groupByCategory sums amounts per category in first-seen order.
func groupByCategory(expenses []core.Expense) []core.CategoryBreakdown {
	index := make(map[string]int)
	groups := make([]core.CategoryBreakdown, 0)
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(groups)
			index[e.Category] = i
			groups = append(groups, core.CategoryBreakdown{Category: e.Category, Amount: decimal.Zero})
		}
		groups[i].Amount = core.Add(groups[i].Amount, e.Amount)
		groups[i].Count++
	}
	return groups
}
