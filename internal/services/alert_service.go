package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/core"
	"finledger/internal/ledger"

	"github.com/shopspring/decimal"
)

// DefaultAlertThreshold is the percent of a monthly limit that triggers a
// budget.threshold event.
const DefaultAlertThreshold = 80

// BudgetLister finds every budget set for a month, across owners.
type BudgetLister interface {
	BudgetsFor(ctx context.Context, month, year int) ([]core.Budget, error)
}

// AlertService checks this month's budgets and warns owners nearing their
// limit.
type AlertService struct {
	budgets   BudgetLister
	engine    *ledger.BudgetEngine
	events    EventPublisher
	threshold decimal.Decimal
	now       func() time.Time
}

func NewAlertService(budgets BudgetLister, engine *ledger.BudgetEngine, events EventPublisher, thresholdPercent int) *AlertService {
	if events == nil {
		events = NopPublisher{}
	}
	if thresholdPercent <= 0 {
		thresholdPercent = DefaultAlertThreshold
	}
	return &AlertService{
		budgets:   budgets,
		engine:    engine,
		events:    events,
		threshold: decimal.NewFromInt(int64(thresholdPercent)),
		now:       time.Now,
	}
}

// CheckBudgets publishes one budget.threshold event per owner whose current
// month spend is at or above the threshold and returns how many were sent. A
// budget that fails to resolve is logged and skipped.
func (s *AlertService) CheckBudgets(ctx context.Context) (int, error) {
	now := s.now()
	period := core.PeriodOf(now)
	budgets, err := s.budgets.BudgetsFor(ctx, period.Month, period.Year)
	if err != nil {
		return 0, fmt.Errorf("list budgets for %s: %w", period, err)
	}

	sent := 0
	for _, b := range budgets {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		view, err := s.engine.ResolveBudget(ctx, b.OwnerID, b.Month, b.Year)
		if err != nil {
			slog.WarnContext(ctx, "Failed to resolve budget",
				"owner_id", b.OwnerID, "period", period.String(), "error", err)
			continue
		}
		if view.PercentUsed.LessThan(s.threshold) {
			continue
		}

		event := core.NewLedgerEvent(core.EventBudgetThreshold, b.OwnerID, b.ID, view.Spent, now)
		event.Percent = view.PercentUsed
		event.Label = period.String()
		publish(ctx, s.events, event)
		sent++
	}

	slog.InfoContext(ctx, "Budget check completed",
		"period", period.String(), "budgets", len(budgets), "alerts", sent)
	return sent, nil
}
