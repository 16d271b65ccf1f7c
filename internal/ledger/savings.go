package ledger

import (
	"context"
	"fmt"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

var maxProgress = decimal.NewFromInt(100)

// SavingsEngine applies deposits and tracks goal completion.
type SavingsEngine struct {
	goals GoalStore
	opts  options
}

func NewSavingsEngine(goals GoalStore, opts ...Option) *SavingsEngine {
	return &SavingsEngine{goals: goals, opts: buildOptions(opts)}
}

// Deposit adds amount to an active goal and completes it when the target is
// reached. A successful deposit into a goal that comes back completed is the
// one that completed it.
func (e *SavingsEngine) Deposit(ctx context.Context, goalID, ownerID string, amount decimal.Decimal) (core.SavingsGoalView, error) {
	if err := core.RequirePositive(amount); err != nil {
		return core.SavingsGoalView{}, err
	}
	g, err := e.goals.SavingsGoalByID(ctx, goalID, ownerID)
	if err != nil {
		return core.SavingsGoalView{}, fmt.Errorf("get goal: %w", err)
	}
	if g.Completed() {
		return core.SavingsGoalView{}, core.ErrGoalCompleted
	}

	g.CurrentAmount = core.Add(g.CurrentAmount, amount)
	g.State = g.State.AfterDeposit(g.CurrentAmount, g.TargetAmount)
	g.UpdatedAt = e.opts.now().UTC()

	if err := e.goals.SaveSavingsGoal(ctx, g); err != nil {
		return core.SavingsGoalView{}, fmt.Errorf("save goal: %w", err)
	}
	return GoalViewOf(g), nil
}

// ProgressSummary aggregates every goal of the owner.
func (e *SavingsEngine) ProgressSummary(ctx context.Context, ownerID string) (core.SavingsProgress, error) {
	goals, err := e.goals.SavingsGoalsOf(ctx, ownerID)
	if err != nil {
		return core.SavingsProgress{}, fmt.Errorf("list goals: %w", err)
	}
	return ProgressOf(goals), nil
}

// ProgressOf sums targets and savings across goals.
func ProgressOf(goals []core.SavingsGoal) core.SavingsProgress {
	s := core.SavingsProgress{
		TotalTarget: decimal.Zero,
		TotalSaved:  decimal.Zero,
		TotalGoals:  len(goals),
	}
	for _, g := range goals {
		s.TotalTarget = core.Add(s.TotalTarget, g.TargetAmount)
		s.TotalSaved = core.Add(s.TotalSaved, g.CurrentAmount)
		if g.Completed() {
			s.CompletedGoals++
		} else {
			s.ActiveGoals++
		}
	}
	s.OverallProgress = core.PercentOf(s.TotalSaved, s.TotalTarget)
	return s
}

// GoalViewOf derives progress. An overshooting deposit reports 100.
func GoalViewOf(g core.SavingsGoal) core.SavingsGoalView {
	progress := core.PercentOf(g.CurrentAmount, g.TargetAmount)
	if progress.GreaterThan(maxProgress) {
		progress = maxProgress
	}
	return core.SavingsGoalView{
		SavingsGoal: g,
		Progress:    progress,
		Completed:   g.Completed(),
	}
}
