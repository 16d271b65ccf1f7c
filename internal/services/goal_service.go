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

// GoalInput carries the editable fields of a savings goal.
type GoalInput struct {
	Name         string
	Description  string
	TargetAmount decimal.Decimal
	TargetDate   core.Date
	Icon         string
	Color        string
}

// GoalService manages savings goals. Deposits go through the savings engine;
// the call that completes a goal publishes goal.completed.
type GoalService struct {
	goals  ledger.GoalStore
	engine *ledger.SavingsEngine
	events EventPublisher
	now    func() time.Time
}

func NewGoalService(goals ledger.GoalStore, engine *ledger.SavingsEngine, events EventPublisher) *GoalService {
	if events == nil {
		events = NopPublisher{}
	}
	return &GoalService{goals: goals, engine: engine, events: events, now: time.Now}
}

// CreateGoal starts an active goal with nothing saved.
func (s *GoalService) CreateGoal(ctx context.Context, ownerID string, in GoalInput) (core.SavingsGoalView, error) {
	now := s.now().UTC()
	g := core.SavingsGoal{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		CurrentAmount: decimal.Zero,
		State:         core.GoalActive,
		CreatedAt:     now,
	}
	in.apply(&g, now)
	if err := g.Validate(); err != nil {
		return core.SavingsGoalView{}, err
	}
	if err := s.goals.SaveSavingsGoal(ctx, g); err != nil {
		return core.SavingsGoalView{}, fmt.Errorf("save goal: %w", err)
	}
	return ledger.GoalViewOf(g), nil
}

func (s *GoalService) GetGoal(ctx context.Context, id, ownerID string) (core.SavingsGoalView, error) {
	g, err := s.goals.SavingsGoalByID(ctx, id, ownerID)
	if err != nil {
		return core.SavingsGoalView{}, err
	}
	return ledger.GoalViewOf(g), nil
}

func (s *GoalService) ListGoals(ctx context.Context, ownerID string) ([]core.SavingsGoalView, error) {
	goals, err := s.goals.SavingsGoalsOf(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	views := make([]core.SavingsGoalView, 0, len(goals))
	for _, g := range goals {
		views = append(views, ledger.GoalViewOf(g))
	}
	return views, nil
}

// UpdateGoal replaces the editable fields. Lowering the target below the
// saved amount completes the goal; raising it never reopens one.
func (s *GoalService) UpdateGoal(ctx context.Context, id, ownerID string, in GoalInput) (core.SavingsGoalView, error) {
	g, err := s.goals.SavingsGoalByID(ctx, id, ownerID)
	if err != nil {
		return core.SavingsGoalView{}, err
	}
	was := g.State
	now := s.now().UTC()
	in.apply(&g, now)
	if err := g.Validate(); err != nil {
		return core.SavingsGoalView{}, err
	}
	g.State = g.State.AfterDeposit(g.CurrentAmount, g.TargetAmount)
	if err := s.goals.SaveSavingsGoal(ctx, g); err != nil {
		return core.SavingsGoalView{}, fmt.Errorf("save goal: %w", err)
	}
	if was != core.GoalCompleted && g.Completed() {
		s.announceCompleted(ctx, g, now)
	}
	return ledger.GoalViewOf(g), nil
}

func (s *GoalService) DeleteGoal(ctx context.Context, id, ownerID string) error {
	g, err := s.goals.SavingsGoalByID(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := s.goals.DeleteSavingsGoal(ctx, g); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// Deposit adds the amount as given, without rounding. The engine rejects
// deposits into completed goals, so a completed result means this deposit
// reached the target.
func (s *GoalService) Deposit(ctx context.Context, id, ownerID string, amount decimal.Decimal) (core.SavingsGoalView, error) {
	view, err := s.engine.Deposit(ctx, id, ownerID, amount)
	if err != nil {
		return core.SavingsGoalView{}, err
	}
	if view.Completed {
		s.announceCompleted(ctx, view.SavingsGoal, s.now())
	}
	return view, nil
}

func (s *GoalService) Progress(ctx context.Context, ownerID string) (core.SavingsProgress, error) {
	return s.engine.ProgressSummary(ctx, ownerID)
}

func (s *GoalService) announceCompleted(ctx context.Context, g core.SavingsGoal, now time.Time) {
	event := core.NewLedgerEvent(core.EventGoalCompleted, g.OwnerID, g.ID, g.CurrentAmount, now)
	event.Label = g.Name
	publish(ctx, s.events, event)
}

func (in GoalInput) apply(g *core.SavingsGoal, now time.Time) {
	g.Name = strings.TrimSpace(in.Name)
	g.Description = strings.TrimSpace(in.Description)
	g.TargetAmount = core.Round2(in.TargetAmount)
	g.TargetDate = in.TargetDate
	g.Icon = in.Icon
	g.Color = in.Color
	g.UpdatedAt = now
}
