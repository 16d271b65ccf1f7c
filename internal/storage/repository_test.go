package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestUpsertStatement(t *testing.T) {
	cols := []string{"id", "name", "created_at", "updated_at"}
	cases := []struct {
		dialect Dialect
		want    string
	}{
		{DialectSQLite, "INSERT INTO t (id, name, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at"},
		{DialectMySQL, "INSERT INTO t (id, name, created_at, updated_at) VALUES (?, ?, ?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name), updated_at = VALUES(updated_at)"},
	}
	for _, tc := range cases {
		r := &SQLRepository{dialect: tc.dialect}
		if got := r.upsert("t", "id", cols); got != tc.want {
			t.Errorf("%s:\n got %s\nwant %s", tc.dialect, got, tc.want)
		}
	}
}

func TestExpenseRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	expenses := []core.Expense{
		{ID: "e1", OwnerID: "u1", Amount: decimal.RequireFromString("12.34"), Category: "Travel", Date: core.NewDate(2025, 3, 31), CreatedAt: now, UpdatedAt: now},
		{ID: "e2", OwnerID: "u1", Amount: decimal.RequireFromString("5"), Category: "Food & Dining", Date: core.NewDate(2025, 3, 1), Notes: "lunch", CreatedAt: now, UpdatedAt: now},
		{ID: "e3", OwnerID: "u1", Amount: decimal.RequireFromString("7"), Category: "Travel", Date: core.NewDate(2025, 4, 1), CreatedAt: now, UpdatedAt: now},
		{ID: "e4", OwnerID: "u2", Amount: decimal.RequireFromString("9"), Category: "Travel", Date: core.NewDate(2025, 3, 5), CreatedAt: now, UpdatedAt: now},
	}
	for _, e := range expenses {
		if err := repo.SaveExpense(ctx, e); err != nil {
			t.Fatalf("save %s: %v", e.ID, err)
		}
	}

	march, err := repo.ExpensesBetween(ctx, "u1", core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31))
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	if len(march) != 2 || march[0].ID != "e2" || march[1].ID != "e1" {
		t.Fatalf("unexpected march expenses %+v", march)
	}
	if !march[1].Amount.Equal(decimal.RequireFromString("12.34")) || march[0].Notes != "lunch" {
		t.Fatalf("fields not preserved: %+v", march)
	}
	if !march[0].CreatedAt.Equal(now) {
		t.Fatalf("created at not preserved: %s", march[0].CreatedAt)
	}

	travel, err := repo.ExpensesByCategory(ctx, "u1", "Travel")
	if err != nil || len(travel) != 2 {
		t.Fatalf("by category: %v (err=%v)", travel, err)
	}

	cats, err := repo.CategoriesOf(ctx, "u1")
	if err != nil || len(cats) != 2 || cats[0] != "Food & Dining" {
		t.Fatalf("categories: %v (err=%v)", cats, err)
	}

	e := expenses[0]
	e.Amount = decimal.RequireFromString("20")
	if err := repo.SaveExpense(ctx, e); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.ExpenseByID(ctx, "e1", "u1")
	if err != nil || !got.Amount.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("updated expense: %+v (err=%v)", got, err)
	}

	if _, err := repo.ExpenseByID(ctx, "e1", "u2"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign owner must not read expense, got %v", err)
	}
	if err := repo.DeleteExpense(ctx, core.Expense{ID: "e1", OwnerID: "u2"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign owner must not delete expense, got %v", err)
	}
	if err := repo.DeleteExpense(ctx, e); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestBudgetAndGoalRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	b := core.Budget{ID: "b1", OwnerID: "u1", Month: 2, Year: 2024, MonthlyLimit: decimal.RequireFromString("500"), CreatedAt: now, UpdatedAt: now}
	if err := repo.SaveBudget(ctx, b); err != nil {
		t.Fatalf("save budget: %v", err)
	}
	b.MonthlyLimit = decimal.RequireFromString("650.5")
	if err := repo.SaveBudget(ctx, b); err != nil {
		t.Fatalf("update budget: %v", err)
	}
	got, err := repo.BudgetOf(ctx, "u1", 2, 2024)
	if err != nil || !got.MonthlyLimit.Equal(decimal.RequireFromString("650.5")) {
		t.Fatalf("budget: %+v (err=%v)", got, err)
	}
	if _, err := repo.BudgetOf(ctx, "u1", 3, 2024); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	all, err := repo.BudgetsFor(ctx, 2, 2024)
	if err != nil || len(all) != 1 {
		t.Fatalf("budgets for: %v (err=%v)", all, err)
	}

	g := core.SavingsGoal{
		ID: "g1", OwnerID: "u1", Name: "Bike",
		TargetAmount: decimal.RequireFromString("300"), CurrentAmount: decimal.Zero,
		State: core.GoalActive, CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.SaveSavingsGoal(ctx, g); err != nil {
		t.Fatalf("save goal: %v", err)
	}
	g.CurrentAmount = decimal.RequireFromString("300")
	g.State = core.GoalCompleted
	g.TargetDate = core.NewDate(2025, 12, 31)
	if err := repo.SaveSavingsGoal(ctx, g); err != nil {
		t.Fatalf("update goal: %v", err)
	}
	goals, err := repo.SavingsGoalsOf(ctx, "u1")
	if err != nil || len(goals) != 1 {
		t.Fatalf("goals: %v (err=%v)", goals, err)
	}
	if !goals[0].Completed() || goals[0].TargetDate.String() != "2025-12-31" {
		t.Fatalf("goal state not preserved: %+v", goals[0])
	}
	if err := repo.DeleteSavingsGoal(ctx, g); err != nil {
		t.Fatalf("delete goal: %v", err)
	}
	if _, err := repo.SavingsGoalByID(ctx, "g1", "u1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected deleted goal to be gone, got %v", err)
	}
}

func TestSplitBillRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	b := core.SplitBill{
		ID: "s1", OwnerID: "u1", Name: "Dinner", TotalAmount: decimal.RequireFromString("90"),
		Date: core.NewDate(2025, 3, 3), State: core.BillOpen, CreatedAt: now, UpdatedAt: now,
		Participants: []core.Participant{
			{ID: "p1", Name: "A", AmountOwed: decimal.RequireFromString("30")},
			{ID: "p2", Name: "B", Email: "b@example.com", AmountOwed: decimal.RequireFromString("30"), Paid: true},
			{ID: "p3", Name: "C", AmountOwed: decimal.RequireFromString("30")},
		},
	}
	if err := repo.SaveSplitBill(ctx, b); err != nil {
		t.Fatalf("save bill: %v", err)
	}

	got, err := repo.SplitBillByID(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if len(got.Participants) != 3 || got.Participants[1].ID != "p2" || !got.Participants[1].Paid || got.Participants[0].Paid {
		t.Fatalf("participants not preserved: %+v", got.Participants)
	}

	got.Participants = append(got.Participants[:1], got.Participants[2:]...)
	if err := repo.SaveSplitBill(ctx, got); err != nil {
		t.Fatalf("resave bill: %v", err)
	}
	bills, err := repo.SplitBillsOf(ctx, "u1")
	if err != nil || len(bills) != 1 || len(bills[0].Participants) != 2 || bills[0].Participants[1].ID != "p3" {
		t.Fatalf("bills: %+v (err=%v)", bills, err)
	}

	if err := repo.DeleteSplitBill(ctx, core.SplitBill{ID: "s1", OwnerID: "u2"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign owner must not delete bill, got %v", err)
	}
	if err := repo.DeleteSplitBill(ctx, got); err != nil {
		t.Fatalf("delete bill: %v", err)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := core.User{ID: "u1", Email: "Ann@Example.com", DisplayName: "Ann", PasswordHash: "hash", CreatedAt: time.Now()}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.CreateUser(ctx, core.User{ID: "u2", Email: "ann@example.com", PasswordHash: "x", CreatedAt: time.Now()}); !errors.Is(err, core.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
	got, err := repo.UserByEmail(ctx, "ANN@example.com")
	if err != nil || got.ID != "u1" {
		t.Fatalf("by email: %+v (err=%v)", got, err)
	}
	if _, err := repo.UserByID(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := repo.UpdateUser(ctx, core.User{ID: "u1", Email: "other@example.com", DisplayName: "Ann Lee"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = repo.UserByID(ctx, "u1")
	if err != nil || got.DisplayName != "Ann Lee" || got.Email != "ann@example.com" || got.PasswordHash != "hash" {
		t.Fatalf("after update: %+v (err=%v)", got, err)
	}
	if err := repo.UpdateUser(ctx, core.User{ID: "nope", DisplayName: "x"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update missing user: expected not found, got %v", err)
	}
}
