// Package memory keeps every record in process memory. It backs local runs
// and tests; nothing survives a restart.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"finledger/internal/core"
)

type budgetKey struct {
	owner       string
	month, year int
}

type Store struct {
	mu       sync.RWMutex
	expenses map[string]core.Expense
	budgets  map[budgetKey]core.Budget
	goals    map[string]core.SavingsGoal
	bills    map[string]core.SplitBill
	users    map[string]core.User
}

func New() *Store {
	return &Store{
		expenses: make(map[string]core.Expense),
		budgets:  make(map[budgetKey]core.Budget),
		goals:    make(map[string]core.SavingsGoal),
		bills:    make(map[string]core.SplitBill),
		users:    make(map[string]core.User),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Expenses

func (s *Store) ExpensesOf(_ context.Context, ownerID string) ([]core.Expense, error) {
	return s.filterExpenses(func(e core.Expense) bool { return e.OwnerID == ownerID }), nil
}

func (s *Store) ExpensesBetween(_ context.Context, ownerID string, from, to core.Date) ([]core.Expense, error) {
	return s.filterExpenses(func(e core.Expense) bool {
		return e.OwnerID == ownerID && e.Date.Within(from, to)
	}), nil
}

func (s *Store) ExpensesByCategory(_ context.Context, ownerID, category string) ([]core.Expense, error) {
	return s.filterExpenses(func(e core.Expense) bool {
		return e.OwnerID == ownerID && e.Category == category
	}), nil
}

func (s *Store) filterExpenses(keep func(core.Expense) bool) []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if keep(e) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Expense) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) ExpenseByID(_ context.Context, id, ownerID string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok || e.OwnerID != ownerID {
		return core.Expense{}, core.NotFoundError("expense", id)
	}
	return e, nil
}

func (s *Store) SaveExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.expenses[e.ID]; !ok || cur.OwnerID != e.OwnerID {
		return core.NotFoundError("expense", e.ID)
	}
	delete(s.expenses, e.ID)
	return nil
}

func (s *Store) CategoriesOf(_ context.Context, ownerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range s.expenses {
		if e.OwnerID != ownerID {
			continue
		}
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	slices.Sort(out)
	return out, nil
}

// Budgets

func (s *Store) BudgetOf(_ context.Context, ownerID string, month, year int) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[budgetKey{ownerID, month, year}]
	if !ok {
		return core.Budget{}, core.NotFoundError("budget", core.Period{Year: year, Month: month}.String())
	}
	return b, nil
}

func (s *Store) SaveBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[budgetKey{b.OwnerID, b.Month, b.Year}] = b
	return nil
}

func (s *Store) BudgetsFor(_ context.Context, month, year int) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Budget, 0)
	for k, b := range s.budgets {
		if k.month == month && k.year == year {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b core.Budget) int { return strings.Compare(a.OwnerID, b.OwnerID) })
	return out, nil
}

// Savings goals

func (s *Store) SavingsGoalsOf(_ context.Context, ownerID string) ([]core.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SavingsGoal, 0)
	for _, g := range s.goals {
		if g.OwnerID == ownerID {
			out = append(out, g)
		}
	}
	slices.SortStableFunc(out, func(a, b core.SavingsGoal) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) SavingsGoalByID(_ context.Context, id, ownerID string) (core.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok || g.OwnerID != ownerID {
		return core.SavingsGoal{}, core.NotFoundError("savings goal", id)
	}
	return g, nil
}

func (s *Store) SaveSavingsGoal(_ context.Context, g core.SavingsGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = g
	return nil
}

func (s *Store) DeleteSavingsGoal(_ context.Context, g core.SavingsGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.goals[g.ID]; !ok || cur.OwnerID != g.OwnerID {
		return core.NotFoundError("savings goal", g.ID)
	}
	delete(s.goals, g.ID)
	return nil
}

// Split bills. Participants are copied on the way in and out so callers
// never share a backing array with the store.

func (s *Store) SplitBillsOf(_ context.Context, ownerID string) ([]core.SplitBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SplitBill, 0)
	for _, b := range s.bills {
		if b.OwnerID == ownerID {
			out = append(out, cloneBill(b))
		}
	}
	slices.SortStableFunc(out, func(a, b core.SplitBill) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) SplitBillByID(_ context.Context, id, ownerID string) (core.SplitBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bills[id]
	if !ok || b.OwnerID != ownerID {
		return core.SplitBill{}, core.NotFoundError("split bill", id)
	}
	return cloneBill(b), nil
}

func (s *Store) SaveSplitBill(_ context.Context, b core.SplitBill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills[b.ID] = cloneBill(b)
	return nil
}

func (s *Store) DeleteSplitBill(_ context.Context, b core.SplitBill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.bills[b.ID]; !ok || cur.OwnerID != b.OwnerID {
		return core.NotFoundError("split bill", b.ID)
	}
	delete(s.bills, b.ID)
	return nil
}

func cloneBill(b core.SplitBill) core.SplitBill {
	b.Participants = slices.Clone(b.Participants)
	return b
}

// Users

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == email {
			return core.ErrEmailTaken
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			return u, nil
		}
	}
	return core.User{}, core.NotFoundError("user", email)
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.NotFoundError("user", id)
	}
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return core.NotFoundError("user", u.ID)
	}
	existing.DisplayName = u.DisplayName
	s.users[u.ID] = existing
	return nil
}
