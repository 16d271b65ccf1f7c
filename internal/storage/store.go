package storage

import (
	"context"

	"finledger/internal/core"
	"finledger/internal/ledger"
)

// Store is the full persistence surface of the application. Every read is
// scoped by owner; missing records are reported with core.ErrNotFound.
type Store interface {
	ledger.ExpenseReader
	ledger.BudgetStore
	ledger.GoalStore
	ledger.BillStore

	ExpenseByID(ctx context.Context, id, ownerID string) (core.Expense, error)
	SaveExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, e core.Expense) error
	// CategoriesOf returns the distinct categories the owner has used.
	CategoriesOf(ctx context.Context, ownerID string) ([]string, error)

	// BudgetsFor lists every owner's budget for one month.
	BudgetsFor(ctx context.Context, month, year int) ([]core.Budget, error)

	CreateUser(ctx context.Context, u core.User) error
	UserByEmail(ctx context.Context, email string) (core.User, error)
	UserByID(ctx context.Context, id string) (core.User, error)
	// UpdateUser persists the display name of an existing user.
	UpdateUser(ctx context.Context, u core.User) error

	Ping(ctx context.Context) error
	Close() error
}
