package core

import "github.com/shopspring/decimal"

// Views returned by the ledger engines. Every amount in them is derived on
// read and never persisted.

type BudgetView struct {
	Budget
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percentUsed"`
}

type SavingsGoalView struct {
	SavingsGoal
	Progress  decimal.Decimal `json:"progress"`
	Completed bool            `json:"completed"`
}

type SavingsProgress struct {
	TotalTarget     decimal.Decimal `json:"totalTarget"`
	TotalSaved      decimal.Decimal `json:"totalSaved"`
	OverallProgress decimal.Decimal `json:"overallProgress"`
	TotalGoals      int             `json:"totalGoals"`
	ActiveGoals     int             `json:"activeGoals"`
	CompletedGoals  int             `json:"completedGoals"`
}

type SplitBillView struct {
	SplitBill
	PaidAmount      decimal.Decimal `json:"paidAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	Settled         bool            `json:"settled"`
}

type SplitBillSummary struct {
	TotalBills   int             `json:"totalBills"`
	SettledBills int             `json:"settledBills"`
	PendingBills int             `json:"pendingBills"`
	TotalOwed    decimal.Decimal `json:"totalOwed"`
	TotalPaid    decimal.Decimal `json:"totalPaid"`
	TotalPending decimal.Decimal `json:"totalPending"`
}

type DashboardStats struct {
	TotalExpenses        decimal.Decimal `json:"totalExpenses"`
	TotalSavings         decimal.Decimal `json:"totalSavings"`
	CurrentMonthExpenses decimal.Decimal `json:"currentMonthExpenses"`
	BudgetLimit          decimal.Decimal `json:"budgetLimit"`
	BudgetRemaining      decimal.Decimal `json:"budgetRemaining"`
	BudgetPercentUsed    decimal.Decimal `json:"budgetPercentUsed"`
	ActiveGoals          int             `json:"activeGoals"`
	CompletedGoals       int             `json:"completedGoals"`
	PendingSplitBills    int             `json:"pendingSplitBills"`
}

type CategoryBreakdown struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

type MonthlyTrend struct {
	Month     int             `json:"month"`
	Year      int             `json:"year"`
	MonthName string          `json:"monthName"`
	Amount    decimal.Decimal `json:"amount"`
}

type MonthlyExpenseStats struct {
	TotalAmount       decimal.Decimal  `json:"totalAmount"`
	TotalTransactions int              `json:"totalTransactions"`
	AverageAmount     decimal.Decimal  `json:"averageAmount"`
	TopCategory       *string          `json:"topCategory"`
	TopCategoryAmount *decimal.Decimal `json:"topCategoryAmount"`
	Month             int              `json:"month"`
	Year              int              `json:"year"`
}
