package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxDescriptionLen = 500
	MaxNameLen        = 120
)

// DefaultCategories are always offered to a user, merged with the ones they
// actually used.
var DefaultCategories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Education",
	"Travel",
	"Other",
}

type (
	Expense struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"-"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		Notes       string          `json:"notes,omitempty"`
		Attachment  string          `json:"attachment,omitempty"` // stored file name
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	Budget struct {
		ID           string          `json:"id"`
		OwnerID      string          `json:"-"`
		Month        int             `json:"month"`
		Year         int             `json:"year"`
		MonthlyLimit decimal.Decimal `json:"monthlyLimit"`
		CreatedAt    time.Time       `json:"createdAt"`
		UpdatedAt    time.Time       `json:"updatedAt"`
	}

	SavingsGoal struct {
		ID            string          `json:"id"`
		OwnerID       string          `json:"-"`
		Name          string          `json:"name"`
		Description   string          `json:"description,omitempty"`
		TargetAmount  decimal.Decimal `json:"targetAmount"`
		CurrentAmount decimal.Decimal `json:"currentAmount"`
		TargetDate    Date            `json:"targetDate"`
		Icon          string          `json:"icon,omitempty"`
		Color         string          `json:"color,omitempty"`
		State         GoalState       `json:"state"`
		CreatedAt     time.Time       `json:"createdAt"`
		UpdatedAt     time.Time       `json:"updatedAt"`
	}

	SplitBill struct {
		ID           string          `json:"id"`
		OwnerID      string          `json:"-"`
		Name         string          `json:"name"`
		Description  string          `json:"description,omitempty"`
		Category     string          `json:"category,omitempty"`
		TotalAmount  decimal.Decimal `json:"totalAmount"`
		Date         Date            `json:"date"`
		Participants []Participant   `json:"participants"`
		State        BillState       `json:"state"`
		CreatedAt    time.Time       `json:"createdAt"`
		UpdatedAt    time.Time       `json:"updatedAt"`
	}

	Participant struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Email      string          `json:"email,omitempty"`
		AmountOwed decimal.Decimal `json:"amountOwed"`
		Paid       bool            `json:"paid"`
	}

	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		DisplayName  string    `json:"displayName"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

func (e Expense) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := RequirePositive(e.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(e.Description) > MaxDescriptionLen || len(e.Notes) > MaxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

// Period returns the budget's month as a Period.
func (b Budget) Period() Period {
	return Period{Year: b.Year, Month: b.Month}
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := b.Period().Validate(); err != nil {
		return err
	}
	return RequirePositive(b.MonthlyLimit)
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(g.Name) == "" || len(g.Name) > MaxNameLen {
		return ErrEmptyName
	}
	if len(g.Description) > MaxDescriptionLen {
		return ErrDescriptionLong
	}
	if err := RequirePositive(g.TargetAmount); err != nil {
		return err
	}
	if g.CurrentAmount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Completed reports whether the goal reached its target.
func (g SavingsGoal) Completed() bool {
	return g.State == GoalCompleted
}

func (b SplitBill) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(b.Name) == "" || len(b.Name) > MaxNameLen {
		return ErrEmptyName
	}
	if len(b.Description) > MaxDescriptionLen {
		return ErrDescriptionLong
	}
	if err := RequirePositive(b.TotalAmount); err != nil {
		return err
	}
	for _, p := range b.Participants {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Settled reports whether the bill reached its terminal state.
func (b SplitBill) Settled() bool {
	return b.State == BillSettled
}

// Participant returns the index of the participant with the given id, or -1.
func (b SplitBill) Participant(id string) int {
	for i, p := range b.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (p Participant) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.AmountOwed.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}
