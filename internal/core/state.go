package core

import "github.com/shopspring/decimal"

// GoalState is the lifecycle of a savings goal. Active moves to Completed
// once and never back.
type GoalState string

const (
	GoalActive    GoalState = "active"
	GoalCompleted GoalState = "completed"
)

// AfterDeposit returns the state that follows a deposit bringing the goal to
// current. A completed goal stays completed.
func (s GoalState) AfterDeposit(current, target decimal.Decimal) GoalState {
	if s == GoalCompleted || current.GreaterThanOrEqual(target) {
		return GoalCompleted
	}
	return GoalActive
}

func (s GoalState) IsValid() bool {
	return s == GoalActive || s == GoalCompleted
}

// BillState is the settlement lifecycle of a split bill, derived from its
// participants. Open moves to Settled once and never back.
type BillState string

const (
	BillOpen    BillState = "open"
	BillSettled BillState = "settled"
)

// AfterPayment returns the state that follows marking a participant paid.
func (s BillState) AfterPayment(participants []Participant) BillState {
	if s == BillSettled || AllPaid(participants) {
		return BillSettled
	}
	return BillOpen
}

func (s BillState) IsValid() bool {
	return s == BillOpen || s == BillSettled
}

// AllPaid reports whether every participant has paid. An empty list is not
// considered paid.
func AllPaid(participants []Participant) bool {
	if len(participants) == 0 {
		return false
	}
	for _, p := range participants {
		if !p.Paid {
			return false
		}
	}
	return true
}
