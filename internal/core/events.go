package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventExpenseCreated  EventType = "expense.created"
	EventExpenseUpdated  EventType = "expense.updated"
	EventGoalCompleted   EventType = "goal.completed"
	EventBillSettled     EventType = "bill.settled"
	EventBudgetThreshold EventType = "budget.threshold"
	EventUserRegistered  EventType = "user.registered"
)

// LedgerEvent is published after a state change other processes care about.
type LedgerEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	OwnerID   string          `json:"owner_id"`
	EntityID  string          `json:"entity_id"`
	Amount    decimal.Decimal `json:"amount"`
	Percent   decimal.Decimal `json:"percent"`
	Label     string          `json:"label,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewLedgerEvent stamps an event with a fresh id and time.
func NewLedgerEvent(t EventType, ownerID, entityID string, amount decimal.Decimal, now time.Time) LedgerEvent {
	return LedgerEvent{
		ID:        uuid.NewString(),
		Type:      t,
		OwnerID:   ownerID,
		EntityID:  entityID,
		Amount:    amount,
		Timestamp: now.UTC(),
	}
}

func (e LedgerEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeLedgerEvent parses an encoded event and rejects unknown types.
func DecodeLedgerEvent(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, fmt.Errorf("%w: decode event: %v", ErrInvalidInput, err)
	}
	if !e.Type.IsValid() {
		return LedgerEvent{}, fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, e.Type)
	}
	return e, nil
}

func (t EventType) IsValid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseUpdated, EventGoalCompleted,
		EventBillSettled, EventBudgetThreshold, EventUserRegistered:
		return true
	}
	return false
}
