package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the ledger wraps one of these so
// callers can branch with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
)

var (
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	ErrNegativeAmount    = fmt.Errorf("%w: amount cannot be negative", ErrInvalidInput)
	ErrInvalidMonth      = fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidInput)
	ErrInvalidYear       = fmt.Errorf("%w: year must be %d or later", ErrInvalidInput, MinYear)
	ErrInvalidDate       = fmt.Errorf("%w: date cannot be zero", ErrInvalidInput)
	ErrInvalidRange      = fmt.Errorf("%w: start date must not be after end date", ErrInvalidInput)
	ErrEmptyName         = fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	ErrEmptyCategory     = fmt.Errorf("%w: category cannot be empty", ErrInvalidInput)
	ErrEmptyOwner        = fmt.Errorf("%w: owner cannot be empty", ErrInvalidInput)
	ErrDescriptionLong   = fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidInput, MaxDescriptionLen)
	ErrInvalidMonthsBack = fmt.Errorf("%w: months back must be between 1 and 120", ErrInvalidInput)

	ErrGoalCompleted = fmt.Errorf("%w: cannot deposit to a completed goal", ErrInvalidState)
	ErrEmailTaken    = fmt.Errorf("%w: email already registered", ErrInvalidState)
)

// NotFoundError builds an ErrNotFound for a given record kind and id.
func NotFoundError(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
