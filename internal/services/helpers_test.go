package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

const owner = "owner-1"

var fixedNow = time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// recorder keeps every published event.
type recorder struct {
	events []core.LedgerEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, e core.LedgerEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) types() []core.EventType {
	out := make([]core.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
