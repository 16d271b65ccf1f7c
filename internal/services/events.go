package services

import (
	"context"
	"log/slog"

	"finledger/internal/core"
	"finledger/internal/log"
)

// EventPublisher delivers ledger events to other processes. amqp.Client and
// kafka.Publisher both satisfy it.
type EventPublisher interface {
	Publish(ctx context.Context, event core.LedgerEvent) error
}

// NopPublisher drops every event. It is used when EVENTS_BACKEND=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, core.LedgerEvent) error { return nil }

// publish sends the event and only logs a failure; the state change that
// produced it has already been stored.
func publish(ctx context.Context, p EventPublisher, event core.LedgerEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			log.NewFields().
				WithEvent(event.ID, string(event.Type)).
				WithOwner(event.OwnerID).
				WithOperation(log.OpPublish).
				WithError(err).
				ToSlice()...)
	}
}
