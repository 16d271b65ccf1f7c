package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/sheets"
)

const DefaultMaxRetries = 3

// Handler processes one ledger event.
type Handler = func(ctx context.Context, event core.LedgerEvent) error

// Source delivers ledger events until ctx is done. amqp.Client and
// kafka.Consumer both satisfy it.
type Source interface {
	Consume(ctx context.Context, handler Handler) error
}

// Notifier emails an event to one address.
type Notifier interface {
	Send(ctx context.Context, to string, event core.LedgerEvent) error
}

// Store is what the worker reads to act on an event.
type Store interface {
	UserByID(ctx context.Context, id string) (core.User, error)
	ExpenseByID(ctx context.Context, id, ownerID string) (core.Expense, error)
}

// EventWorker reacts to ledger events: it emails owners about goal, bill,
// budget and welcome events and exports new expenses to a spreadsheet.
// Either side may be disabled by passing nil.
type EventWorker struct {
	store      Store
	mailer     Notifier
	exporter   sheets.ExpenseExporter
	maxRetries int
	backoff    func(attempt int) time.Duration
}

func NewEventWorker(store Store, mailer Notifier, exporter sheets.ExpenseExporter, maxRetries int) *EventWorker {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &EventWorker{
		store:      store,
		mailer:     mailer,
		exporter:   exporter,
		maxRetries: maxRetries,
		backoff:    amqp.ExponentialBackoff,
	}
}

// Run consumes src until ctx is cancelled or the source fails.
func (w *EventWorker) Run(ctx context.Context, src Source) error {
	slog.InfoContext(ctx, "Event worker started",
		"mail", w.mailer != nil,
		"export", w.exporter != nil,
		"max_retries", w.maxRetries)
	err := src.Consume(ctx, w.HandleEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleEvent processes the event, retrying transient failures with
// exponential backoff. Missing records and invalid events are not retried.
func (w *EventWorker) HandleEvent(ctx context.Context, event core.LedgerEvent) error {
	for attempt := 0; ; attempt++ {
		err := w.process(ctx, event)
		if err == nil {
			return nil
		}
		if permanent(err) || attempt >= w.maxRetries {
			slog.ErrorContext(ctx, "Giving up on ledger event",
				append(eventFields(event).WithError(err).ToSlice(), "attempts", attempt+1)...)
			return err
		}

		delay := w.backoff(attempt)
		slog.WarnContext(ctx, "Ledger event failed, retrying",
			append(eventFields(event).WithError(err).ToSlice(), "attempt", attempt+1, "delay", delay)...)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (w *EventWorker) process(ctx context.Context, event core.LedgerEvent) error {
	slog.DebugContext(ctx, "Processing ledger event", eventFields(event).ToSlice()...)

	switch {
	case event.Type == core.EventExpenseCreated:
		return w.export(ctx, event)
	case notify.Notifies(event.Type):
		return w.notify(ctx, event)
	}
	return nil
}

func (w *EventWorker) export(ctx context.Context, event core.LedgerEvent) error {
	if w.exporter == nil {
		return nil
	}
	e, err := w.store.ExpenseByID(ctx, event.EntityID, event.OwnerID)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	ref, err := w.exporter.Export(ctx, e)
	if err != nil {
		return fmt.Errorf("export expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense exported",
		append(log.NewFields().WithExpense(e.ID, e.Amount, e.Category).WithOperation(log.OpExport).ToSlice(), "sheets_ref", ref)...)
	return nil
}

func (w *EventWorker) notify(ctx context.Context, event core.LedgerEvent) error {
	if w.mailer == nil {
		return nil
	}
	user, err := w.store.UserByID(ctx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("get owner: %w", err)
	}
	if err := w.mailer.Send(ctx, user.Email, event); err != nil {
		return fmt.Errorf("send %s email: %w", event.Type, err)
	}
	slog.InfoContext(ctx, "Notification sent", eventFields(event).WithComponent(log.ComponentMail).ToSlice()...)
	return nil
}

func eventFields(event core.LedgerEvent) log.LogFields {
	return log.NewFields().
		WithEvent(event.ID, string(event.Type)).
		WithOwner(event.OwnerID).
		WithComponent(log.ComponentWorker)
}

func permanent(err error) bool {
	return errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrInvalidInput)
}
