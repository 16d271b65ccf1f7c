package amqp

import (
	"fmt"

	"finledger/internal/core"

	"github.com/rabbitmq/amqp091-go"
)

const contentTypeJSON = "application/json"

// toPublishing wraps an event in a persistent JSON message. The event type
// travels as the AMQP message type so consumers can filter without decoding.
func toPublishing(event core.LedgerEvent) (amqp091.Publishing, error) {
	body, err := event.Encode()
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp091.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.ID,
		Type:         string(event.Type),
		Timestamp:    event.Timestamp,
		Body:         body,
	}, nil
}

func fromDelivery(d amqp091.Delivery) (core.LedgerEvent, error) {
	if d.ContentType != "" && d.ContentType != contentTypeJSON {
		return core.LedgerEvent{}, fmt.Errorf("%w: unsupported content type %q", core.ErrInvalidInput, d.ContentType)
	}
	return core.DecodeLedgerEvent(d.Body)
}
