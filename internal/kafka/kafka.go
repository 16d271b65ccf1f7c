// Package kafka carries ledger events over a Kafka topic as an alternative
// to the AMQP broker.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/core"

	"github.com/segmentio/kafka-go"
)

const consumerGroup = "finledger-worker"

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Publish writes the event keyed by owner so one owner's events stay ordered
// within a partition.
func (p *Publisher) Publish(ctx context.Context, event core.LedgerEvent) error {
	data, err := event.Encode()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OwnerID),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Consumer reads the topic in a consumer group and commits each message
// after the handler returns.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  consumerGroup,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// Consume delivers events until ctx is done. Kafka has no per-message
// reject, so a failed or undecodable message is logged and committed.
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, event core.LedgerEvent) error) error {
	slog.InfoContext(ctx, "Started consuming ledger events", "topic", c.reader.Config().Topic)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		event, err := core.DecodeLedgerEvent(msg.Value)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to decode message", "error", err, "offset", msg.Offset)
		} else if err := handler(ctx, event); err != nil {
			slog.ErrorContext(ctx, "Failed to handle event",
				"error", err,
				"event_id", event.ID,
				"event_type", event.Type)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
