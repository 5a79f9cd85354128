// Package kafka publishes and consumes expense events over Kafka topics.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"spesevoce/internal/core"
	"spesevoce/internal/events"
	"spesevoce/internal/log"
)

const DefaultTopic = "expense_recorded"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
		topic: topic,
	}
}

func (p *Publisher) PublishExpenseRecorded(ctx context.Context, e core.Expense) error {
	msg := events.NewExpenseRecordedMessage(e)
	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key()),
		Value: data,
		Time:  msg.PublishedAt,
	})
	if err != nil {
		return fmt.Errorf("write message to %s: %w", p.topic, err)
	}

	slog.InfoContext(ctx, "Published expense recorded message",
		log.FieldComponent, log.ComponentKafka,
		log.FieldExpenseID, e.ID,
		"topic", p.topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Consumer reads expense events as part of a consumer group. Offsets are
// committed only after the handler succeeds.
type Consumer struct {
	reader     messageReader
	topic      string
	retryDelay time.Duration
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		topic:      topic,
		retryDelay: 2 * time.Second,
	}
}

// Consume blocks until ctx is cancelled or the reader fails.
func (c *Consumer) Consume(ctx context.Context, handler events.Handler) error {
	slog.InfoContext(ctx, "Started consuming expense recorded messages",
		log.FieldComponent, log.ComponentKafka,
		"topic", c.topic)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		msg, err := events.ExpenseRecordedMessageFromJSON(m.Value)
		if err != nil {
			// Poison message: skip it so the partition keeps moving.
			slog.ErrorContext(ctx, "Failed to unmarshal message",
				log.FieldComponent, log.ComponentKafka,
				log.FieldError, err,
				"offset", m.Offset,
				"partition", m.Partition)
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				return fmt.Errorf("commit skipped message: %w", err)
			}
			continue
		}

		if err := c.handleWithRetry(ctx, handler, msg); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
		slog.InfoContext(ctx, "Successfully processed expense recorded message",
			log.FieldComponent, log.ComponentKafka,
			log.FieldExpenseID, msg.Expense.ID,
			"offset", m.Offset)
	}
}

// handleWithRetry keeps retrying the same message, since skipping it would
// lose the expense once the offset is committed.
func (c *Consumer) handleWithRetry(ctx context.Context, handler events.Handler, msg *events.ExpenseRecordedMessage) error {
	for {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		slog.ErrorContext(ctx, "Failed to handle message, retrying",
			log.FieldComponent, log.ComponentKafka,
			log.FieldError, err,
			log.FieldExpenseID, msg.Expense.ID,
			"retry_in", c.retryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
