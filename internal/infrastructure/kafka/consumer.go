package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/segmentio/kafka-go"
)

// BalanceInvalidator drops cached balances.
type BalanceInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...int64)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads ledger events and evicts the affected balance cache
// entries, so every replica drops stale balances.
type Consumer struct {
	reader     messageReader
	cache      BalanceInvalidator
	retryDelay time.Duration
}

const defaultRetryDelay = time.Second

func NewConsumer(brokers []string, groupID string, cache BalanceInvalidator) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    models.TopicLedger,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		cache:      cache,
		retryDelay: defaultRetryDelay,
	}
}

// Consume blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, io.EOF) {
				slog.Info("Kafka reader closed", "topic", models.TopicLedger)
				return
			}
			slog.Error("failed to read Kafka message", "topic", models.TopicLedger, "error", err)
			// Пауза перед повтором, чтобы не крутиться на постоянной ошибке
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var event models.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		slog.Error("failed to unmarshal event", "topic", msg.Topic, "error", err)
		return
	}

	switch event.EventType {
	case models.EventLedgerPosted:
		var data models.LedgerPostedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			slog.Error("failed to unmarshal ledger event", "event_id", event.EventID, "error", err)
			return
		}
		if data.UserID == 0 {
			slog.Error("invalid ledger event: missing user_id", "event_id", event.EventID)
			return
		}
		c.cache.Invalidate(ctx, data.UserID)
		slog.Debug("balance cache invalidated", "user_id", data.UserID, "event_id", event.EventID)
	default:
		slog.Debug("ignoring event", "event_type", event.EventType)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
