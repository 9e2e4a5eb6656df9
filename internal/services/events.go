package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/kafka"
	"github.com/honeynil/ReWearExchange/internal/models"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BalanceCache is the read-through cache in front of Balance.
type BalanceCache interface {
	Get(ctx context.Context, userID int64) (*models.BalanceSummary, bool)
	Set(ctx context.Context, summary *models.BalanceSummary)
	Invalidate(ctx context.Context, userIDs ...int64)
}

type eventPublisher struct {
	producer kafka.KafkaProducer
}

// publish sends an event after a commit. Delivery failures are logged only;
// the state change has already happened.
func (p eventPublisher) publish(ctx context.Context, topic string, key int64, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to marshal event data", "event_type", eventType, "error", err)
		return
	}
	event := models.Event{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	if err := p.producer.Publish(context.WithoutCancel(ctx), topic, key, event); err != nil {
		slog.Warn("event not delivered", "topic", topic, "event_type", eventType, "event_id", event.EventID, "error", err)
	}
}

func (p eventPublisher) ledgerPosted(ctx context.Context, entry *models.LedgerEntry) {
	p.publish(ctx, models.TopicLedger, entry.UserID, models.EventLedgerPosted, models.LedgerPostedData{
		EntryID: entry.ID,
		UserID:  entry.UserID,
		Kind:    entry.Kind,
		Amount:  entry.Amount.StringFixed(2),
	})
}

func failSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}
