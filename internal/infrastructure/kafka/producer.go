package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/segmentio/kafka-go"
)

const (
	headerEventType = "event_type"
	headerEventID   = "event_id"
)

// KafkaProducer publishes domain events. Key is the aggregate id, so events
// of one order or user land in the same partition.
type KafkaProducer interface {
	Publish(ctx context.Context, topic string, key int64, event models.Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		Async:                  true,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Completion:             logUndelivered,
	}}
}

// logUndelivered reports failures of the async writer, which WriteMessages
// cannot return.
func logUndelivered(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range msgs {
		slog.Error("Kafka message not delivered",
			"topic", m.Topic,
			"key", string(m.Key),
			"event_id", header(m, headerEventID),
			"error", err)
	}
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (p *Producer) Publish(ctx context.Context, topic string, key int64, event models.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType, err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(key, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.EventType)},
			{Key: headerEventID, Value: []byte(event.EventID)},
		},
		Time: event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("failed to send Kafka message", "topic", topic, "key", key, "event_type", event.EventType, "error", err)
		return err
	}
	slog.Debug("Kafka message sent", "topic", topic, "key", key, "event_id", event.EventID)
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		slog.Error("failed to close Kafka writer", "error", err)
		return err
	}
	slog.Info("Kafka writer closed")
	return nil
}
