package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *capturingWriter) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	occurred := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	event := models.Event{
		EventID:    "6f1c2a0e-1111-4222-8333-944455556666",
		EventType:  models.EventOrderCreated,
		OccurredAt: occurred,
		Data:       json.RawMessage(`{"id":17}`),
	}

	t.Run("Success", func(t *testing.T) {
		writer := &capturingWriter{}
		producer := &Producer{writer: writer}

		require.NoError(t, producer.Publish(context.Background(), models.TopicOrders, 17, event))
		require.Len(t, writer.msgs, 1)

		msg := writer.msgs[0]
		assert.Equal(t, models.TopicOrders, msg.Topic)
		assert.Equal(t, "17", string(msg.Key))
		assert.Equal(t, occurred, msg.Time)
		assert.Equal(t, models.EventOrderCreated, header(msg, headerEventType))
		assert.Equal(t, event.EventID, header(msg, headerEventID))

		var decoded models.Event
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, event.EventID, decoded.EventID)
		assert.JSONEq(t, `{"id":17}`, string(decoded.Data))
	})

	t.Run("WriterError", func(t *testing.T) {
		producer := &Producer{writer: &capturingWriter{err: errors.New("no brokers")}}
		err := producer.Publish(context.Background(), models.TopicOrders, 17, event)
		assert.EqualError(t, err, "no brokers")
	})
}

func TestLogUndelivered(t *testing.T) {
	// не должно паниковать ни на успехе, ни на сообщениях без заголовков
	logUndelivered([]kafka.Message{{Topic: models.TopicLedger}}, nil)
	logUndelivered([]kafka.Message{{Topic: models.TopicLedger, Key: []byte("3")}}, errors.New("timeout"))
}
