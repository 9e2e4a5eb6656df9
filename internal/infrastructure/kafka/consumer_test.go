package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error { return nil }

type recordingCache struct {
	ids chan int64
}

func (c *recordingCache) Invalidate(_ context.Context, userIDs ...int64) {
	for _, id := range userIDs {
		c.ids <- id
	}
}

func ledgerMessage(t *testing.T, eventType string, userID int64) kafka.Message {
	t.Helper()
	data, err := json.Marshal(models.LedgerPostedData{EntryID: 1, UserID: userID, Kind: models.KindSaleCredit, Amount: "95"})
	require.NoError(t, err)
	value, err := json.Marshal(models.Event{EventID: "e-1", EventType: eventType, OccurredAt: time.Now(), Data: data})
	require.NoError(t, err)
	return kafka.Message{Topic: models.TopicLedger, Value: value}
}

func TestConsumer_InvalidatesBalance(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 3)}
	cache := &recordingCache{ids: make(chan int64, 3)}
	consumer := &Consumer{reader: reader, cache: cache}

	reader.msgs <- kafka.Message{Topic: models.TopicLedger, Value: []byte("not json")}
	reader.msgs <- ledgerMessage(t, models.EventOrderCreated, 9)
	reader.msgs <- ledgerMessage(t, models.EventLedgerPosted, 42)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Consume(ctx)
		close(done)
	}()

	select {
	case id := <-cache.ids:
		assert.Equal(t, int64(42), id)
	case <-time.After(time.Second):
		t.Fatal("balance was not invalidated")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Empty(t, cache.ids)
}

type erroringReader struct {
	errs  []error
	calls atomic.Int32
	next  kafka.Message
}

func (r *erroringReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	n := int(r.calls.Add(1)) - 1
	if n < len(r.errs) {
		return kafka.Message{}, r.errs[n]
	}
	if n == len(r.errs) && r.next.Value != nil {
		return r.next, nil
	}
	return kafka.Message{}, io.EOF
}

func (r *erroringReader) Close() error { return nil }

func TestConsumer_ReadErrors(t *testing.T) {
	t.Run("StopsWhenReaderClosed", func(t *testing.T) {
		reader := &erroringReader{}
		consumer := &Consumer{reader: reader, cache: &recordingCache{ids: make(chan int64, 1)}, retryDelay: time.Hour}

		done := make(chan struct{})
		go func() {
			consumer.Consume(context.Background())
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("consumer kept reading a closed reader")
		}
		assert.Equal(t, int32(1), reader.calls.Load())
	})

	t.Run("RetriesTransientErrors", func(t *testing.T) {
		reader := &erroringReader{
			errs: []error{errors.New("broker unavailable"), errors.New("broker unavailable")},
			next: ledgerMessage(t, models.EventLedgerPosted, 7),
		}
		cache := &recordingCache{ids: make(chan int64, 1)}
		consumer := &Consumer{reader: reader, cache: cache, retryDelay: time.Millisecond}

		done := make(chan struct{})
		go func() {
			consumer.Consume(context.Background())
			close(done)
		}()

		select {
		case id := <-cache.ids:
			assert.Equal(t, int64(7), id)
		case <-time.After(time.Second):
			t.Fatal("balance was not invalidated after retries")
		}
		<-done
		assert.Equal(t, int32(4), reader.calls.Load())
	})

	t.Run("CancelledDuringBackoff", func(t *testing.T) {
		reader := &erroringReader{errs: []error{errors.New("broker unavailable")}}
		consumer := &Consumer{reader: reader, cache: &recordingCache{ids: make(chan int64, 1)}, retryDelay: time.Hour}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			consumer.Consume(ctx)
			close(done)
		}()
		assert.Eventually(t, func() bool { return reader.calls.Load() == 1 }, time.Second, time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("consumer did not stop during backoff")
		}
	})
}
