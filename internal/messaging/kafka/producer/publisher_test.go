package producer_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go-surplus-storefront/internal/messaging/kafka/producer"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func header(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		w := &fakeWriter{}
		pub := producer.NewKafkaPublisher(w, zap.NewNop())

		err := pub.Publish(context.Background(), producer.Event{
			Type:          "CART_ITEM_ADDED",
			AggregateType: "cart",
			AggregateID:   "guest_1_abc",
			Payload:       map[string]any{"productId": "P1", "quantity": 2},
		})
		require.NoError(t, err)

		require.Len(t, w.msgs, 1)
		msg := w.msgs[0]
		assert.Equal(t, "guest_1_abc", string(msg.Key))
		assert.Equal(t, "CART_ITEM_ADDED", header(msg.Headers, "event_type"))
		assert.Equal(t, "cart", header(msg.Headers, "aggregate_type"))
		assert.Empty(t, header(msg.Headers, "missing"))
		assert.False(t, msg.Time.IsZero())

		var payload map[string]any
		require.NoError(t, json.Unmarshal(msg.Value, &payload))
		assert.Equal(t, "P1", payload["productId"])
	})

	t.Run("writer_error", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("broker down")}
		pub := producer.NewKafkaPublisher(w, zap.NewNop())

		err := pub.Publish(context.Background(), producer.Event{Type: "CART_CLEARED", AggregateID: "u1"})
		assert.EqualError(t, err, "broker down")
	})
}
