package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go-surplus-storefront/internal/messaging/kafka/producer"
	"go-surplus-storefront/internal/outbox"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []producer.Event
	failAt int // 1-based call that fails; 0 never
	calls  int
}

func (c *capturePublisher) Publish(_ context.Context, e producer.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failAt != 0 && c.calls == c.failAt {
		return errors.New("broker down")
	}
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

func setupRedisRepo(t *testing.T) (outbox.Repository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return outbox.NewRedisRepository(client, zap.NewNop()), mr
}

func repositories(t *testing.T) map[string]outbox.Repository {
	repo, _ := setupRedisRepo(t)
	return map[string]outbox.Repository{
		"memory": outbox.NewMemoryRepository(),
		"redis":  repo,
	}
}

func record(t *testing.T, rec *outbox.Recorder, typ, aggregate string) {
	t.Helper()
	err := rec.Publish(context.Background(), producer.Event{
		Type:          typ,
		AggregateType: "cart",
		AggregateID:   aggregate,
		Payload:       map[string]any{"productId": "P1", "quantity": 2},
	})
	require.NoError(t, err)
}

func TestRepository_PendingOrder(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := outbox.NewRecorder(repo)
			record(t, rec, "CART_ITEM_ADDED", "sess-1")
			record(t, rec, "CART_ITEM_UPDATED", "sess-1")
			record(t, rec, "CART_CLEARED", "sess-1")

			pending, err := repo.ListPending(ctx, 2)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, "CART_ITEM_ADDED", pending[0].EventType)
			assert.Equal(t, "CART_ITEM_UPDATED", pending[1].EventType)
			assert.Equal(t, "sess-1", pending[0].AggregateID)
			assert.False(t, pending[0].CreatedAt.IsZero())

			require.NoError(t, repo.MarkSent(ctx, pending[0].ID))

			pending, err = repo.ListPending(ctx, 10)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, "CART_ITEM_UPDATED", pending[0].EventType)
		})
	}
}

func TestRedisRepository_UnreadableRecordsAreDropped(t *testing.T) {
	const (
		pending = "storefront:outbox:pending"
		records = "storefront:outbox:records"
	)
	repo, mr := setupRedisRepo(t)
	rec := outbox.NewRecorder(repo)

	record(t, rec, "CART_ITEM_ADDED", "sess-1")
	_, err := mr.RPush(pending, "corrupt-id", "dangling-id")
	require.NoError(t, err)
	mr.HSet(records, "corrupt-id", "{not json")
	record(t, rec, "CART_CLEARED", "sess-1")

	pub := &capturePublisher{}
	p := outbox.NewProcessor(repo, pub, time.Second, zap.NewNop())

	sent, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"CART_ITEM_ADDED", "CART_CLEARED"}, pub.types())

	left, err := mr.List(pending)
	if err == nil {
		assert.Empty(t, left)
	}
	assert.Empty(t, mr.HGet(records, "corrupt-id"))

	sent, err = p.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestProcessor_ProcessPending(t *testing.T) {
	t.Run("relays in order and drains", func(t *testing.T) {
		repo := outbox.NewMemoryRepository()
		rec := outbox.NewRecorder(repo)
		record(t, rec, "CART_ITEM_ADDED", "sess-1")
		record(t, rec, "CART_COUPON_APPLIED", "sess-1")

		pub := &capturePublisher{}
		p := outbox.NewProcessor(repo, pub, time.Second, zap.NewNop())

		sent, err := p.ProcessPending(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, sent)
		assert.Equal(t, []string{"CART_ITEM_ADDED", "CART_COUPON_APPLIED"}, pub.types())

		var payload map[string]any
		raw, ok := pub.events[0].Payload.(json.RawMessage)
		require.True(t, ok)
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, "P1", payload["productId"])

		pending, _ := repo.ListPending(context.Background(), 10)
		assert.Empty(t, pending)
	})

	t.Run("publish failure keeps the rest pending", func(t *testing.T) {
		repo := outbox.NewMemoryRepository()
		rec := outbox.NewRecorder(repo)
		record(t, rec, "CART_ITEM_ADDED", "sess-1")
		record(t, rec, "CART_ITEM_REMOVED", "sess-1")

		pub := &capturePublisher{failAt: 2}
		p := outbox.NewProcessor(repo, pub, time.Second, zap.NewNop())

		sent, err := p.ProcessPending(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, sent)

		pending, _ := repo.ListPending(context.Background(), 10)
		require.Len(t, pending, 1)
		assert.Equal(t, "CART_ITEM_REMOVED", pending[0].EventType)

		sent, err = p.ProcessPending(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, sent)
		assert.Equal(t, []string{"CART_ITEM_ADDED", "CART_ITEM_REMOVED"}, pub.types())
	})
}

func TestProcessor_StartStopsOnCancel(t *testing.T) {
	repo := outbox.NewMemoryRepository()
	record(t, outbox.NewRecorder(repo), "CART_MERGED", "user")

	pub := &capturePublisher{}
	p := outbox.NewProcessor(repo, pub, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(pub.types()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}
