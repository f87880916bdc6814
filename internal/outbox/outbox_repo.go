package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go-surplus-storefront/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Record is an event waiting to be relayed to the broker.
type Record struct {
	ID            uuid.UUID       `json:"id"`
	EventType     string          `json:"eventType"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type Repository interface {
	Append(ctx context.Context, rec Record) error
	// ListPending returns up to limit records, oldest first.
	ListPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

const (
	pendingKey = "storefront:outbox:pending"
	recordsKey = "storefront:outbox:records"
)

type redisRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisRepository(client *redis.Client, l ...*zap.Logger) Repository {
	return &redisRepository{client: client, logger: logger.Named("outbox.repo", l...)}
}

func (r *redisRepository) Append(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	id := rec.ID.String()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordsKey, id, raw)
		pipe.RPush(ctx, pendingKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox append failed: %w", err)
	}
	return nil
}

func (r *redisRepository) ListPending(ctx context.Context, limit int) ([]Record, error) {
	ids, err := r.client.LRange(ctx, pendingKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("outbox list failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raws, err := r.client.HMGet(ctx, recordsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("outbox list failed: %w", err)
	}

	records := make([]Record, 0, len(raws))
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			r.logger.Warn("outbox record missing, dropping id", zap.String("event_id", ids[i]))
			r.drop(ctx, ids[i])
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			r.logger.Error("outbox record corrupt, dropping", zap.String("event_id", ids[i]), zap.Error(err))
			r.drop(ctx, ids[i])
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *redisRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if err := r.remove(ctx, id.String()); err != nil {
		return fmt.Errorf("outbox mark sent failed: %w", err)
	}
	return nil
}

func (r *redisRepository) remove(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, pendingKey, 1, id)
		pipe.HDel(ctx, recordsKey, id)
		return nil
	})
	return err
}

// drop removes an unreadable record so it cannot stall the relay.
func (r *redisRepository) drop(ctx context.Context, id string) {
	if err := r.remove(ctx, id); err != nil {
		r.logger.Warn("outbox drop failed", zap.String("event_id", id), zap.Error(err))
	}
}

type memoryRepository struct {
	mu      sync.Mutex
	pending []Record
}

func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (m *memoryRepository) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, rec)
	return nil
}

func (m *memoryRepository) ListPending(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := min(limit, len(m.pending))
	return append([]Record(nil), m.pending[:n]...), nil
}

func (m *memoryRepository) MarkSent(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.pending {
		if rec.ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return nil
		}
	}
	return nil
}
