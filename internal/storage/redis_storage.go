package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage scopes every key to a single browser client.
type RedisStorage struct {
	client   *redis.Client
	clientID string
	ttl      time.Duration
}

// NewRedisStorage returns storage for clientID; ttl of zero keeps keys forever.
func NewRedisStorage(client *redis.Client, clientID string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		client:   client,
		clientID: clientID,
		ttl:      ttl,
	}
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}
	return v, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) key(key string) string {
	return fmt.Sprintf("storefront:%s:%s", r.clientID, key)
}
