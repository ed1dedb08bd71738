package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the TokenStore interface
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) ports.TokenStore {
	return &RedisStore{
		client: client,
		prefix: "walletauth:invalidated:",
	}
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.prefix + tokenID

	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("%w: failed to invalidate token: %w", core.ErrStoreUnavailable, err)
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.prefix + tokenID

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: failed to check token invalidation: %w", core.ErrStoreUnavailable, err)
	}

	return val > 0, nil
}

// SweepExpired is a no-op, invalidation keys carry their own TTL
func (s *RedisStore) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}
