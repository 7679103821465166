package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces delivery keys in a shared Redis
const DefaultKeyPrefix = "subsync:delivery:"

// RedisDeliveryStore remembers processed webhook deliveries in Redis so every replica
// sees the same set
type RedisDeliveryStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisDeliveryStore connects and pings Redis
func NewRedisDeliveryStore(ctx context.Context, cfg config.RedisConfig) (*RedisDeliveryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	return NewRedisDeliveryStoreWithClient(client, DefaultKeyPrefix), nil
}

// NewRedisDeliveryStoreWithClient wraps an existing client
func NewRedisDeliveryStoreWithClient(client *redis.Client, keyPrefix string) *RedisDeliveryStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisDeliveryStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed uses SET NX with a TTL, so concurrent replicas agree on one winner
func (s *RedisDeliveryStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark delivery %s: %w", key, err)
	}
	return ok, nil
}

// IsProcessed checks whether key is recorded
func (s *RedisDeliveryStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check delivery %s: %w", key, err)
	}
	return n > 0, nil
}

// Ping reports Redis health for readiness checks
func (s *RedisDeliveryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client
func (s *RedisDeliveryStore) Close() error {
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisDeliveryStore)(nil)
