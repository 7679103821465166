package cache

import (
	"context"
	"fmt"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/config"
	"go.uber.org/zap"
)

// StoreOption configures NewDeliveryStore
type StoreOption func(*storeOptions)

type storeOptions struct {
	logger        *zap.Logger
	allowFallback bool
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the in-memory store.
// Default is true.
func WithInMemoryFallback(allow bool) StoreOption {
	return func(o *storeOptions) {
		o.allowFallback = allow
	}
}

// NewDeliveryStore picks the webhook de-duplication backend. An empty redis.host selects memory.
func NewDeliveryStore(ctx context.Context, cfg config.RedisConfig, opts ...StoreOption) (shared.IdempotencyStore, error) {
	o := storeOptions{logger: zap.NewNop(), allowFallback: true}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Host == "" {
		o.logger.Info("Redis not configured, using in-memory delivery store")
		return NewMemoryDeliveryStore(), nil
	}

	store, err := NewRedisDeliveryStore(ctx, cfg)
	if err == nil {
		o.logger.Info("Using Redis delivery store", zap.String("addr", cfg.Addr()))
		return store, nil
	}
	if !o.allowFallback {
		return nil, fmt.Errorf("redis required for webhook de-duplication: %w", err)
	}

	o.logger.Warn("Redis unavailable, falling back to in-memory delivery store; "+
		"replicas may process the same delivery twice",
		zap.Error(err),
	)
	return NewMemoryDeliveryStore(), nil
}
