package cache

import (
	"context"
	"testing"

	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDeliveryStore(t *testing.T) {
	ctx := context.Background()
	// nothing listens on port 1
	unreachable := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	t.Run("memory when redis is not configured", func(t *testing.T) {
		store, err := NewDeliveryStore(ctx, config.RedisConfig{})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &MemoryDeliveryStore{}, store)
	})

	t.Run("falls back to memory when redis is down", func(t *testing.T) {
		store, err := NewDeliveryStore(ctx, unreachable, WithLogger(zap.NewNop()))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &MemoryDeliveryStore{}, store)
	})

	t.Run("fails when fallback is disabled", func(t *testing.T) {
		store, err := NewDeliveryStore(ctx, unreachable, WithInMemoryFallback(false))
		assert.Error(t, err)
		assert.Nil(t, store)
	})
}
