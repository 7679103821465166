package shared

import (
	"context"
	"time"
)

// DefaultDeliveryTTL is how long a webhook delivery ID is remembered
const DefaultDeliveryTTL = 24 * time.Hour

// IdempotencyStore remembers processed delivery IDs so redelivered webhooks are acknowledged without reprocessing
type IdempotencyStore interface {
	// MarkProcessed records key for ttl. It reports false when the key was already recorded.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}
