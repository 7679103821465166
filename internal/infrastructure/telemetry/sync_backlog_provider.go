package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormSyncBacklogProvider implements SyncBacklogProvider by counting rows directly
type GormSyncBacklogProvider struct {
	db *gorm.DB
}

// NewGormSyncBacklogProvider creates a new GormSyncBacklogProvider.
func NewGormSyncBacklogProvider(db *gorm.DB) *GormSyncBacklogProvider {
	return &GormSyncBacklogProvider{db: db}
}

// CountPendingPush returns dirty, unblocked plans and subscriptions
func (p *GormSyncBacklogProvider) CountPendingPush(ctx context.Context) (map[string]int64, error) {
	tables := map[string]string{
		"SELLING_PLAN": "selling_plans",
		"SUBSCRIPTION": "customer_subscriptions",
	}
	out := make(map[string]int64, len(tables))
	for kind, table := range tables {
		var count int64
		if err := p.db.WithContext(ctx).
			Table(table).
			Where("needs_push = ? AND push_blocked = ?", true, false).
			Count(&count).Error; err != nil {
			return nil, err
		}
		out[kind] = count
	}
	return out, nil
}

// CountFailedSubscriptions returns subscriptions in FAILED status
func (p *GormSyncBacklogProvider) CountFailedSubscriptions(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("customer_subscriptions").
		Where("status = ?", "FAILED").
		Count(&count).Error
	return count, err
}
