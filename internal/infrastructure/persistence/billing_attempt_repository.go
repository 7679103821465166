package persistence

import (
	"context"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBillingAttemptRepository implements subscription.BillingAttemptRepository using GORM
type GormBillingAttemptRepository struct {
	db *gorm.DB
}

// NewGormBillingAttemptRepository creates a new GormBillingAttemptRepository
func NewGormBillingAttemptRepository(db *gorm.DB) *GormBillingAttemptRepository {
	return &GormBillingAttemptRepository{db: db}
}

func (r *GormBillingAttemptRepository) findOne(ctx context.Context, query string, args ...any) (*subscription.BillingAttempt, error) {
	var model models.BillingAttemptModel
	if err := conn(ctx, r.db).Where(query, args...).First(&model).Error; err != nil {
		return nil, translateError(err, subscription.ErrBillingAttemptNotFound)
	}
	return model.ToDomain(), nil
}

// FindByID finds an attempt by local ID
func (r *GormBillingAttemptRepository) FindByID(ctx context.Context, id uuid.UUID) (*subscription.BillingAttempt, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByRemoteID finds an attempt by remote attempt identity
func (r *GormBillingAttemptRepository) FindByRemoteID(ctx context.Context, remoteID string) (*subscription.BillingAttempt, error) {
	return r.findOne(ctx, "remote_id = ?", remoteID)
}

// FindByIdempotencyKey finds an attempt by its per-cycle key
func (r *GormBillingAttemptRepository) FindByIdempotencyKey(ctx context.Context, key string) (*subscription.BillingAttempt, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

// ListBySubscription returns the newest attempts of a subscription first
func (r *GormBillingAttemptRepository) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]*subscription.BillingAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.BillingAttemptModel
	err := conn(ctx, r.db).
		Where("subscription_id = ?", subscriptionID).
		Order("attempted_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	attempts := make([]*subscription.BillingAttempt, len(rows))
	for i := range rows {
		attempts[i] = rows[i].ToDomain()
	}
	return attempts, nil
}

// CountFailedSince counts FAILED attempts of a subscription at or after since
func (r *GormBillingAttemptRepository) CountFailedSince(ctx context.Context, subscriptionID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.BillingAttemptModel{}).
		Where("subscription_id = ? AND status = ? AND attempted_at >= ?",
			subscriptionID, string(subscription.AttemptFailed), since.UTC()).
		Count(&count).Error
	return count, err
}

// FindRetryCandidates groups recent failures by subscription, so each subscription appears once
func (r *GormBillingAttemptRepository) FindRetryCandidates(ctx context.Context, since time.Time, maxFailures int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(ctx, r.db).Model(&models.BillingAttemptModel{}).
		Where("status = ? AND attempted_at >= ?", string(subscription.AttemptFailed), since.UTC()).
		Group("subscription_id").
		Having("COUNT(*) < ?", maxFailures).
		Order("subscription_id").
		Pluck("subscription_id", &ids).Error
	return ids, err
}

// FindPending returns the attempts of one subscription still awaiting a remote result
func (r *GormBillingAttemptRepository) FindPending(ctx context.Context, subscriptionID uuid.UUID) ([]*subscription.BillingAttempt, error) {
	var rows []models.BillingAttemptModel
	err := conn(ctx, r.db).
		Where("subscription_id = ? AND status = ?", subscriptionID, string(subscription.AttemptPending)).
		Order("attempted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	attempts := make([]*subscription.BillingAttempt, len(rows))
	for i := range rows {
		attempts[i] = rows[i].ToDomain()
	}
	return attempts, nil
}

// Save inserts or updates an attempt by primary key
func (r *GormBillingAttemptRepository) Save(ctx context.Context, attempt *subscription.BillingAttempt) error {
	model := models.BillingAttemptModelFromDomain(attempt)
	return translateError(conn(ctx, r.db).Save(model).Error, subscription.ErrBillingAttemptNotFound)
}
