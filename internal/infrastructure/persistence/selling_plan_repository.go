package persistence

import (
	"context"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSellingPlanRepository implements subscription.SellingPlanRepository using GORM
type GormSellingPlanRepository struct {
	db *gorm.DB
}

// NewGormSellingPlanRepository creates a new GormSellingPlanRepository
func NewGormSellingPlanRepository(db *gorm.DB) *GormSellingPlanRepository {
	return &GormSellingPlanRepository{db: db}
}

// FindByID finds a plan by local ID
func (r *GormSellingPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*subscription.SellingPlan, error) {
	var model models.SellingPlanModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateError(err, subscription.ErrSellingPlanNotFound)
	}
	return model.ToDomain(), nil
}

// FindByRemoteID finds a plan by remote identity
func (r *GormSellingPlanRepository) FindByRemoteID(ctx context.Context, remoteID string) (*subscription.SellingPlan, error) {
	var model models.SellingPlanModel
	if err := conn(ctx, r.db).Where("remote_id = ?", remoteID).First(&model).Error; err != nil {
		return nil, translateError(err, subscription.ErrSellingPlanNotFound)
	}
	return model.ToDomain(), nil
}

// FindPendingPush returns dirty, unblocked plans oldest first
func (r *GormSellingPlanRepository) FindPendingPush(ctx context.Context, limit int) ([]*subscription.SellingPlan, error) {
	var rows []models.SellingPlanModel
	err := conn(ctx, r.db).
		Where("needs_push = ? AND push_blocked = ?", true, false).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	plans := make([]*subscription.SellingPlan, len(rows))
	for i := range rows {
		plans[i] = rows[i].ToDomain()
	}
	return plans, nil
}

// List returns a page of plans and the total count
func (r *GormSellingPlanRepository) List(ctx context.Context, filter subscription.SellingPlanFilter) ([]*subscription.SellingPlan, int64, error) {
	query := conn(ctx, r.db).Model(&models.SellingPlanModel{})
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := pageOf(filter.Page, filter.PageSize)
	var rows []models.SellingPlanModel
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	plans := make([]*subscription.SellingPlan, len(rows))
	for i := range rows {
		plans[i] = rows[i].ToDomain()
	}
	return plans, total, nil
}

// Save inserts or updates a plan by primary key
func (r *GormSellingPlanRepository) Save(ctx context.Context, plan *subscription.SellingPlan) error {
	model := models.SellingPlanModelFromDomain(plan)
	return translateError(conn(ctx, r.db).Save(model).Error, subscription.ErrSellingPlanNotFound)
}
