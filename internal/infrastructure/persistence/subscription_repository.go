package persistence

import (
	"context"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSubscriptionRepository implements subscription.SubscriptionRepository using GORM
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

func (r *GormSubscriptionRepository) findOne(db *gorm.DB, query string, args ...any) (*subscription.CustomerSubscription, error) {
	var model models.SubscriptionModel
	if err := db.Where(query, args...).First(&model).Error; err != nil {
		return nil, translateError(err, subscription.ErrSubscriptionNotFound)
	}
	return model.ToDomain(), nil
}

func (r *GormSubscriptionRepository) findMany(db *gorm.DB) ([]*subscription.CustomerSubscription, error) {
	var rows []models.SubscriptionModel
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	subs := make([]*subscription.CustomerSubscription, len(rows))
	for i := range rows {
		subs[i] = rows[i].ToDomain()
	}
	return subs, nil
}

// FindByID finds a subscription by local ID
func (r *GormSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*subscription.CustomerSubscription, error) {
	return r.findOne(conn(ctx, r.db), "id = ?", id)
}

// FindByIDForUpdate finds a subscription by local ID and locks the row
func (r *GormSubscriptionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*subscription.CustomerSubscription, error) {
	return r.findOne(forUpdate(conn(ctx, r.db)), "id = ?", id)
}

// FindByRemoteID finds a subscription by remote identity
func (r *GormSubscriptionRepository) FindByRemoteID(ctx context.Context, remoteID string) (*subscription.CustomerSubscription, error) {
	return r.findOne(conn(ctx, r.db), "remote_id = ?", remoteID)
}

// FindByRemoteIDForUpdate finds a subscription by remote identity and locks the row
func (r *GormSubscriptionRepository) FindByRemoteIDForUpdate(ctx context.Context, remoteID string) (*subscription.CustomerSubscription, error) {
	return r.findOne(forUpdate(conn(ctx, r.db)), "remote_id = ?", remoteID)
}

// FindByIDs loads several subscriptions; missing IDs are silently absent from the result
func (r *GormSubscriptionRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*subscription.CustomerSubscription, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.findMany(conn(ctx, r.db).Where("id IN ?", ids).Order("next_billing_date ASC"))
}

// FindPendingPush returns dirty, unblocked subscriptions oldest first
func (r *GormSubscriptionRepository) FindPendingPush(ctx context.Context, limit int) ([]*subscription.CustomerSubscription, error) {
	return r.findMany(conn(ctx, r.db).
		Where("needs_push = ? AND push_blocked = ?", true, false).
		Order("updated_at ASC").
		Limit(limit))
}

// FindDueForBilling returns one keyset page of ACTIVE subscriptions due on or before today
func (r *GormSubscriptionRepository) FindDueForBilling(ctx context.Context, today time.Time, after *subscription.DueCursor, limit int) ([]*subscription.CustomerSubscription, error) {
	query := conn(ctx, r.db).
		Where("status = ? AND next_billing_date <= ?", string(subscription.StatusActive), subscription.DateOnly(today))
	if after != nil {
		date := subscription.DateOnly(after.NextBillingDate)
		query = query.Where("(next_billing_date > ? OR (next_billing_date = ? AND id > ?))", date, date, after.ID)
	}
	return r.findMany(query.Order("next_billing_date ASC, id ASC").Limit(limit))
}

// FindByPaymentMethod returns every subscription referencing a payment method
func (r *GormSubscriptionRepository) FindByPaymentMethod(ctx context.Context, paymentMethodRef string) ([]*subscription.CustomerSubscription, error) {
	return r.findMany(forUpdate(conn(ctx, r.db)).Where("payment_method_ref = ?", paymentMethodRef))
}

// FindActiveWithoutPaymentMethod returns a customer's ACTIVE subscriptions lacking a payment method
func (r *GormSubscriptionRepository) FindActiveWithoutPaymentMethod(ctx context.Context, customerID uuid.UUID) ([]*subscription.CustomerSubscription, error) {
	return r.findMany(forUpdate(conn(ctx, r.db)).
		Where("customer_id = ? AND status = ? AND (payment_method_ref IS NULL OR payment_method_ref = '')",
			customerID, string(subscription.StatusActive)))
}

// List returns a page of subscriptions and the total count
func (r *GormSubscriptionRepository) List(ctx context.Context, filter subscription.SubscriptionFilter) ([]*subscription.CustomerSubscription, int64, error) {
	query := conn(ctx, r.db).Model(&models.SubscriptionModel{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.NeedsPush != nil {
		query = query.Where("needs_push = ?", *filter.NeedsPush)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := pageOf(filter.Page, filter.PageSize)
	order := orderClause(filter.SortBy, filter.SortOrder, SubscriptionSortFields, "created_at")
	subs, err := r.findMany(query.Order(order).Limit(limit).Offset(offset))
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// Save inserts a new subscription (Version 0) or updates an existing one when the stored
// version still matches. The entity's Version is bumped on success.
func (r *GormSubscriptionRepository) Save(ctx context.Context, sub *subscription.CustomerSubscription) error {
	model := models.SubscriptionModelFromDomain(sub)
	db := conn(ctx, r.db)

	if sub.Version == 0 {
		model.Version = 1
		if err := db.Create(model).Error; err != nil {
			return translateError(err, subscription.ErrSubscriptionNotFound)
		}
		sub.Version = 1
		return nil
	}

	currentVersion := sub.Version
	result := db.Model(&models.SubscriptionModel{}).
		Where("id = ? AND version = ?", sub.ID, currentVersion).
		Updates(map[string]any{
			"remote_id":               model.RemoteID,
			"needs_push":              model.NeedsPush,
			"push_blocked":            model.PushBlocked,
			"last_push_error":         model.LastPushError,
			"last_pushed_at":          model.LastPushedAt,
			"last_pulled_at":          model.LastPulledAt,
			"selling_plan_id":         model.SellingPlanID,
			"status":                  model.Status,
			"next_billing_date":       model.NextBillingDate,
			"next_delivery_date":      model.NextDeliveryDate,
			"billing_interval":        model.BillingInterval,
			"billing_interval_count":  model.BillingIntervalCount,
			"delivery_interval":       model.DeliveryInterval,
			"delivery_interval_count": model.DeliveryIntervalCount,
			"line_items":              model.LineItemsJSON,
			"total_price":             model.TotalPrice,
			"currency":                model.Currency,
			"delivery_address":        model.DeliveryAddressJSON,
			"payment_method_ref":      model.PaymentMethodRef,
			"billing_cycle_count":     model.BillingCycleCount,
			"billing_anchor_day":      model.BillingAnchorDay,
			"delivery_anchor_day":     model.DeliveryAnchorDay,
			"total_cycles":            model.TotalCycles,
			"cancelled_at":            model.CancelledAt,
			"remote_updated_at":       model.RemoteUpdatedAt,
			"version":                 currentVersion + 1,
			"updated_at":              model.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, subscription.ErrSubscriptionNotFound)
	}
	if result.RowsAffected == 0 {
		var count int64
		conn(ctx, r.db).Model(&models.SubscriptionModel{}).Where("id = ?", sub.ID).Count(&count)
		if count == 0 {
			return subscription.ErrSubscriptionNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	sub.Version = currentVersion + 1
	return nil
}
