package persistence

import (
	"context"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerRepository implements subscription.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by local ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*subscription.Customer, error) {
	var model models.CustomerModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateError(err, subscription.ErrCustomerNotFound)
	}
	return model.ToDomain(), nil
}

// FindByRemoteID finds a customer by remote identity
func (r *GormCustomerRepository) FindByRemoteID(ctx context.Context, remoteID string) (*subscription.Customer, error) {
	var model models.CustomerModel
	if err := conn(ctx, r.db).Where("remote_id = ?", remoteID).First(&model).Error; err != nil {
		return nil, translateError(err, subscription.ErrCustomerNotFound)
	}
	return model.ToDomain(), nil
}

// Save inserts or updates a customer by primary key
func (r *GormCustomerRepository) Save(ctx context.Context, customer *subscription.Customer) error {
	model := models.CustomerModelFromDomain(customer)
	return translateError(conn(ctx, r.db).Save(model).Error, subscription.ErrCustomerNotFound)
}
