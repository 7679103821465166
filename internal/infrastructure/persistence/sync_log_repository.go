package persistence

import (
	"context"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errSyncLogNotFound = shared.NewDomainError("NOT_FOUND", "Sync log not found")

// GormSyncLogRepository implements integration.SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Create appends a new log
func (r *GormSyncLogRepository) Create(ctx context.Context, log *integration.SyncLog) error {
	return translateError(conn(ctx, r.db).Create(models.SyncLogModelFromDomain(log)).Error, errSyncLogNotFound)
}

// Update writes counts and status while the stored row is still in progress
func (r *GormSyncLogRepository) Update(ctx context.Context, log *integration.SyncLog) error {
	model := models.SyncLogModelFromDomain(log)
	result := conn(ctx, r.db).Model(&models.SyncLogModel{}).
		Where("id = ? AND status = ?", log.ID, string(integration.SyncLogInProgress)).
		Updates(map[string]any{
			"status":      model.Status,
			"processed":   model.Processed,
			"succeeded":   model.Succeeded,
			"failed":      model.Failed,
			"skipped":     model.Skipped,
			"errors":      model.ErrorsJSON,
			"detail":      model.Detail,
			"finished_at": model.FinishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		conn(ctx, r.db).Model(&models.SyncLogModel{}).Where("id = ?", log.ID).Count(&count)
		if count == 0 {
			return errSyncLogNotFound
		}
		return integration.ErrSyncLogFinalized
	}
	return nil
}

// FindByID finds a log by ID
func (r *GormSyncLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncLog, error) {
	var model models.SyncLogModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateError(err, errSyncLogNotFound)
	}
	return model.ToDomain(), nil
}

// List returns logs newest first
func (r *GormSyncLogRepository) List(ctx context.Context, filter integration.SyncLogFilter) ([]*integration.SyncLog, int64, error) {
	query := conn(ctx, r.db).Model(&models.SyncLogModel{})
	if filter.Operation != "" {
		query = query.Where("operation = ?", string(filter.Operation))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.FinishedBefore != nil {
		query = query.Where("finished_at IS NOT NULL AND finished_at < ?", filter.FinishedBefore.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var rows []models.SyncLogModel
	if err := query.Order("started_at DESC").Limit(limit).Offset(filter.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	logs := make([]*integration.SyncLog, len(rows))
	for i := range rows {
		logs[i] = rows[i].ToDomain()
	}
	return logs, total, nil
}
