package models

import (
	"encoding/json"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/google/uuid"
)

// SyncLogModel is the persistence model for the SyncLog audit record.
type SyncLogModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Operation  string     `gorm:"type:varchar(30);not null;index:idx_sync_log_operation,priority:1"`
	Status     string     `gorm:"type:varchar(20);not null;index"`
	DryRun     bool       `gorm:"not null;default:false"`
	Processed  int        `gorm:"not null;default:0"`
	Succeeded  int        `gorm:"not null;default:0"`
	Failed     int        `gorm:"not null;default:0"`
	Skipped    int        `gorm:"not null;default:0"`
	ErrorsJSON string     `gorm:"type:jsonb;column:errors"`
	Detail     string     `gorm:"type:text"`
	StartedAt  time.Time  `gorm:"not null;index:idx_sync_log_operation,priority:2"`
	FinishedAt *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog.
func (m *SyncLogModel) ToDomain() *integration.SyncLog {
	log := &integration.SyncLog{
		ID:         m.ID,
		Operation:  integration.SyncOperation(m.Operation),
		Status:     integration.SyncLogStatus(m.Status),
		DryRun:     m.DryRun,
		Processed:  m.Processed,
		Succeeded:  m.Succeeded,
		Failed:     m.Failed,
		Skipped:    m.Skipped,
		Errors:     make([]integration.SyncError, 0),
		Detail:     m.Detail,
		StartedAt:  m.StartedAt.UTC(),
		FinishedAt: utcPtr(m.FinishedAt),
	}
	if m.ErrorsJSON != "" {
		var errs []integration.SyncError
		if err := json.Unmarshal([]byte(m.ErrorsJSON), &errs); err == nil {
			log.Errors = errs
		}
	}
	return log
}

// SyncLogModelFromDomain creates a new persistence model from a domain SyncLog.
func SyncLogModelFromDomain(l *integration.SyncLog) *SyncLogModel {
	m := &SyncLogModel{
		ID:         l.ID,
		Operation:  string(l.Operation),
		Status:     string(l.Status),
		DryRun:     l.DryRun,
		Processed:  l.Processed,
		Succeeded:  l.Succeeded,
		Failed:     l.Failed,
		Skipped:    l.Skipped,
		Detail:     l.Detail,
		StartedAt:  l.StartedAt,
		FinishedAt: l.FinishedAt,
	}
	errs := l.Errors
	if errs == nil {
		errs = []integration.SyncError{}
	}
	if data, err := json.Marshal(errs); err == nil {
		m.ErrorsJSON = string(data)
	}
	return m
}
