package models

import (
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// SyncStateModel holds the sync cursor columns shared by plans and subscriptions
type SyncStateModel struct {
	RemoteID      *string `gorm:"type:varchar(255);uniqueIndex"`
	NeedsPush     bool    `gorm:"not null;default:false;index"`
	PushBlocked   bool    `gorm:"not null;default:false"`
	LastPushError string  `gorm:"type:text"`
	LastPushedAt  *time.Time
	LastPulledAt  *time.Time
}

// ToDomain converts the columns to the domain SyncState
func (m *SyncStateModel) ToDomain() subscription.SyncState {
	return subscription.SyncState{
		RemoteID:      m.RemoteID,
		NeedsPush:     m.NeedsPush,
		PushBlocked:   m.PushBlocked,
		LastPushError: m.LastPushError,
		LastPushedAt:  utcPtr(m.LastPushedAt),
		LastPulledAt:  utcPtr(m.LastPulledAt),
	}
}

// FromDomainSyncState populates the columns from the domain SyncState
func (m *SyncStateModel) FromDomainSyncState(s subscription.SyncState) {
	m.RemoteID = s.RemoteID
	m.NeedsPush = s.NeedsPush
	m.PushBlocked = s.PushBlocked
	m.LastPushError = s.LastPushError
	m.LastPushedAt = s.LastPushedAt
	m.LastPulledAt = s.LastPulledAt
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
