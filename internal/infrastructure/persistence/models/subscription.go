package models

import (
	"encoding/json"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// SellingPlanModel
// ---------------------------------------------------------------------------

// SellingPlanModel is the persistence model for the SellingPlan domain entity.
type SellingPlanModel struct {
	BaseModel
	SyncStateModel
	Name                  string          `gorm:"type:varchar(255);not null"`
	BillingInterval       string          `gorm:"type:varchar(10);not null"`
	BillingIntervalCount  int             `gorm:"not null"`
	DeliveryInterval      string          `gorm:"type:varchar(10);not null"`
	DeliveryIntervalCount int             `gorm:"not null"`
	AdjustmentKind        string          `gorm:"type:varchar(20);not null"`
	AdjustmentValue       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Active                bool            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SellingPlanModel) TableName() string {
	return "selling_plans"
}

// ToDomain converts the persistence model to a domain SellingPlan entity.
func (m *SellingPlanModel) ToDomain() *subscription.SellingPlan {
	return &subscription.SellingPlan{
		BaseEntity: m.BaseModel.ToDomain(),
		SyncState:  m.SyncStateModel.ToDomain(),
		Name:       m.Name,
		BillingInterval: subscription.Interval{
			Unit:  subscription.IntervalUnit(m.BillingInterval),
			Count: m.BillingIntervalCount,
		},
		DeliveryInterval: subscription.Interval{
			Unit:  subscription.IntervalUnit(m.DeliveryInterval),
			Count: m.DeliveryIntervalCount,
		},
		Adjustment: subscription.PriceAdjustment{
			Kind:  subscription.PriceAdjustmentKind(m.AdjustmentKind),
			Value: m.AdjustmentValue,
		},
		Active: m.Active,
	}
}

// FromDomain populates the persistence model from a domain SellingPlan entity.
func (m *SellingPlanModel) FromDomain(p *subscription.SellingPlan) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.FromDomainSyncState(p.SyncState)
	m.Name = p.Name
	m.BillingInterval = string(p.BillingInterval.Unit)
	m.BillingIntervalCount = p.BillingInterval.Count
	m.DeliveryInterval = string(p.DeliveryInterval.Unit)
	m.DeliveryIntervalCount = p.DeliveryInterval.Count
	m.AdjustmentKind = string(p.Adjustment.Kind)
	m.AdjustmentValue = p.Adjustment.Value
	m.Active = p.Active
}

// SellingPlanModelFromDomain creates a new persistence model from a domain SellingPlan entity.
func SellingPlanModelFromDomain(p *subscription.SellingPlan) *SellingPlanModel {
	m := &SellingPlanModel{}
	m.FromDomain(p)
	return m
}

// ---------------------------------------------------------------------------
// SubscriptionModel
// ---------------------------------------------------------------------------

// SubscriptionModel is the persistence model for the CustomerSubscription domain entity.
// Line items and the delivery address are stored as JSON documents.
type SubscriptionModel struct {
	BaseModel
	SyncStateModel
	CustomerID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	SellingPlanID         *uuid.UUID      `gorm:"type:uuid;index"`
	Status                string          `gorm:"type:varchar(20);not null;index:idx_subscription_billing_due,priority:1"`
	NextBillingDate       time.Time       `gorm:"type:date;not null;index:idx_subscription_billing_due,priority:2"`
	NextDeliveryDate      *time.Time      `gorm:"type:date"`
	BillingInterval       string          `gorm:"type:varchar(10);not null"`
	BillingIntervalCount  int             `gorm:"not null"`
	DeliveryInterval      string          `gorm:"type:varchar(10);not null"`
	DeliveryIntervalCount int             `gorm:"not null"`
	LineItemsJSON         string          `gorm:"type:jsonb;column:line_items;not null"`
	TotalPrice            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency              string          `gorm:"type:varchar(3);not null"`
	DeliveryAddressJSON   string          `gorm:"type:jsonb;column:delivery_address"`
	PaymentMethodRef      *string         `gorm:"type:varchar(255);index"`
	BillingCycleCount     int             `gorm:"not null;default:0"`
	BillingAnchorDay      int             `gorm:"type:smallint;not null;default:0"`
	DeliveryAnchorDay     int             `gorm:"type:smallint;not null;default:0"`
	TotalCycles           *int
	CancelledAt           *time.Time
	RemoteUpdatedAt       *time.Time
	Version               int `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string {
	return "customer_subscriptions"
}

// ToDomain converts the persistence model to a domain CustomerSubscription entity.
func (m *SubscriptionModel) ToDomain() *subscription.CustomerSubscription {
	s := &subscription.CustomerSubscription{
		BaseEntity:      m.BaseModel.ToDomain(),
		SyncState:       m.SyncStateModel.ToDomain(),
		CustomerID:      m.CustomerID,
		SellingPlanID:   m.SellingPlanID,
		Status:          subscription.Status(m.Status),
		NextBillingDate: subscription.DateOnly(m.NextBillingDate),
		BillingInterval: subscription.Interval{
			Unit:  subscription.IntervalUnit(m.BillingInterval),
			Count: m.BillingIntervalCount,
		},
		DeliveryInterval: subscription.Interval{
			Unit:  subscription.IntervalUnit(m.DeliveryInterval),
			Count: m.DeliveryIntervalCount,
		},
		LineItems:         make([]subscription.LineItem, 0),
		TotalPrice:        m.TotalPrice,
		Currency:          m.Currency,
		PaymentMethodRef:  m.PaymentMethodRef,
		BillingCycleCount: m.BillingCycleCount,
		BillingAnchorDay:  m.BillingAnchorDay,
		DeliveryAnchorDay: m.DeliveryAnchorDay,
		TotalCycles:       m.TotalCycles,
		CancelledAt:       utcPtr(m.CancelledAt),
		RemoteUpdatedAt:   utcPtr(m.RemoteUpdatedAt),
		Version:           m.Version,
	}
	if m.NextDeliveryDate != nil {
		d := subscription.DateOnly(*m.NextDeliveryDate)
		s.NextDeliveryDate = &d
	}
	if m.LineItemsJSON != "" {
		var items []subscription.LineItem
		if err := json.Unmarshal([]byte(m.LineItemsJSON), &items); err == nil {
			s.LineItems = items
		}
	}
	if m.DeliveryAddressJSON != "" {
		var addr subscription.Address
		if err := json.Unmarshal([]byte(m.DeliveryAddressJSON), &addr); err == nil {
			s.DeliveryAddress = addr
		}
	}
	return s
}

// FromDomain populates the persistence model from a domain CustomerSubscription entity.
func (m *SubscriptionModel) FromDomain(s *subscription.CustomerSubscription) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.FromDomainSyncState(s.SyncState)
	m.CustomerID = s.CustomerID
	m.SellingPlanID = s.SellingPlanID
	m.Status = string(s.Status)
	m.NextBillingDate = subscription.DateOnly(s.NextBillingDate)
	m.NextDeliveryDate = s.NextDeliveryDate
	m.BillingInterval = string(s.BillingInterval.Unit)
	m.BillingIntervalCount = s.BillingInterval.Count
	m.DeliveryInterval = string(s.DeliveryInterval.Unit)
	m.DeliveryIntervalCount = s.DeliveryInterval.Count
	m.TotalPrice = s.TotalPrice
	m.Currency = s.Currency
	m.PaymentMethodRef = s.PaymentMethodRef
	m.BillingCycleCount = s.BillingCycleCount
	m.BillingAnchorDay = s.BillingAnchorDay
	m.DeliveryAnchorDay = s.DeliveryAnchorDay
	m.TotalCycles = s.TotalCycles
	m.CancelledAt = s.CancelledAt
	m.RemoteUpdatedAt = s.RemoteUpdatedAt
	m.Version = s.Version

	items := s.LineItems
	if items == nil {
		items = []subscription.LineItem{}
	}
	if data, err := json.Marshal(items); err == nil {
		m.LineItemsJSON = string(data)
	}
	if data, err := json.Marshal(s.DeliveryAddress); err == nil {
		m.DeliveryAddressJSON = string(data)
	}
}

// SubscriptionModelFromDomain creates a new persistence model from a domain CustomerSubscription entity.
func SubscriptionModelFromDomain(s *subscription.CustomerSubscription) *SubscriptionModel {
	m := &SubscriptionModel{}
	m.FromDomain(s)
	return m
}

// ---------------------------------------------------------------------------
// BillingAttemptModel
// ---------------------------------------------------------------------------

// BillingAttemptModel is the persistence model for the BillingAttempt domain entity.
type BillingAttemptModel struct {
	BaseModel
	RemoteID       *string         `gorm:"type:varchar(255);uniqueIndex"`
	SubscriptionID uuid.UUID       `gorm:"type:uuid;not null;index:idx_billing_attempt_window,priority:1"`
	Status         string          `gorm:"type:varchar(20);not null;index:idx_billing_attempt_window,priority:2"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	RemoteOrderRef *string         `gorm:"type:varchar(255)"`
	ErrorCode      string          `gorm:"type:varchar(50)"`
	ErrorMessage   string          `gorm:"type:text"`
	IdempotencyKey string          `gorm:"type:varchar(255);not null;uniqueIndex"`
	AttemptedAt    time.Time       `gorm:"not null;index:idx_billing_attempt_window,priority:3"`
	CompletedAt    *time.Time
}

// TableName returns the table name for GORM
func (BillingAttemptModel) TableName() string {
	return "billing_attempts"
}

// ToDomain converts the persistence model to a domain BillingAttempt entity.
func (m *BillingAttemptModel) ToDomain() *subscription.BillingAttempt {
	return &subscription.BillingAttempt{
		BaseEntity:     m.BaseModel.ToDomain(),
		RemoteID:       m.RemoteID,
		SubscriptionID: m.SubscriptionID,
		Status:         subscription.AttemptStatus(m.Status),
		Amount:         m.Amount,
		Currency:       m.Currency,
		RemoteOrderRef: m.RemoteOrderRef,
		ErrorCode:      m.ErrorCode,
		ErrorMessage:   m.ErrorMessage,
		IdempotencyKey: m.IdempotencyKey,
		AttemptedAt:    m.AttemptedAt.UTC(),
		CompletedAt:    utcPtr(m.CompletedAt),
	}
}

// FromDomain populates the persistence model from a domain BillingAttempt entity.
func (m *BillingAttemptModel) FromDomain(a *subscription.BillingAttempt) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.RemoteID = a.RemoteID
	m.SubscriptionID = a.SubscriptionID
	m.Status = string(a.Status)
	m.Amount = a.Amount
	m.Currency = a.Currency
	m.RemoteOrderRef = a.RemoteOrderRef
	m.ErrorCode = a.ErrorCode
	m.ErrorMessage = a.ErrorMessage
	m.IdempotencyKey = a.IdempotencyKey
	m.AttemptedAt = a.AttemptedAt
	m.CompletedAt = a.CompletedAt
}

// BillingAttemptModelFromDomain creates a new persistence model from a domain BillingAttempt entity.
func BillingAttemptModelFromDomain(a *subscription.BillingAttempt) *BillingAttemptModel {
	m := &BillingAttemptModel{}
	m.FromDomain(a)
	return m
}

// ---------------------------------------------------------------------------
// CustomerModel
// ---------------------------------------------------------------------------

// CustomerModel is the persistence model for the Customer correlation record.
type CustomerModel struct {
	BaseModel
	RemoteID     *string `gorm:"type:varchar(255);uniqueIndex"`
	Email        string  `gorm:"type:varchar(255);not null;index"`
	FirstName    string  `gorm:"type:varchar(100)"`
	LastName     string  `gorm:"type:varchar(100)"`
	LastPulledAt *time.Time
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer entity.
func (m *CustomerModel) ToDomain() *subscription.Customer {
	return &subscription.Customer{
		BaseEntity:   m.BaseModel.ToDomain(),
		RemoteID:     m.RemoteID,
		Email:        m.Email,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		LastPulledAt: utcPtr(m.LastPulledAt),
	}
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer entity.
func CustomerModelFromDomain(c *subscription.Customer) *CustomerModel {
	m := &CustomerModel{
		RemoteID:     c.RemoteID,
		Email:        c.Email,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		LastPulledAt: c.LastPulledAt,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}
