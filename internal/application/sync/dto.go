package sync

import (
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Push failure codes recorded on sync logs
const (
	CodeRemoteValidation  = "REMOTE_VALIDATION"
	CodeTransport         = "TRANSPORT_ERROR"
	CodeRemoteAuth        = "REMOTE_UNAUTHORIZED"
	CodeCustomerNotSynced = "CUSTOMER_NOT_SYNCED"
	CodeLocalError        = "LOCAL_ERROR"
)

// PushResult is the outcome of pushing one entity
type PushResult struct {
	Success  bool                     `json:"success"`
	RemoteID string                   `json:"remote_id,omitempty"`
	Code     string                   `json:"code,omitempty"`
	Message  string                   `json:"message,omitempty"`
	Errors   []integration.FieldError `json:"errors,omitempty"`
	// Blocked is set when the entity will be skipped by batches until edited
	Blocked bool `json:"blocked,omitempty"`
}

// SyncSummary is the outcome of one batch push
type SyncSummary struct {
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	SyncLogID  uuid.UUID `json:"sync_log_id"`
}

// IntervalInput is a unit and count pair
type IntervalInput struct {
	Unit  string `json:"unit" binding:"required,oneof=DAY WEEK MONTH YEAR day week month year"`
	Count int    `json:"count" binding:"required,min=1"`
}

func (i IntervalInput) toDomain() (subscription.Interval, error) {
	unit, err := subscription.ParseIntervalUnit(i.Unit)
	if err != nil {
		return subscription.Interval{}, err
	}
	return subscription.NewInterval(unit, i.Count)
}

// LineItemInput is one requested line item
type LineItemInput struct {
	VariantRef string          `json:"variant_ref" binding:"required"`
	Title      string          `json:"title"`
	Quantity   int             `json:"quantity" binding:"required,min=1"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// AddressInput is a delivery address
type AddressInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Country   string `json:"country"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone"`
}

func (a AddressInput) toDomain() subscription.Address {
	return subscription.Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Address1:  a.Address1,
		Address2:  a.Address2,
		City:      a.City,
		Province:  a.Province,
		Country:   a.Country,
		Zip:       a.Zip,
		Phone:     a.Phone,
	}
}

func lineItemsToDomain(items []LineItemInput) []subscription.LineItem {
	out := make([]subscription.LineItem, len(items))
	for i, item := range items {
		out[i] = subscription.LineItem{
			VariantRef: item.VariantRef,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		}
	}
	return out
}

// CreateSubscriptionInput creates a local subscription
type CreateSubscriptionInput struct {
	CustomerID       uuid.UUID       `json:"customer_id" binding:"required"`
	SellingPlanID    *uuid.UUID      `json:"selling_plan_id"`
	NextBillingDate  time.Time       `json:"next_billing_date" binding:"required"`
	NextDeliveryDate *time.Time      `json:"next_delivery_date"`
	BillingInterval  IntervalInput   `json:"billing_interval" binding:"required"`
	DeliveryInterval IntervalInput   `json:"delivery_interval" binding:"required"`
	LineItems        []LineItemInput `json:"line_items" binding:"required,min=1,dive"`
	Currency         string          `json:"currency" binding:"required,currency"`
	DeliveryAddress  *AddressInput   `json:"delivery_address"`
	PaymentMethodRef *string         `json:"payment_method_ref"`
	TotalCycles      *int            `json:"total_cycles" binding:"omitempty,min=1"`
}

// UpdateSubscriptionInput changes the editable fields of a subscription. Nil fields are left alone.
// An empty PaymentMethodRef clears the payment method.
type UpdateSubscriptionInput struct {
	SellingPlanID    *uuid.UUID       `json:"selling_plan_id"`
	NextBillingDate  *time.Time       `json:"next_billing_date"`
	NextDeliveryDate *time.Time       `json:"next_delivery_date"`
	BillingInterval  *IntervalInput   `json:"billing_interval"`
	DeliveryInterval *IntervalInput   `json:"delivery_interval"`
	LineItems        *[]LineItemInput `json:"line_items" binding:"omitempty,min=1,dive"`
	DeliveryAddress  *AddressInput    `json:"delivery_address"`
	PaymentMethodRef *string          `json:"payment_method_ref"`
	TotalCycles      *int             `json:"total_cycles" binding:"omitempty,min=1"`
}

// SubscriptionResponse is the API view of a subscription
type SubscriptionResponse struct {
	ID                uuid.UUID               `json:"id"`
	RemoteID          *string                 `json:"remote_id,omitempty"`
	CustomerID        uuid.UUID               `json:"customer_id"`
	SellingPlanID     *uuid.UUID              `json:"selling_plan_id,omitempty"`
	Status            string                  `json:"status"`
	NextBillingDate   string                  `json:"next_billing_date"`
	NextDeliveryDate  *string                 `json:"next_delivery_date,omitempty"`
	BillingInterval   string                  `json:"billing_interval"`
	DeliveryInterval  string                  `json:"delivery_interval"`
	LineItems         []subscription.LineItem `json:"line_items"`
	TotalPrice        decimal.Decimal         `json:"total_price"`
	Currency          string                  `json:"currency"`
	DeliveryAddress   subscription.Address    `json:"delivery_address"`
	PaymentMethodRef  *string                 `json:"payment_method_ref,omitempty"`
	BillingCycleCount int                     `json:"billing_cycle_count"`
	TotalCycles       *int                    `json:"total_cycles,omitempty"`
	NeedsPush         bool                    `json:"needs_push"`
	PushBlocked       bool                    `json:"push_blocked"`
	LastPushError     string                  `json:"last_push_error,omitempty"`
	LastPushedAt      *time.Time              `json:"last_pushed_at,omitempty"`
	LastPulledAt      *time.Time              `json:"last_pulled_at,omitempty"`
	CancelledAt       *time.Time              `json:"cancelled_at,omitempty"`
	Version           int                     `json:"version"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

const dateLayout = "2006-01-02"

// ToSubscriptionResponse converts the domain entity
func ToSubscriptionResponse(s *subscription.CustomerSubscription) SubscriptionResponse {
	resp := SubscriptionResponse{
		ID:                s.ID,
		RemoteID:          s.RemoteID,
		CustomerID:        s.CustomerID,
		SellingPlanID:     s.SellingPlanID,
		Status:            string(s.Status),
		NextBillingDate:   s.NextBillingDate.Format(dateLayout),
		BillingInterval:   s.BillingInterval.String(),
		DeliveryInterval:  s.DeliveryInterval.String(),
		LineItems:         s.LineItems,
		TotalPrice:        s.TotalPrice,
		Currency:          s.Currency,
		DeliveryAddress:   s.DeliveryAddress,
		PaymentMethodRef:  s.PaymentMethodRef,
		BillingCycleCount: s.BillingCycleCount,
		TotalCycles:       s.TotalCycles,
		NeedsPush:         s.NeedsPush,
		PushBlocked:       s.PushBlocked,
		LastPushError:     s.LastPushError,
		LastPushedAt:      s.LastPushedAt,
		LastPulledAt:      s.LastPulledAt,
		CancelledAt:       s.CancelledAt,
		Version:           s.Version,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.NextDeliveryDate != nil {
		d := s.NextDeliveryDate.Format(dateLayout)
		resp.NextDeliveryDate = &d
	}
	return resp
}

// SellingPlanInput creates or replaces a plan's attributes
type SellingPlanInput struct {
	Name             string          `json:"name" binding:"required,max=255"`
	BillingInterval  IntervalInput   `json:"billing_interval" binding:"required"`
	DeliveryInterval IntervalInput   `json:"delivery_interval" binding:"required"`
	AdjustmentKind   string          `json:"adjustment_kind" binding:"required,oneof=PERCENTAGE FIXED_AMOUNT FIXED_PRICE"`
	AdjustmentValue  decimal.Decimal `json:"adjustment_value"`
}

func (in SellingPlanInput) toParams() (subscription.SellingPlanParams, error) {
	billing, err := in.BillingInterval.toDomain()
	if err != nil {
		return subscription.SellingPlanParams{}, err
	}
	delivery, err := in.DeliveryInterval.toDomain()
	if err != nil {
		return subscription.SellingPlanParams{}, err
	}
	return subscription.SellingPlanParams{
		Name:             in.Name,
		BillingInterval:  billing,
		DeliveryInterval: delivery,
		Adjustment: subscription.PriceAdjustment{
			Kind:  subscription.PriceAdjustmentKind(in.AdjustmentKind),
			Value: in.AdjustmentValue,
		},
	}, nil
}

// SellingPlanResponse is the API view of a plan
type SellingPlanResponse struct {
	ID               uuid.UUID       `json:"id"`
	RemoteID         *string         `json:"remote_id,omitempty"`
	Name             string          `json:"name"`
	BillingInterval  string          `json:"billing_interval"`
	DeliveryInterval string          `json:"delivery_interval"`
	AdjustmentKind   string          `json:"adjustment_kind"`
	AdjustmentValue  decimal.Decimal `json:"adjustment_value"`
	Active           bool            `json:"active"`
	NeedsPush        bool            `json:"needs_push"`
	PushBlocked      bool            `json:"push_blocked"`
	LastPushError    string          `json:"last_push_error,omitempty"`
	LastPushedAt     *time.Time      `json:"last_pushed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ToSellingPlanResponse converts the domain entity
func ToSellingPlanResponse(p *subscription.SellingPlan) SellingPlanResponse {
	return SellingPlanResponse{
		ID:               p.ID,
		RemoteID:         p.RemoteID,
		Name:             p.Name,
		BillingInterval:  p.BillingInterval.String(),
		DeliveryInterval: p.DeliveryInterval.String(),
		AdjustmentKind:   string(p.Adjustment.Kind),
		AdjustmentValue:  p.Adjustment.Value,
		Active:           p.Active,
		NeedsPush:        p.NeedsPush,
		PushBlocked:      p.PushBlocked,
		LastPushError:    p.LastPushError,
		LastPushedAt:     p.LastPushedAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
