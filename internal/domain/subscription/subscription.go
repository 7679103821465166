package subscription

import (
	"strings"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status is the lifecycle state of a subscription
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
	StatusFailed    Status = "FAILED"
)

// IsValid returns true if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCancelled, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports CANCELLED and EXPIRED
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// ParseStatus accepts any casing
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", shared.NewDomainError("INVALID_STATUS", "Unknown subscription status "+s)
	}
	return st, nil
}

// transitions holds the allowed forward moves. FAILED -> ACTIVE is only reachable
// through Reactivate and is deliberately absent.
var transitions = map[Status][]Status{
	StatusActive: {StatusPaused, StatusCancelled, StatusExpired, StatusFailed},
	StatusPaused: {StatusActive, StatusCancelled},
	StatusFailed: {StatusCancelled},
}

// CanTransitionTo reports whether a move from s to target is permitted
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Value objects
// ---------------------------------------------------------------------------

// LineItem is one product variant on a subscription
type LineItem struct {
	VariantRef string          `json:"variant_ref"`
	Title      string          `json:"title,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// Subtotal is quantity times unit price
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l LineItem) validate() error {
	if strings.TrimSpace(l.VariantRef) == "" || l.Quantity <= 0 || l.UnitPrice.IsNegative() {
		return ErrInvalidLineItem
	}
	return nil
}

// Address is the delivery address snapshot taken at the time of the last change
type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Address1  string `json:"address1,omitempty"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city,omitempty"`
	Province  string `json:"province,omitempty"`
	Country   string `json:"country,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// NormalizeCurrency validates an ISO 4217 code and returns it upper-cased
func NormalizeCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "", ErrInvalidCurrency
	}
	return unit.String(), nil
}

// ---------------------------------------------------------------------------
// CustomerSubscription
// ---------------------------------------------------------------------------

// CustomerSubscription is a customer's recurring-order contract
type CustomerSubscription struct {
	shared.BaseEntity
	SyncState
	CustomerID        uuid.UUID
	SellingPlanID     *uuid.UUID
	Status            Status
	NextBillingDate   time.Time
	NextDeliveryDate  *time.Time
	BillingInterval   Interval
	DeliveryInterval  Interval
	LineItems         []LineItem
	TotalPrice        decimal.Decimal
	Currency          string
	DeliveryAddress   Address
	PaymentMethodRef  *string
	BillingCycleCount int
	TotalCycles       *int
	CancelledAt       *time.Time
	// BillingAnchorDay and DeliveryAnchorDay are the days of month the schedules return to
	// after a short month clamps them; 0 means the current date's day
	BillingAnchorDay  int
	DeliveryAnchorDay int
	// RemoteUpdatedAt is the remote platform's own modification time of the last applied snapshot
	RemoteUpdatedAt *time.Time
	Version         int
}

// NewSubscriptionParams are the inputs for a locally-created subscription
type NewSubscriptionParams struct {
	CustomerID       uuid.UUID
	SellingPlanID    *uuid.UUID
	NextBillingDate  time.Time
	NextDeliveryDate *time.Time
	BillingInterval  Interval
	DeliveryInterval Interval
	LineItems        []LineItem
	Currency         string
	DeliveryAddress  Address
	PaymentMethodRef *string
	TotalCycles      *int
}

// NewCustomerSubscription validates the params and returns an ACTIVE, dirty subscription
func NewCustomerSubscription(p NewSubscriptionParams) (*CustomerSubscription, error) {
	if p.CustomerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer is required")
	}
	if p.NextBillingDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_BILLING_DATE", "Next billing date is required")
	}
	if err := p.BillingInterval.Validate(); err != nil {
		return nil, err
	}
	if err := p.DeliveryInterval.Validate(); err != nil {
		return nil, err
	}
	if p.TotalCycles != nil && *p.TotalCycles < 1 {
		return nil, shared.NewDomainError("INVALID_TOTAL_CYCLES", "Total cycles must be positive when set")
	}
	cur, err := NormalizeCurrency(p.Currency)
	if err != nil {
		return nil, err
	}

	s := &CustomerSubscription{
		BaseEntity:       shared.NewBaseEntity(),
		CustomerID:       p.CustomerID,
		SellingPlanID:    p.SellingPlanID,
		Status:           StatusActive,
		BillingInterval:  p.BillingInterval,
		DeliveryInterval: p.DeliveryInterval,
		Currency:         cur,
		DeliveryAddress:  p.DeliveryAddress,
		TotalCycles:      p.TotalCycles,
	}
	s.SetNextBillingDate(p.NextBillingDate)
	if p.NextDeliveryDate != nil {
		s.SetNextDeliveryDate(*p.NextDeliveryDate)
	}
	if err := s.SetLineItems(p.LineItems); err != nil {
		return nil, err
	}
	if p.PaymentMethodRef != nil {
		s.AttachPaymentMethod(*p.PaymentMethodRef)
	}
	s.MarkDirty()
	return s, nil
}

// SetLineItems replaces the items and recomputes the total
func (s *CustomerSubscription) SetLineItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrEmptyLineItems
	}
	total := decimal.Zero
	copied := make([]LineItem, len(items))
	for i, item := range items {
		if err := item.validate(); err != nil {
			return err
		}
		copied[i] = item
		total = total.Add(item.Subtotal())
	}
	s.LineItems = copied
	s.TotalPrice = total
	return nil
}

// HasPaymentMethod reports whether a payment method is on file
func (s *CustomerSubscription) HasPaymentMethod() bool {
	return s.PaymentMethodRef != nil && *s.PaymentMethodRef != ""
}

// AttachPaymentMethod sets the payment method reference
func (s *CustomerSubscription) AttachPaymentMethod(ref string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return
	}
	s.PaymentMethodRef = &ref
	s.Touch()
}

// ClearPaymentMethod drops the payment method reference
func (s *CustomerSubscription) ClearPaymentMethod() {
	s.PaymentMethodRef = nil
	s.Touch()
}

// IsDueForBilling is the billing eligibility rule: ACTIVE and due on or before today
func (s *CustomerSubscription) IsDueForBilling(today time.Time) bool {
	return s.Status == StatusActive && !DateOnly(s.NextBillingDate).After(DateOnly(today))
}

func (s *CustomerSubscription) transition(target Status) error {
	if s.Status == target {
		return nil
	}
	if !s.Status.CanTransitionTo(target) {
		return ErrInvalidStatusTransition
	}
	s.Status = target
	s.Touch()
	return nil
}

// Pause moves ACTIVE to PAUSED
func (s *CustomerSubscription) Pause() error {
	return s.transition(StatusPaused)
}

// Resume moves PAUSED to ACTIVE
func (s *CustomerSubscription) Resume() error {
	if s.Status != StatusPaused && s.Status != StatusActive {
		return ErrInvalidStatusTransition
	}
	return s.transition(StatusActive)
}

// Cancel ends the contract
func (s *CustomerSubscription) Cancel(at time.Time) error {
	if s.Status == StatusCancelled {
		return nil
	}
	if err := s.transition(StatusCancelled); err != nil {
		return err
	}
	at = at.UTC()
	s.CancelledAt = &at
	return nil
}

// MarkFailed applies the billing policy exhaustion transition
func (s *CustomerSubscription) MarkFailed() error {
	return s.transition(StatusFailed)
}

// Reactivate is the administrative way out of FAILED. The next billing date is reset so
// the subscription is not charged for the days it spent failed.
func (s *CustomerSubscription) Reactivate(nextBilling time.Time) error {
	if s.Status != StatusFailed {
		return ErrInvalidStatusTransition
	}
	if nextBilling.IsZero() {
		return shared.NewDomainError("INVALID_BILLING_DATE", "Next billing date is required")
	}
	s.Status = StatusActive
	s.SetNextBillingDate(nextBilling)
	s.Touch()
	return nil
}

// SetNextBillingDate moves the billing schedule to d and re-anchors its day of month
func (s *CustomerSubscription) SetNextBillingDate(d time.Time) {
	s.NextBillingDate = DateOnly(d)
	s.BillingAnchorDay = anchorFor(s.BillingAnchorDay, s.NextBillingDate)
}

// SetNextDeliveryDate moves the delivery schedule to d and re-anchors its day of month
func (s *CustomerSubscription) SetNextDeliveryDate(d time.Time) {
	d = DateOnly(d)
	s.NextDeliveryDate = &d
	s.DeliveryAnchorDay = anchorFor(s.DeliveryAnchorDay, d)
}

// AdvanceBillingCycle records one successful charge: the cycle counter goes up by one and
// the billing and delivery dates move forward by their intervals. Reaching the cycle ceiling
// expires the subscription.
func (s *CustomerSubscription) AdvanceBillingCycle() {
	s.BillingCycleCount++
	s.NextBillingDate = s.BillingInterval.AdvanceOnDay(DateOnly(s.NextBillingDate), s.BillingAnchorDay)
	if s.NextDeliveryDate != nil {
		next := s.DeliveryInterval.AdvanceOnDay(*s.NextDeliveryDate, s.DeliveryAnchorDay)
		s.NextDeliveryDate = &next
	}
	if s.TotalCycles != nil && s.BillingCycleCount >= *s.TotalCycles && s.Status == StatusActive {
		s.Status = StatusExpired
	}
	s.Touch()
}

// Clone returns a deep copy, used as the "before" side of a Diff
func (s *CustomerSubscription) Clone() *CustomerSubscription {
	c := *s
	c.LineItems = append([]LineItem(nil), s.LineItems...)
	c.RemoteID = cloneString(s.RemoteID)
	c.PaymentMethodRef = cloneString(s.PaymentMethodRef)
	c.SellingPlanID = cloneUUID(s.SellingPlanID)
	c.NextDeliveryDate = cloneTime(s.NextDeliveryDate)
	c.CancelledAt = cloneTime(s.CancelledAt)
	c.LastPushedAt = cloneTime(s.LastPushedAt)
	c.LastPulledAt = cloneTime(s.LastPulledAt)
	c.RemoteUpdatedAt = cloneTime(s.RemoteUpdatedAt)
	if s.TotalCycles != nil {
		v := *s.TotalCycles
		c.TotalCycles = &v
	}
	return &c
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUUID(p *uuid.UUID) *uuid.UUID {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
