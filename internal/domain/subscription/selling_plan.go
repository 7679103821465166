package subscription

import (
	"strings"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PriceAdjustmentKind selects how a plan modifies the line item price
type PriceAdjustmentKind string

const (
	AdjustmentPercentage  PriceAdjustmentKind = "PERCENTAGE"
	AdjustmentFixedAmount PriceAdjustmentKind = "FIXED_AMOUNT"
	AdjustmentFixedPrice  PriceAdjustmentKind = "FIXED_PRICE"
)

// IsValid returns true if the kind is known
func (k PriceAdjustmentKind) IsValid() bool {
	switch k {
	case AdjustmentPercentage, AdjustmentFixedAmount, AdjustmentFixedPrice:
		return true
	}
	return false
}

// PriceAdjustment is a plan's discount rule
type PriceAdjustment struct {
	Kind  PriceAdjustmentKind
	Value decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Validate checks the value is in range for the kind
func (a PriceAdjustment) Validate() error {
	if !a.Kind.IsValid() || a.Value.IsNegative() {
		return ErrInvalidPriceAdjustment
	}
	if a.Kind == AdjustmentPercentage && a.Value.GreaterThan(hundred) {
		return ErrInvalidPriceAdjustment
	}
	return nil
}

// Apply returns the adjusted unit price, never below zero
func (a PriceAdjustment) Apply(price decimal.Decimal) decimal.Decimal {
	var out decimal.Decimal
	switch a.Kind {
	case AdjustmentPercentage:
		out = price.Mul(hundred.Sub(a.Value)).Div(hundred)
	case AdjustmentFixedAmount:
		out = price.Sub(a.Value)
	case AdjustmentFixedPrice:
		out = a.Value
	default:
		out = price
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out.Round(2)
}

// SellingPlan is a recurring-purchase offer
type SellingPlan struct {
	shared.BaseEntity
	SyncState
	Name             string
	BillingInterval  Interval
	DeliveryInterval Interval
	Adjustment       PriceAdjustment
	Active           bool
}

// SellingPlanParams carries the mutable plan attributes
type SellingPlanParams struct {
	Name             string
	BillingInterval  Interval
	DeliveryInterval Interval
	Adjustment       PriceAdjustment
}

func (p SellingPlanParams) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return shared.NewDomainError("INVALID_NAME", "Selling plan name cannot be empty")
	}
	if err := p.BillingInterval.Validate(); err != nil {
		return err
	}
	if err := p.DeliveryInterval.Validate(); err != nil {
		return err
	}
	return p.Adjustment.Validate()
}

// NewSellingPlan creates a locally-authored plan that still needs to be pushed
func NewSellingPlan(p SellingPlanParams) (*SellingPlan, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	plan := &SellingPlan{
		BaseEntity:       shared.NewBaseEntity(),
		Name:             strings.TrimSpace(p.Name),
		BillingInterval:  p.BillingInterval,
		DeliveryInterval: p.DeliveryInterval,
		Adjustment:       p.Adjustment,
		Active:           true,
	}
	plan.MarkDirty()
	return plan, nil
}

// NewSellingPlanFromRemote materializes a plan pulled from the remote platform. It is not dirty.
func NewSellingPlanFromRemote(remoteID string, p SellingPlanParams) (*SellingPlan, error) {
	plan, err := NewSellingPlan(p)
	if err != nil {
		return nil, err
	}
	if err := plan.AssignRemoteID(remoteID); err != nil {
		return nil, err
	}
	plan.NeedsPush = false
	return plan, nil
}

// Update replaces the plan attributes and returns the changed fields.
// The caller decides whether to MarkDirty based on the change set.
func (p *SellingPlan) Update(params SellingPlanParams) (ChangeSet, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	before := *p
	p.Name = strings.TrimSpace(params.Name)
	p.BillingInterval = params.BillingInterval
	p.DeliveryInterval = params.DeliveryInterval
	p.Adjustment = params.Adjustment
	changes := DiffPlans(&before, p)
	if !changes.Empty() {
		p.Touch()
	}
	return changes, nil
}

// Deactivate retires the plan. Plans are never deleted.
func (p *SellingPlan) Deactivate() bool {
	if !p.Active {
		return false
	}
	p.Active = false
	p.Touch()
	return true
}
