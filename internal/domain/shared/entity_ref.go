package shared

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// EntityKind is the closed set of entity types that audit records may point at
type EntityKind string

const (
	EntityKindSellingPlan    EntityKind = "SELLING_PLAN"
	EntityKindSubscription   EntityKind = "SUBSCRIPTION"
	EntityKindBillingAttempt EntityKind = "BILLING_ATTEMPT"
	EntityKindCustomer       EntityKind = "CUSTOMER"
)

// EntityKinds lists every valid kind
var EntityKinds = []EntityKind{
	EntityKindSellingPlan,
	EntityKindSubscription,
	EntityKindBillingAttempt,
	EntityKindCustomer,
}

// IsValid returns true if the kind is one of the known kinds
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityKindSellingPlan, EntityKindSubscription, EntityKindBillingAttempt, EntityKindCustomer:
		return true
	}
	return false
}

// String returns the string representation
func (k EntityKind) String() string {
	return string(k)
}

// ParseEntityKind parses a kind name case-insensitively
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", NewDomainError("INVALID_ENTITY_KIND", fmt.Sprintf("unknown entity kind %q", s))
	}
	return k, nil
}

// EntityRef is a typed pointer at a single entity: a kind plus the local ID
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

// NewEntityRef builds a reference, rejecting unknown kinds and nil IDs
func NewEntityRef(kind EntityKind, id uuid.UUID) (EntityRef, error) {
	if !kind.IsValid() {
		return EntityRef{}, NewDomainError("INVALID_ENTITY_KIND", fmt.Sprintf("unknown entity kind %q", kind))
	}
	if id == uuid.Nil {
		return EntityRef{}, NewDomainError("INVALID_ENTITY_ID", "entity id cannot be empty")
	}
	return EntityRef{Kind: kind, ID: id}, nil
}

// IsZero reports whether the ref is unset
func (r EntityRef) IsZero() bool {
	return r.Kind == "" && r.ID == uuid.Nil
}

// String renders the ref as KIND/uuid
func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

// SubscriptionRef is shorthand for a subscription reference
func SubscriptionRef(id uuid.UUID) EntityRef {
	return EntityRef{Kind: EntityKindSubscription, ID: id}
}

// SellingPlanRef is shorthand for a selling plan reference
func SellingPlanRef(id uuid.UUID) EntityRef {
	return EntityRef{Kind: EntityKindSellingPlan, ID: id}
}

// BillingAttemptRef is shorthand for a billing attempt reference
func BillingAttemptRef(id uuid.UUID) EntityRef {
	return EntityRef{Kind: EntityKindBillingAttempt, ID: id}
}

// CustomerRef is shorthand for a customer reference
func CustomerRef(id uuid.UUID) EntityRef {
	return EntityRef{Kind: EntityKindCustomer, ID: id}
}
