package audit

import (
	"context"
	"fmt"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/google/uuid"
)

// LookupFunc loads one entity of a kind by local ID
type LookupFunc func(ctx context.Context, id uuid.UUID) (any, error)

// Resolver dereferences EntityRefs through a table of per-kind lookups
type Resolver struct {
	lookups map[shared.EntityKind]LookupFunc
}

// NewResolver wires a lookup for every entity kind
func NewResolver(
	plans subscription.SellingPlanRepository,
	subs subscription.SubscriptionRepository,
	attempts subscription.BillingAttemptRepository,
	customers subscription.CustomerRepository,
) *Resolver {
	return &Resolver{lookups: map[shared.EntityKind]LookupFunc{
		shared.EntityKindSellingPlan: func(ctx context.Context, id uuid.UUID) (any, error) {
			return plans.FindByID(ctx, id)
		},
		shared.EntityKindSubscription: func(ctx context.Context, id uuid.UUID) (any, error) {
			return subs.FindByID(ctx, id)
		},
		shared.EntityKindBillingAttempt: func(ctx context.Context, id uuid.UUID) (any, error) {
			return attempts.FindByID(ctx, id)
		},
		shared.EntityKindCustomer: func(ctx context.Context, id uuid.UUID) (any, error) {
			return customers.FindByID(ctx, id)
		},
	}}
}

// Resolve returns the referenced entity
func (r *Resolver) Resolve(ctx context.Context, ref shared.EntityRef) (any, error) {
	lookup, ok := r.lookups[ref.Kind]
	if !ok {
		return nil, shared.NewDomainError("INVALID_ENTITY_KIND", fmt.Sprintf("unknown entity kind %q", ref.Kind))
	}
	return lookup(ctx, ref.ID)
}
