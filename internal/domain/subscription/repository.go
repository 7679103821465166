package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SellingPlanFilter narrows plan listings
type SellingPlanFilter struct {
	ActiveOnly bool
	Page       int
	PageSize   int
}

// SubscriptionFilter narrows subscription listings
type SubscriptionFilter struct {
	CustomerID *uuid.UUID
	Status     Status
	NeedsPush  *bool
	// SortBy names a column; unknown columns fall back to created_at
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// DueCursor is a position in the billing scan order (next billing date, then ID).
// A scan resumes strictly after it.
type DueCursor struct {
	NextBillingDate time.Time
	ID              uuid.UUID
}

// CursorOf returns the scan position of sub
func CursorOf(sub *CustomerSubscription) *DueCursor {
	return &DueCursor{NextBillingDate: DateOnly(sub.NextBillingDate), ID: sub.ID}
}

// SellingPlanRepository persists selling plans
type SellingPlanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SellingPlan, error)
	FindByRemoteID(ctx context.Context, remoteID string) (*SellingPlan, error)
	// FindPendingPush returns dirty, unblocked plans oldest first
	FindPendingPush(ctx context.Context, limit int) ([]*SellingPlan, error)
	List(ctx context.Context, filter SellingPlanFilter) ([]*SellingPlan, int64, error)
	// Save inserts new plans and updates existing ones
	Save(ctx context.Context, plan *SellingPlan) error
}

// SubscriptionRepository persists subscriptions. Every writer goes through Save, which
// inserts or updates by local ID under optimistic locking on Version.
type SubscriptionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CustomerSubscription, error)
	// FindByIDForUpdate locks the row for the surrounding transaction where the dialect supports it
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*CustomerSubscription, error)
	FindByRemoteID(ctx context.Context, remoteID string) (*CustomerSubscription, error)
	FindByRemoteIDForUpdate(ctx context.Context, remoteID string) (*CustomerSubscription, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*CustomerSubscription, error)
	// FindPendingPush returns dirty, unblocked subscriptions oldest first
	FindPendingPush(ctx context.Context, limit int) ([]*CustomerSubscription, error)
	// FindDueForBilling returns up to limit ACTIVE subscriptions whose next billing date is on or
	// before today, in scan order, starting after the cursor (nil starts at the beginning)
	FindDueForBilling(ctx context.Context, today time.Time, after *DueCursor, limit int) ([]*CustomerSubscription, error)
	FindByPaymentMethod(ctx context.Context, paymentMethodRef string) ([]*CustomerSubscription, error)
	// FindActiveWithoutPaymentMethod returns a customer's ACTIVE subscriptions that have no payment method
	FindActiveWithoutPaymentMethod(ctx context.Context, customerID uuid.UUID) ([]*CustomerSubscription, error)
	List(ctx context.Context, filter SubscriptionFilter) ([]*CustomerSubscription, int64, error)
	Save(ctx context.Context, sub *CustomerSubscription) error
}

// BillingAttemptRepository persists the append-only attempt history
type BillingAttemptRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*BillingAttempt, error)
	FindByRemoteID(ctx context.Context, remoteID string) (*BillingAttempt, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*BillingAttempt, error)
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]*BillingAttempt, error)
	// CountFailedSince counts FAILED attempts of one subscription attempted at or after since
	CountFailedSince(ctx context.Context, subscriptionID uuid.UUID, since time.Time) (int64, error)
	// FindRetryCandidates returns each subscription ID once when it has at least one and fewer
	// than maxFailures FAILED attempts at or after since
	FindRetryCandidates(ctx context.Context, since time.Time, maxFailures int) ([]uuid.UUID, error)
	// FindPending returns the subscription's attempts still waiting on the remote side, oldest first
	FindPending(ctx context.Context, subscriptionID uuid.UUID) ([]*BillingAttempt, error)
	Save(ctx context.Context, attempt *BillingAttempt) error
}

// CustomerRepository persists the customer correlation records
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByRemoteID(ctx context.Context, remoteID string) (*Customer, error)
	Save(ctx context.Context, customer *Customer) error
}
