package integration

import (
	"context"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// CommerceGateway Port Interface
// ---------------------------------------------------------------------------

// SubscriptionContext carries the remote identities a subscription push needs besides the
// subscription itself
type SubscriptionContext struct {
	CustomerRemoteID    string
	SellingPlanRemoteID string
	// IdempotencyKey makes a repeated create return the contract of the first call.
	// Only creates carry one.
	IdempotencyKey string
}

// ChargeRequest asks the remote platform to bill one cycle of a contract
type ChargeRequest struct {
	SubscriptionRemoteID string
	IdempotencyKey       string
	Amount               decimal.Decimal
	Currency             string
	OriginTime           time.Time
}

// ChargeStatus is the remote outcome of a charge
type ChargeStatus string

const (
	// ChargeSucceeded means the remote created the order synchronously
	ChargeSucceeded ChargeStatus = "SUCCEEDED"
	// ChargePending means the remote accepted the attempt and will report the result by notification
	ChargePending ChargeStatus = "PENDING"
	// ChargeDeclined means the payment itself failed
	ChargeDeclined ChargeStatus = "DECLINED"
)

// ChargeResult is what the remote returned for a charge
type ChargeResult struct {
	RemoteAttemptID string
	Status          ChargeStatus
	RemoteOrderRef  string
	ErrorCode       string
	ErrorMessage    string
}

// RemoteCustomer is the remote customer profile
type RemoteCustomer struct {
	RemoteID  string
	Email     string
	FirstName string
	LastName  string
}

// CommerceGateway defines the port interface for the remote commerce platform.
// Implementations must honour ctx deadlines and classify every failure as either
// ErrRemoteUnavailable (transient) or a *RemoteValidationError.
type CommerceGateway interface {
	// CreateSellingPlan creates the plan remotely and returns its remote ID
	CreateSellingPlan(ctx context.Context, plan *subscription.SellingPlan) (string, error)
	// UpdateSellingPlan updates an existing remote plan
	UpdateSellingPlan(ctx context.Context, plan *subscription.SellingPlan) error

	// CreateSubscription creates the contract remotely and returns its remote ID
	CreateSubscription(ctx context.Context, sub *subscription.CustomerSubscription, sc SubscriptionContext) (string, error)
	// UpdateSubscription updates an existing remote contract, including pause/resume
	UpdateSubscription(ctx context.Context, sub *subscription.CustomerSubscription, sc SubscriptionContext) error
	// CancelSubscription cancels a remote contract
	CancelSubscription(ctx context.Context, remoteID string) error

	// CreateBillingAttempt charges one cycle of a remote contract
	CreateBillingAttempt(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// FetchCustomer reads a remote customer profile
	FetchCustomer(ctx context.Context, remoteID string) (*RemoteCustomer, error)
}
