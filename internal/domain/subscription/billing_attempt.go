package subscription

import (
	"strconv"
	"strings"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AttemptStatus is the outcome of a billing attempt
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "PENDING"
	AttemptSuccess AttemptStatus = "SUCCESS"
	AttemptFailed  AttemptStatus = "FAILED"
)

// IsValid returns true if the status is known
func (s AttemptStatus) IsValid() bool {
	switch s {
	case AttemptPending, AttemptSuccess, AttemptFailed:
		return true
	}
	return false
}

// Well-known failure codes recorded on attempts
const (
	AttemptErrorTransport  = "TRANSPORT_ERROR"
	AttemptErrorValidation = "REMOTE_VALIDATION"
	AttemptErrorDeclined   = "PAYMENT_DECLINED"
	AttemptErrorUnknown    = "UNKNOWN"
)

// BillingAttempt is one charge attempt against a subscription. It is immutable once completed.
type BillingAttempt struct {
	shared.BaseEntity
	RemoteID       *string
	SubscriptionID uuid.UUID
	Status         AttemptStatus
	Amount         decimal.Decimal
	Currency       string
	RemoteOrderRef *string
	ErrorCode      string
	ErrorMessage   string
	IdempotencyKey string
	AttemptedAt    time.Time
	CompletedAt    *time.Time
}

// NewBillingAttempt opens a PENDING attempt
func NewBillingAttempt(subscriptionID uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string, attemptedAt time.Time) (*BillingAttempt, error) {
	if subscriptionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "Billing attempt needs a subscription")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Billing amount cannot be negative")
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, shared.NewDomainError("INVALID_IDEMPOTENCY_KEY", "Billing attempt needs an idempotency key")
	}
	return &BillingAttempt{
		BaseEntity:     shared.NewBaseEntity(),
		SubscriptionID: subscriptionID,
		Status:         AttemptPending,
		Amount:         amount,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
		AttemptedAt:    attemptedAt.UTC(),
	}, nil
}

// IdempotencyKeyFor derives the per-cycle charge key. The same subscription, cycle and
// billing date always yield the same key, so a re-run on the same day cannot double charge.
func IdempotencyKeyFor(sub *CustomerSubscription) string {
	return sub.ID.String() + ":" + strconv.Itoa(sub.BillingCycleCount+1) + ":" + DateOnly(sub.NextBillingDate).Format("2006-01-02")
}

// IsCompleted reports SUCCESS or FAILED
func (a *BillingAttempt) IsCompleted() bool {
	return a.Status == AttemptSuccess || a.Status == AttemptFailed
}

// SetRemoteID records the remote attempt identity
func (a *BillingAttempt) SetRemoteID(remoteID string) {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return
	}
	a.RemoteID = &remoteID
}

// MarkSucceeded completes the attempt with the resulting remote order
func (a *BillingAttempt) MarkSucceeded(remoteOrderRef string, at time.Time) error {
	if a.IsCompleted() {
		return ErrAttemptAlreadyCompleted
	}
	a.Status = AttemptSuccess
	if remoteOrderRef != "" {
		a.RemoteOrderRef = &remoteOrderRef
	}
	a.complete(at)
	return nil
}

// MarkFailed completes the attempt with an error
func (a *BillingAttempt) MarkFailed(code, message string, at time.Time) error {
	if a.IsCompleted() {
		return ErrAttemptAlreadyCompleted
	}
	if code == "" {
		code = AttemptErrorUnknown
	}
	a.Status = AttemptFailed
	a.ErrorCode = code
	a.ErrorMessage = message
	a.complete(at)
	return nil
}

func (a *BillingAttempt) complete(at time.Time) {
	at = at.UTC()
	a.CompletedAt = &at
	a.Touch()
}
