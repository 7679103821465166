package subscription

import "github.com/eo-nwanze/lavish-sub000/internal/domain/shared"

var (
	ErrSubscriptionNotFound    = shared.NewDomainError("NOT_FOUND", "Subscription not found")
	ErrSellingPlanNotFound     = shared.NewDomainError("NOT_FOUND", "Selling plan not found")
	ErrBillingAttemptNotFound  = shared.NewDomainError("NOT_FOUND", "Billing attempt not found")
	ErrCustomerNotFound        = shared.NewDomainError("NOT_FOUND", "Customer not found")
	ErrInvalidStatusTransition = shared.NewDomainError("INVALID_STATUS_TRANSITION", "Subscription status transition not allowed")
	ErrInvalidInterval         = shared.NewDomainError("INVALID_INTERVAL", "Interval unit must be DAY, WEEK, MONTH or YEAR with a positive count")
	ErrInvalidCurrency         = shared.NewDomainError("INVALID_CURRENCY", "Currency must be an ISO 4217 code")
	ErrInvalidLineItem         = shared.NewDomainError("INVALID_LINE_ITEM", "Line items need a variant, a positive quantity and a non-negative price")
	ErrEmptyLineItems          = shared.NewDomainError("EMPTY_LINE_ITEMS", "Subscription needs at least one line item")
	ErrInvalidPriceAdjustment  = shared.NewDomainError("INVALID_PRICE_ADJUSTMENT", "Price adjustment is out of range for its kind")
	ErrAttemptAlreadyCompleted = shared.NewDomainError("ATTEMPT_ALREADY_COMPLETED", "Billing attempt is already completed")
	ErrRemoteIDMismatch        = shared.NewDomainError("REMOTE_ID_MISMATCH", "Entity already carries a different remote identity")
	ErrCycleCounterDecrease    = shared.NewDomainError("CYCLE_COUNTER_DECREASE", "Billing cycle counter cannot decrease")
)
