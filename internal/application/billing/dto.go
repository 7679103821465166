package billing

import (
	"time"

	"github.com/google/uuid"
)

// Skip reasons. A skip is not a failure and never counts toward the retry policy.
const (
	SkipNoPaymentMethod       = "NO_PAYMENT_METHOD"
	SkipCustomerNotSynced     = "CUSTOMER_NOT_SYNCED"
	SkipSubscriptionNotSynced = "SUBSCRIPTION_NOT_SYNCED"
	SkipAttemptPending        = "ATTEMPT_PENDING"
	SkipNotDue                = "NOT_DUE"
)

// Failure codes for problems on the local side of a charge
const (
	CodeCustomerMissing = "CUSTOMER_MISSING"
	CodeLocalError      = "LOCAL_ERROR"
)

// RunOptions parameterize one scheduler invocation
type RunOptions struct {
	// DryRun evaluates eligibility and writes the log without charging or mutating schedules
	DryRun bool
	// Today overrides the billing date; zero means the current UTC date
	Today time.Time
}

// RunSummary is the outcome of one billing run or retry sweep
type RunSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	// Pending counts charges the remote accepted without a result yet; they are included in Successful
	Pending int `json:"pending"`
	// Exhausted counts subscriptions moved to FAILED by the retry policy during this run
	Exhausted int `json:"exhausted"`
	// ExpiredPending counts stale PENDING attempts closed as transport failures
	ExpiredPending int            `json:"expired_pending"`
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`
	DryRun      bool           `json:"dry_run"`
	SyncLogID   uuid.UUID      `json:"sync_log_id"`
}

func (s *RunSummary) skip(reason string) {
	s.Skipped++
	if s.SkipReasons == nil {
		s.SkipReasons = make(map[string]int)
	}
	s.SkipReasons[reason]++
}
