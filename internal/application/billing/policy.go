package billing

import (
	"context"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
)

// Policy is the billing retry policy: a subscription with MaxFailures failed attempts
// inside the trailing FailureWindow moves to FAILED. An attempt left PENDING for
// PendingTimeout is treated as a transport failure.
type Policy struct {
	MaxFailures    int
	FailureWindow  time.Duration
	PendingTimeout time.Duration
}

// DefaultPolicy returns 3 failures in 7 days, with pending attempts expiring after 48 hours
func DefaultPolicy() Policy {
	return Policy{
		MaxFailures:    3,
		FailureWindow:  7 * 24 * time.Hour,
		PendingTimeout: 48 * time.Hour,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxFailures <= 0 {
		p.MaxFailures = d.MaxFailures
	}
	if p.FailureWindow <= 0 {
		p.FailureWindow = d.FailureWindow
	}
	if p.PendingTimeout <= 0 {
		p.PendingTimeout = d.PendingTimeout
	}
	return p
}

// PendingExpired reports whether an attempt made at attemptedAt has waited too long for a result
func (p Policy) PendingExpired(attemptedAt, now time.Time) bool {
	return now.Sub(attemptedAt) >= p.withDefaults().PendingTimeout
}

// WindowStart is the earliest attempt time that still counts at now
func (p Policy) WindowStart(now time.Time) time.Time {
	return now.UTC().Add(-p.withDefaults().FailureWindow)
}

// Apply counts the subscription's recent failures and moves an ACTIVE subscription to FAILED
// when the cap is reached. It reports whether the transition happened. Call it after the
// failed attempt is saved, in the same transaction.
func (p Policy) Apply(ctx context.Context, attempts subscription.BillingAttemptRepository, sub *subscription.CustomerSubscription, now time.Time) (bool, error) {
	p = p.withDefaults()
	failures, err := attempts.CountFailedSince(ctx, sub.ID, p.WindowStart(now))
	if err != nil {
		return false, err
	}
	if failures < int64(p.MaxFailures) || sub.Status != subscription.StatusActive {
		return false, nil
	}
	if err := sub.MarkFailed(); err != nil {
		return false, err
	}
	return true, nil
}
