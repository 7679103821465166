package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// handleContract upserts a subscription by remote ID. The customer is synced first, outside
// the transaction, since that is a remote call.
func (r *Reconciler) handleContract(ctx context.Context, topic integration.Topic, ev integration.SubscriptionContractEvent) (handled, error) {
	customer, err := r.ensureCustomer(ctx, ev.CustomerID)
	if err != nil {
		return handled{}, err
	}
	snap, err := r.snapshotOf(ctx, ev)
	if err != nil {
		return handled{ref: shared.CustomerRef(customer.ID)}, err
	}

	now := r.clock()
	var h handled
	err = r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		sub, err := r.subs.FindByRemoteIDForUpdate(ctx, ev.ID)
		if shared.IsNotFound(err) {
			created, err := subscription.NewSubscriptionFromRemote(customer.ID, snap, now)
			if err != nil {
				return fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
			}
			if topic == integration.TopicSubscriptionUpdated {
				logger.L(ctx).Warn("webhook.upsert_created_from_update",
					zap.String("remote_id", ev.ID),
					zap.String("subscription_id", created.ID.String()),
				)
			}
			h = handled{ref: shared.SubscriptionRef(created.ID), outcome: OutcomeProcessed, message: "subscription created"}
			return r.subs.Save(ctx, created)
		}
		if err != nil {
			return err
		}

		h.ref = shared.SubscriptionRef(sub.ID)
		out, err := sub.ApplyRemote(snap, now)
		if err != nil {
			return fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
		}
		if out.StatusConflict {
			logger.L(ctx).Warn("Remote status not applicable to local subscription",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("local_status", string(sub.Status)),
				zap.String("remote_status", string(snap.Status)),
			)
		}
		if !out.Applied {
			h.outcome = OutcomeUnchanged
			h.message = "subscription already up to date"
			return nil
		}
		h.outcome = OutcomeProcessed
		h.message = "subscription updated"
		return r.subs.Save(ctx, sub)
	})
	return h, err
}

func (r *Reconciler) ensureCustomer(ctx context.Context, remoteID string) (*subscription.Customer, error) {
	customer, err := r.customers.FindByRemoteID(ctx, remoteID)
	if err == nil {
		return customer, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}
	if r.customerSync == nil {
		return nil, fmt.Errorf("%w: customer %s is unknown", integration.ErrCustomerSyncDeferred, remoteID)
	}
	customer, err = r.customerSync.SyncByRemoteID(ctx, remoteID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrCustomerSyncDeferred, err)
	}
	return customer, nil
}

func (r *Reconciler) snapshotOf(ctx context.Context, ev integration.SubscriptionContractEvent) (subscription.RemoteSnapshot, error) {
	status, err := subscription.ParseStatus(ev.Status)
	if err != nil {
		return subscription.RemoteSnapshot{}, fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
	}
	billingInterval, err := intervalOf(ev.BillingPolicy)
	if err != nil {
		return subscription.RemoteSnapshot{}, err
	}
	deliveryInterval := billingInterval
	if ev.DeliveryPolicy.Interval != "" {
		if deliveryInterval, err = intervalOf(ev.DeliveryPolicy); err != nil {
			return subscription.RemoteSnapshot{}, err
		}
	}

	lines := make([]subscription.LineItem, 0, len(ev.Lines))
	for _, l := range ev.Lines {
		lines = append(lines, subscription.LineItem{
			VariantRef: l.VariantID,
			Title:      l.Title,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
		})
	}

	snap := subscription.RemoteSnapshot{
		RemoteID:         ev.ID,
		Status:           status,
		NextBillingDate:  ev.NextBillingDate,
		NextDeliveryDate: ev.NextDeliveryDate,
		BillingInterval:  billingInterval,
		DeliveryInterval: deliveryInterval,
		LineItems:        lines,
		Currency:         ev.CurrencyCode,
		UpdatedAt:        ev.UpdatedAt,
	}
	if ev.DeliveryAddress != nil {
		snap.DeliveryAddress = subscription.Address(*ev.DeliveryAddress)
	}
	if ev.PaymentMethodID != "" {
		pm := ev.PaymentMethodID
		snap.PaymentMethodRef = &pm
	}
	if ev.SellingPlanID != "" && r.plans != nil {
		plan, err := r.plans.FindByRemoteID(ctx, ev.SellingPlanID)
		switch {
		case err == nil:
			id := plan.ID
			snap.SellingPlanID = &id
		case shared.IsNotFound(err):
			logger.L(ctx).Debug("Contract references an unknown selling plan",
				zap.String("selling_plan_remote_id", ev.SellingPlanID),
			)
		default:
			return snap, err
		}
	}
	return snap, nil
}

func intervalOf(p integration.ContractPolicy) (subscription.Interval, error) {
	unit, err := subscription.ParseIntervalUnit(p.Interval)
	if err != nil {
		return subscription.Interval{}, fmt.Errorf("%w: interval %q", integration.ErrInvalidPayload, p.Interval)
	}
	i, err := subscription.NewInterval(unit, p.IntervalCount)
	if err != nil {
		return subscription.Interval{}, fmt.Errorf("%w: interval count %d", integration.ErrInvalidPayload, p.IntervalCount)
	}
	return i, nil
}

// handleBillingSuccess completes the matching attempt and advances the schedule once
func (r *Reconciler) handleBillingSuccess(ctx context.Context, ev integration.BillingAttemptEvent) (handled, error) {
	var h handled
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		sub, attempt, err := r.loadAttempt(ctx, ev)
		if err != nil || sub == nil {
			h = unmatched(err, ev)
			return err
		}
		h.ref = shared.SubscriptionRef(sub.ID)

		switch attempt.Status {
		case subscription.AttemptSuccess:
			h.outcome = OutcomeUnchanged
			h.message = "attempt already succeeded"
			return nil
		case subscription.AttemptFailed:
			logger.L(ctx).Warn("Success notification for an attempt recorded as failed",
				zap.String("attempt_id", attempt.ID.String()),
				zap.String("remote_attempt_id", ev.ID),
			)
			h.outcome = OutcomeUnchanged
			h.message = "attempt already failed"
			return nil
		}

		if err := attempt.MarkSucceeded(ev.OrderID, r.completedAt(ev)); err != nil {
			return err
		}
		if err := r.attempts.Save(ctx, attempt); err != nil {
			return err
		}
		sub.AdvanceBillingCycle()
		if err := r.subs.Save(ctx, sub); err != nil {
			return err
		}
		r.metrics.RecordChargedAmount(ctx, attempt.Currency, attempt.Amount)
		logger.L(ctx).Info("Billing confirmed by notification",
			zap.String("subscription_id", sub.ID.String()),
			zap.Int("cycle", sub.BillingCycleCount),
			zap.Time("next_billing_date", sub.NextBillingDate),
		)
		h.outcome = OutcomeProcessed
		return nil
	})
	return h, err
}

// handleBillingFailure fails the matching attempt and applies the retry policy
func (r *Reconciler) handleBillingFailure(ctx context.Context, ev integration.BillingAttemptEvent) (handled, error) {
	var h handled
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		sub, attempt, err := r.loadAttempt(ctx, ev)
		if err != nil || sub == nil {
			h = unmatched(err, ev)
			return err
		}
		h.ref = shared.SubscriptionRef(sub.ID)

		if attempt.IsCompleted() {
			h.outcome = OutcomeUnchanged
			h.message = "attempt already " + string(attempt.Status)
			return nil
		}

		code := ev.ErrorCode
		if code == "" {
			code = subscription.AttemptErrorDeclined
		}
		if err := attempt.MarkFailed(code, ev.ErrorMessage, r.completedAt(ev)); err != nil {
			return err
		}
		if err := r.attempts.Save(ctx, attempt); err != nil {
			return err
		}
		exhausted, err := r.policy.Apply(ctx, r.attempts, sub, r.clock())
		if err != nil && !errors.Is(err, subscription.ErrInvalidStatusTransition) {
			return err
		}
		if exhausted {
			if err := r.subs.Save(ctx, sub); err != nil {
				return err
			}
			logger.L(ctx).Warn("Subscription failed after repeated billing failures",
				zap.String("subscription_id", sub.ID.String()),
			)
			h.message = "retry limit reached"
		}
		h.outcome = OutcomeProcessed
		return nil
	})
	return h, err
}

// loadAttempt locks the subscription and finds the attempt by remote ID, then by idempotency key.
// An attempt first seen here is created PENDING for the caller to complete. A nil subscription
// with a nil error means the notification matches nothing local.
func (r *Reconciler) loadAttempt(ctx context.Context, ev integration.BillingAttemptEvent) (*subscription.CustomerSubscription, *subscription.BillingAttempt, error) {
	sub, err := r.subs.FindByRemoteIDForUpdate(ctx, ev.SubscriptionContractID)
	if shared.IsNotFound(err) {
		logger.L(ctx).Warn("Billing notification for an unknown subscription",
			zap.String("remote_subscription_id", ev.SubscriptionContractID),
			zap.String("remote_attempt_id", ev.ID),
		)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	attempt, err := r.attempts.FindByRemoteID(ctx, ev.ID)
	if err == nil {
		return sub, attempt, r.checkOwner(sub, attempt)
	}
	if !shared.IsNotFound(err) {
		return nil, nil, err
	}
	if ev.IdempotencyKey != "" {
		attempt, err = r.attempts.FindByIdempotencyKey(ctx, ev.IdempotencyKey)
		if err == nil {
			attempt.SetRemoteID(ev.ID)
			return sub, attempt, r.checkOwner(sub, attempt)
		}
		if !shared.IsNotFound(err) {
			return nil, nil, err
		}
	}

	key := ev.IdempotencyKey
	if key == "" {
		key = "remote:" + ev.ID
	}
	attempt, err = subscription.NewBillingAttempt(sub.ID, sub.TotalPrice, sub.Currency, key, r.completedAt(ev))
	if err != nil {
		return nil, nil, err
	}
	attempt.SetRemoteID(ev.ID)
	logger.L(ctx).Info("Recording billing attempt first seen in a notification",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("remote_attempt_id", ev.ID),
	)
	return sub, attempt, nil
}

func (r *Reconciler) checkOwner(sub *subscription.CustomerSubscription, attempt *subscription.BillingAttempt) error {
	if attempt.SubscriptionID != sub.ID {
		return fmt.Errorf("attempt %s belongs to subscription %s, not %s", attempt.ID, attempt.SubscriptionID, sub.ID)
	}
	return nil
}

func (r *Reconciler) completedAt(ev integration.BillingAttemptEvent) time.Time {
	if ev.CompletedAt != nil && !ev.CompletedAt.IsZero() {
		return *ev.CompletedAt
	}
	return r.clock()
}

func unmatched(err error, ev integration.BillingAttemptEvent) handled {
	if err != nil {
		return handled{}
	}
	return handled{outcome: OutcomeUnmatched, message: "no local subscription for " + ev.SubscriptionContractID}
}

// handlePaymentMethodRevoked pauses every live subscription charging the revoked method
func (r *Reconciler) handlePaymentMethodRevoked(ctx context.Context, ev integration.PaymentMethodEvent) (handled, error) {
	var h handled
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		subs, err := r.subs.FindByPaymentMethod(ctx, ev.ID)
		if err != nil {
			return err
		}
		changed := 0
		for _, candidate := range subs {
			sub, err := r.subs.FindByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if sub.PaymentMethodRef == nil || *sub.PaymentMethodRef != ev.ID || sub.Status.IsTerminal() {
				continue
			}
			h.ref = shared.CustomerRef(sub.CustomerID)
			if sub.Status == subscription.StatusActive {
				if err := sub.Pause(); err != nil {
					return err
				}
			}
			sub.ClearPaymentMethod()
			sub.MarkDirty()
			if err := r.subs.Save(ctx, sub); err != nil {
				return err
			}
			changed++
			logger.L(ctx).Info("Subscription paused after payment method revocation",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("payment_method_ref", ev.ID),
			)
		}
		if changed == 0 {
			h.outcome = OutcomeUnmatched
			h.message = "no subscription uses " + ev.ID
			return nil
		}
		h.outcome = OutcomeProcessed
		h.message = fmt.Sprintf("%d subscription(s) paused", changed)
		return nil
	})
	return h, err
}

// handlePaymentMethodCreated attaches the new method to the customer's ACTIVE subscriptions that have none
func (r *Reconciler) handlePaymentMethodCreated(ctx context.Context, ev integration.PaymentMethodEvent) (handled, error) {
	customer, err := r.customers.FindByRemoteID(ctx, ev.CustomerID)
	if shared.IsNotFound(err) {
		logger.L(ctx).Info("Payment method for an unknown customer",
			zap.String("remote_customer_id", ev.CustomerID),
		)
		return handled{outcome: OutcomeUnmatched, message: "no local customer for " + ev.CustomerID}, nil
	}
	if err != nil {
		return handled{}, err
	}

	h := handled{ref: shared.CustomerRef(customer.ID)}
	err = r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		subs, err := r.subs.FindActiveWithoutPaymentMethod(ctx, customer.ID)
		if err != nil {
			return err
		}
		attached := 0
		for _, candidate := range subs {
			sub, err := r.subs.FindByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if sub.Status != subscription.StatusActive || sub.HasPaymentMethod() {
				continue
			}
			sub.AttachPaymentMethod(ev.ID)
			sub.MarkDirty()
			if err := r.subs.Save(ctx, sub); err != nil {
				return err
			}
			attached++
		}
		if attached == 0 {
			h.outcome = OutcomeUnchanged
			h.message = "no subscription needed a payment method"
			return nil
		}
		h.outcome = OutcomeProcessed
		h.message = fmt.Sprintf("payment method attached to %d subscription(s)", attached)
		return nil
	})
	return h, err
}
