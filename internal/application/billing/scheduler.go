// Package billing runs unattended recurring billing: it charges due subscriptions through
// the commerce gateway, advances their schedules and applies the retry policy.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/application/audit"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 1000
	// maxKeySuffix bounds the search for an unused retry idempotency key
	maxKeySuffix = 100
)

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomePending
	outcomeSkipped
	outcomeFailed
)

// outcome is what happened to one subscription
type outcome struct {
	kind      outcomeKind
	reason    string
	message   string
	exhausted bool
	// expired counts stale PENDING attempts closed before this charge
	expired int
}

func skipped(reason string) outcome {
	return outcome{kind: outcomeSkipped, reason: reason}
}

func failed(code, message string) outcome {
	return outcome{kind: outcomeFailed, reason: code, message: message}
}

// SchedulerConfig holds the collaborators of a Scheduler
type SchedulerConfig struct {
	Subscriptions subscription.SubscriptionRepository
	Attempts      subscription.BillingAttemptRepository
	Customers     subscription.CustomerRepository
	Gateway       integration.CommerceGateway
	TxManager     shared.TxManager
	Recorder      *audit.Recorder
	Policy        Policy
	// BatchSize is the page size of the due scan; a run keeps paging until the due set is exhausted
	BatchSize int
	Logger    *zap.Logger
}

// Scheduler is the billing automation batch. Each invocation is one sequential pass;
// a failing subscription never aborts the pass.
type Scheduler struct {
	subs      subscription.SubscriptionRepository
	attempts  subscription.BillingAttemptRepository
	customers subscription.CustomerRepository
	gateway   integration.CommerceGateway
	tx        shared.TxManager
	recorder  *audit.Recorder
	policy    Policy
	batchSize int
	clock     func() time.Time
	logger    *zap.Logger
	metrics   *telemetry.SyncMetrics
}

// NewScheduler creates a Scheduler
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Scheduler{
		subs:      cfg.Subscriptions,
		attempts:  cfg.Attempts,
		customers: cfg.Customers,
		gateway:   cfg.Gateway,
		tx:        cfg.TxManager,
		recorder:  cfg.Recorder,
		policy:    cfg.Policy.withDefaults(),
		batchSize: batchSize,
		clock:     time.Now,
		logger:    logger.OrNop(cfg.Logger),
	}
}

// SetMetrics sets the billing counters
func (s *Scheduler) SetMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// SetClock overrides the time source
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Policy returns the effective retry policy
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Run charges every ACTIVE subscription due on or before today. The due set is read in
// keyset pages, so subscriptions that keep being skipped never hide the ones behind them.
func (s *Scheduler) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	p := s.newPass(opts)
	return s.run(ctx, integration.OperationBillingRun, p, func(ctx context.Context, visit func(*subscription.CustomerSubscription)) error {
		// a subscription billed earlier in the run can come due again on a later page
		seen := make(map[uuid.UUID]struct{})
		var after *subscription.DueCursor
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, err := s.subs.FindDueForBilling(ctx, p.today, after, s.batchSize)
			if err != nil {
				return err
			}
			for _, sub := range page {
				if _, ok := seen[sub.ID]; ok {
					continue
				}
				seen[sub.ID] = struct{}{}
				visit(sub)
			}
			if len(page) < s.batchSize {
				return nil
			}
			after = subscription.CursorOf(page[len(page)-1])
		}
	})
}

// RetrySweep re-attempts each subscription that failed at least once, but fewer times than
// the policy cap, inside the failure window. A subscription is retried once per sweep no
// matter how many failed attempts it has.
func (s *Scheduler) RetrySweep(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	p := s.newPass(opts)
	since := s.policy.WindowStart(p.asOf)
	return s.run(ctx, integration.OperationBillingRetrySweep, p, func(ctx context.Context, visit func(*subscription.CustomerSubscription)) error {
		ids, err := s.attempts.FindRetryCandidates(ctx, since, s.policy.MaxFailures)
		if err != nil {
			return err
		}
		subs, err := s.subs.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			visit(sub)
		}
		return nil
	})
}

// pass is the time frame of one invocation. asOf is the billing date at the current
// time of day; eligibility and the failure window are both measured from it.
type pass struct {
	today  time.Time
	asOf   time.Time
	dryRun bool
}

func (s *Scheduler) newPass(opts RunOptions) pass {
	now := s.clock().UTC()
	today := subscription.DateOnly(now)
	if !opts.Today.IsZero() {
		today = subscription.DateOnly(opts.Today)
	}
	return pass{
		today:  today,
		asOf:   today.Add(now.Sub(subscription.DateOnly(now))),
		dryRun: opts.DryRun,
	}
}

func (s *Scheduler) run(
	ctx context.Context,
	op integration.SyncOperation,
	p pass,
	candidates func(context.Context, func(*subscription.CustomerSubscription)) error,
) (*RunSummary, error) {
	dryRun := p.dryRun
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", string(op),
		telemetry.WithAttribute(telemetry.SpanAttrDryRun, dryRun),
	)
	defer span.End()

	ctx, log, err := s.recorder.Begin(ctx, op, dryRun)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	summary := &RunSummary{DryRun: dryRun, SyncLogID: log.ID}
	telemetry.SetAttributes(span, telemetry.SpanAttrSyncLogID, log.ID.String())

	err = candidates(ctx, func(sub *subscription.CustomerSubscription) {
		summary.Total++
		out := s.process(ctx, sub, p)
		s.record(ctx, log, summary, sub, out, dryRun)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		_ = s.recorder.Fail(ctx, log, fmt.Errorf("load billing candidates: %w", err))
		return summary, err
	}

	if err := s.recorder.Finish(ctx, log); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Scheduler) record(ctx context.Context, log *integration.SyncLog, summary *RunSummary, sub *subscription.CustomerSubscription, out outcome, dryRun bool) {
	summary.ExpiredPending += out.expired
	switch out.kind {
	case outcomeSuccess:
		summary.Successful++
		_ = log.RecordSuccess()
		s.metrics.RecordBilling(ctx, telemetry.OutcomeSuccess, "", dryRun)
	case outcomePending:
		summary.Successful++
		summary.Pending++
		_ = log.RecordSuccess()
		s.metrics.RecordBilling(ctx, telemetry.OutcomePending, "", dryRun)
	case outcomeSkipped:
		summary.skip(out.reason)
		_ = log.RecordSkip()
		s.metrics.RecordBilling(ctx, telemetry.OutcomeSkipped, out.reason, dryRun)
		logger.L(ctx).Debug("Billing skipped",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("reason", out.reason),
		)
	case outcomeFailed:
		summary.Failed++
		if out.exhausted {
			summary.Exhausted++
		}
		_ = log.RecordFailure(shared.SubscriptionRef(sub.ID), out.reason, out.message)
		s.metrics.RecordBilling(ctx, telemetry.OutcomeFailed, out.reason, dryRun)
	}
}

// process evaluates and, outside dry-run, charges one subscription
func (s *Scheduler) process(ctx context.Context, sub *subscription.CustomerSubscription, p pass) outcome {
	if !sub.IsDueForBilling(p.today) {
		return skipped(SkipNotDue)
	}
	if !sub.HasPaymentMethod() {
		return skipped(SkipNoPaymentMethod)
	}
	customer, err := s.customers.FindByID(ctx, sub.CustomerID)
	if err != nil {
		if shared.IsNotFound(err) {
			return failed(CodeCustomerMissing, fmt.Sprintf("customer %s not found", sub.CustomerID))
		}
		return failed(CodeLocalError, err.Error())
	}
	if !customer.IsSynced() {
		return skipped(SkipCustomerNotSynced)
	}
	if !sub.HasRemoteID() {
		return skipped(SkipSubscriptionNotSynced)
	}

	pending, err := s.attempts.FindPending(ctx, sub.ID)
	if err != nil {
		return failed(CodeLocalError, err.Error())
	}
	expired := 0
	if len(pending) > 0 {
		// pending is oldest first; one fresh attempt still blocks
		if !s.policy.PendingExpired(pending[len(pending)-1].AttemptedAt, s.clock()) {
			return skipped(SkipAttemptPending)
		}
		if p.dryRun {
			expired = len(pending)
		} else {
			n, exhausted, err := s.expirePending(ctx, sub.ID, pending, p.asOf)
			if err != nil {
				return failed(CodeLocalError, fmt.Sprintf("expire pending attempts: %v", err))
			}
			expired = n
			if exhausted {
				out := failed(subscription.AttemptErrorTransport, s.pendingTimeoutMessage())
				out.exhausted = true
				out.expired = expired
				return out
			}
		}
	}

	key, err := s.idempotencyKey(ctx, sub)
	if err != nil {
		return failed(CodeLocalError, err.Error())
	}

	var out outcome
	if p.dryRun {
		logger.L(ctx).Info("Dry run: would charge subscription",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("amount", sub.TotalPrice.StringFixed(2)),
			zap.String("currency", sub.Currency),
			zap.String("idempotency_key", key),
			zap.Int("expired_pending", expired),
		)
		out = outcome{kind: outcomeSuccess}
	} else {
		out = s.charge(ctx, sub, key, p.asOf)
	}
	out.expired = expired
	return out
}

func (s *Scheduler) pendingTimeoutMessage() string {
	return fmt.Sprintf("no billing result within %s", s.policy.PendingTimeout)
}

// expirePending fails closed the stale PENDING attempts of one subscription as transport
// errors, then applies the retry policy to them. A notification that settled an attempt in
// the meantime wins.
func (s *Scheduler) expirePending(ctx context.Context, subID uuid.UUID, stale []*subscription.BillingAttempt, asOf time.Time) (int, bool, error) {
	var expired int
	var exhausted bool
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		expired, exhausted = 0, false
		for _, a := range stale {
			current, err := s.attempts.FindByID(ctx, a.ID)
			if err != nil {
				return err
			}
			if current.IsCompleted() {
				continue
			}
			if err := current.MarkFailed(subscription.AttemptErrorTransport, s.pendingTimeoutMessage(), s.clock()); err != nil {
				return err
			}
			if err := s.attempts.Save(ctx, current); err != nil {
				return err
			}
			expired++
			logger.L(ctx).Warn("Expired pending billing attempt",
				zap.String("subscription_id", subID.String()),
				zap.String("attempt_id", current.ID.String()),
				zap.Time("attempted_at", current.AttemptedAt),
				zap.Duration("pending_timeout", s.policy.PendingTimeout),
			)
		}
		if expired == 0 {
			return nil
		}
		sub, err := s.subs.FindByIDForUpdate(ctx, subID)
		if err != nil {
			return err
		}
		exhausted, err = s.policy.Apply(ctx, s.attempts, sub, asOf)
		if err != nil && !errors.Is(err, subscription.ErrInvalidStatusTransition) {
			return err
		}
		if exhausted {
			return s.subs.Save(ctx, sub)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return expired, exhausted, nil
}

// idempotencyKey returns the per-cycle key, suffixed past any earlier failed attempts of the
// same cycle so a retry is a new remote attempt while a re-run never double charges
func (s *Scheduler) idempotencyKey(ctx context.Context, sub *subscription.CustomerSubscription) (string, error) {
	base := subscription.IdempotencyKeyFor(sub)
	key := base
	for i := 2; i <= maxKeySuffix; i++ {
		existing, err := s.attempts.FindByIdempotencyKey(ctx, key)
		if shared.IsNotFound(err) {
			return key, nil
		}
		if err != nil {
			return "", err
		}
		// a stale PENDING attempt is only still open on a dry run, which never expires it
		stale := existing.Status == subscription.AttemptPending && s.policy.PendingExpired(existing.AttemptedAt, s.clock())
		if existing.Status != subscription.AttemptFailed && !stale {
			return "", fmt.Errorf("attempt %s for this cycle is already %s", existing.ID, existing.Status)
		}
		key = fmt.Sprintf("%s:%d", base, i)
	}
	return "", fmt.Errorf("no free idempotency key for %s", base)
}

// charge records a PENDING attempt, calls the gateway and applies the result
func (s *Scheduler) charge(ctx context.Context, sub *subscription.CustomerSubscription, key string, asOf time.Time) outcome {
	now := s.clock()
	attempt, err := subscription.NewBillingAttempt(sub.ID, sub.TotalPrice, sub.Currency, key, now)
	if err != nil {
		return failed(CodeLocalError, err.Error())
	}
	if err := s.attempts.Save(ctx, attempt); err != nil {
		return failed(CodeLocalError, fmt.Sprintf("record attempt: %v", err))
	}

	result, chargeErr := s.gateway.CreateBillingAttempt(ctx, integration.ChargeRequest{
		SubscriptionRemoteID: sub.RemoteIDValue(),
		IdempotencyKey:       key,
		Amount:               sub.TotalPrice,
		Currency:             sub.Currency,
		OriginTime:           now,
	})

	var out outcome
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.attempts.FindByID(ctx, attempt.ID)
		if err != nil {
			return err
		}
		if current.IsCompleted() {
			// a notification already settled this attempt
			out = outcome{kind: outcomeSuccess}
			if current.Status == subscription.AttemptFailed {
				out = failed(current.ErrorCode, current.ErrorMessage)
			}
			return nil
		}
		fresh, err := s.subs.FindByIDForUpdate(ctx, sub.ID)
		if err != nil {
			return err
		}
		out, err = s.applyResult(ctx, fresh, current, result, chargeErr, asOf)
		return err
	})
	if err != nil {
		logger.L(ctx).Error("Failed to apply billing result",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("attempt_id", attempt.ID.String()),
			zap.Error(err),
		)
		return failed(CodeLocalError, fmt.Sprintf("apply billing result: %v", err))
	}
	return out
}

func (s *Scheduler) applyResult(
	ctx context.Context,
	sub *subscription.CustomerSubscription,
	attempt *subscription.BillingAttempt,
	result *integration.ChargeResult,
	chargeErr error,
	asOf time.Time,
) (outcome, error) {
	now := s.clock()

	if chargeErr == nil && result != nil {
		attempt.SetRemoteID(result.RemoteAttemptID)
		switch result.Status {
		case integration.ChargeSucceeded:
			if err := attempt.MarkSucceeded(result.RemoteOrderRef, now); err != nil {
				return outcome{}, err
			}
			if err := s.attempts.Save(ctx, attempt); err != nil {
				return outcome{}, err
			}
			sub.AdvanceBillingCycle()
			if err := s.subs.Save(ctx, sub); err != nil {
				return outcome{}, err
			}
			s.metrics.RecordChargedAmount(ctx, attempt.Currency, attempt.Amount)
			logger.L(ctx).Info("Subscription billed",
				zap.String("subscription_id", sub.ID.String()),
				zap.Int("cycle", sub.BillingCycleCount),
				zap.Time("next_billing_date", sub.NextBillingDate),
			)
			return outcome{kind: outcomeSuccess}, nil
		case integration.ChargePending:
			if err := s.attempts.Save(ctx, attempt); err != nil {
				return outcome{}, err
			}
			return outcome{kind: outcomePending}, nil
		}
	}

	code, message := failureOf(result, chargeErr)
	if err := attempt.MarkFailed(code, message, now); err != nil {
		return outcome{}, err
	}
	if err := s.attempts.Save(ctx, attempt); err != nil {
		return outcome{}, err
	}
	exhausted, err := s.policy.Apply(ctx, s.attempts, sub, asOf)
	if err != nil && !errors.Is(err, subscription.ErrInvalidStatusTransition) {
		return outcome{}, err
	}
	if exhausted {
		if err := s.subs.Save(ctx, sub); err != nil {
			return outcome{}, err
		}
		logger.L(ctx).Warn("Subscription failed after repeated billing failures",
			zap.String("subscription_id", sub.ID.String()),
			zap.Int("max_failures", s.policy.MaxFailures),
		)
	}
	out := failed(code, message)
	out.exhausted = exhausted
	return out, nil
}

// failureOf classifies a failed charge
func failureOf(result *integration.ChargeResult, err error) (string, string) {
	switch {
	case err == nil && result != nil:
		code := result.ErrorCode
		if code == "" {
			code = subscription.AttemptErrorDeclined
		}
		return code, result.ErrorMessage
	case err == nil:
		return subscription.AttemptErrorUnknown, "empty charge result"
	case integration.IsTransient(err):
		return subscription.AttemptErrorTransport, err.Error()
	case integration.IsValidation(err):
		return subscription.AttemptErrorValidation, err.Error()
	default:
		return subscription.AttemptErrorUnknown, err.Error()
	}
}
