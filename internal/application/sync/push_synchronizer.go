// Package sync pushes locally changed selling plans and subscriptions to the remote
// commerce platform and hosts the local services that make those changes.
package sync

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
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 500

	kindSubscription = "subscription"
	kindSellingPlan  = "selling_plan"
)

// errCustomerNotSynced stops a subscription push whose owner has no remote identity yet
var errCustomerNotSynced = errors.New("sync: customer has no remote identity")

// PushSynchronizerConfig holds the collaborators of a PushSynchronizer
type PushSynchronizerConfig struct {
	Plans         subscription.SellingPlanRepository
	Subscriptions subscription.SubscriptionRepository
	Customers     subscription.CustomerRepository
	Gateway       integration.CommerceGateway
	TxManager     shared.TxManager
	Recorder      *audit.Recorder
	Logger        *zap.Logger
	// BatchSize bounds how many dirty entities one batch picks up
	BatchSize int
}

// PushSynchronizer reconciles locally dirty entities with the remote platform
type PushSynchronizer struct {
	plans     subscription.SellingPlanRepository
	subs      subscription.SubscriptionRepository
	customers subscription.CustomerRepository
	gateway   integration.CommerceGateway
	tx        shared.TxManager
	recorder  *audit.Recorder
	batchSize int
	clock     func() time.Time
	logger    *zap.Logger
	metrics   *telemetry.SyncMetrics
}

// NewPushSynchronizer creates a PushSynchronizer
func NewPushSynchronizer(cfg PushSynchronizerConfig) *PushSynchronizer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &PushSynchronizer{
		plans:     cfg.Plans,
		subs:      cfg.Subscriptions,
		customers: cfg.Customers,
		gateway:   cfg.Gateway,
		tx:        cfg.TxManager,
		recorder:  cfg.Recorder,
		batchSize: batchSize,
		clock:     time.Now,
		logger:    logger.OrNop(cfg.Logger),
	}
}

// SetMetrics sets the push counters
func (p *PushSynchronizer) SetMetrics(m *telemetry.SyncMetrics) {
	p.metrics = m
}

// SetClock overrides the time source
func (p *PushSynchronizer) SetClock(clock func() time.Time) {
	p.clock = clock
}

// Push pushes one plan or subscription regardless of its dirty flag and records a
// PUSH_ENTITY log. Remote failures are reported in the result; the error is reserved
// for local failures such as a missing entity.
func (p *PushSynchronizer) Push(ctx context.Context, ref shared.EntityRef) (*PushResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "push", "entity",
		telemetry.WithAttribute(telemetry.SpanAttrEntityKind, string(ref.Kind)),
	)
	defer span.End()

	ctx, log, err := p.recorder.Begin(ctx, integration.OperationPushEntity, false)
	if err != nil {
		return nil, err
	}

	var (
		result  *PushResult
		pushErr error
	)
	switch ref.Kind {
	case shared.EntityKindSubscription:
		var sub *subscription.CustomerSubscription
		if sub, pushErr = p.subs.FindByID(ctx, ref.ID); pushErr == nil {
			result, pushErr = p.pushSubscription(ctx, sub)
		}
	case shared.EntityKindSellingPlan:
		var plan *subscription.SellingPlan
		if plan, pushErr = p.plans.FindByID(ctx, ref.ID); pushErr == nil {
			result, pushErr = p.pushPlan(ctx, plan)
		}
	default:
		pushErr = shared.NewDomainError("INVALID_ENTITY_KIND", fmt.Sprintf("entity kind %s cannot be pushed", ref.Kind))
	}

	if pushErr != nil {
		telemetry.RecordError(span, pushErr)
		_ = log.RecordFailure(ref, CodeLocalError, pushErr.Error())
	} else {
		p.record(ctx, log, ref, result)
	}
	if err := p.recorder.Finish(ctx, log); err != nil {
		p.logger.Warn("Failed to finish push log", zap.Error(err))
	}
	return result, pushErr
}

// SyncPending pushes every dirty, unblocked subscription. One item's failure never stops
// the batch; the whole batch writes a single PUSH_BATCH log.
func (p *PushSynchronizer) SyncPending(ctx context.Context) (*SyncSummary, error) {
	ctx, log, err := p.recorder.Begin(ctx, integration.OperationPushBatch, false)
	if err != nil {
		return nil, err
	}
	summary := &SyncSummary{SyncLogID: log.ID}

	subs, err := p.subs.FindPendingPush(ctx, p.batchSize)
	if err != nil {
		_ = p.recorder.Fail(ctx, log, fmt.Errorf("load pending subscriptions: %w", err))
		return summary, err
	}

	for _, sub := range subs {
		summary.Total++
		ref := shared.SubscriptionRef(sub.ID)
		result, err := p.pushSubscription(ctx, sub)
		if err != nil {
			result = &PushResult{Code: CodeLocalError, Message: err.Error()}
		}
		if p.record(ctx, log, ref, result) {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	if err := p.recorder.Finish(ctx, log); err != nil {
		return summary, err
	}
	return summary, nil
}

// SyncPendingPlans pushes every dirty, unblocked selling plan under one PUSH_BATCH log
func (p *PushSynchronizer) SyncPendingPlans(ctx context.Context) (*SyncSummary, error) {
	ctx, log, err := p.recorder.Begin(ctx, integration.OperationPushBatch, false)
	if err != nil {
		return nil, err
	}
	summary := &SyncSummary{SyncLogID: log.ID}

	plans, err := p.plans.FindPendingPush(ctx, p.batchSize)
	if err != nil {
		_ = p.recorder.Fail(ctx, log, fmt.Errorf("load pending selling plans: %w", err))
		return summary, err
	}

	for _, plan := range plans {
		summary.Total++
		result, err := p.pushPlan(ctx, plan)
		if err != nil {
			result = &PushResult{Code: CodeLocalError, Message: err.Error()}
		}
		if p.record(ctx, log, shared.SellingPlanRef(plan.ID), result) {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	if err := p.recorder.Finish(ctx, log); err != nil {
		return summary, err
	}
	return summary, nil
}

// record counts one result on the log and the metrics; it returns result.Success
func (p *PushSynchronizer) record(ctx context.Context, log *integration.SyncLog, ref shared.EntityRef, result *PushResult) bool {
	kind := kindSubscription
	if ref.Kind == shared.EntityKindSellingPlan {
		kind = kindSellingPlan
	}
	if result.Success {
		_ = log.RecordSuccess()
		p.metrics.RecordPush(ctx, kind, telemetry.OutcomeSuccess)
		return true
	}
	_ = log.RecordFailure(ref, result.Code, result.Message)
	p.metrics.RecordPush(ctx, kind, telemetry.OutcomeFailed)
	return false
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

func (p *PushSynchronizer) pushSubscription(ctx context.Context, sub *subscription.CustomerSubscription) (*PushResult, error) {
	sc, err := p.subscriptionContext(ctx, sub)
	if errors.Is(err, errCustomerNotSynced) {
		result := &PushResult{Code: CodeCustomerNotSynced, Message: err.Error()}
		return result, p.saveSubscriptionFailure(ctx, sub, result)
	}
	if err != nil {
		return nil, err
	}

	readVersion := sub.Version
	remoteID := sub.RemoteIDValue()
	created := false
	switch {
	case sub.HasRemoteID() && sub.Status == subscription.StatusCancelled:
		err = p.gateway.CancelSubscription(ctx, remoteID)
	case sub.HasRemoteID():
		err = p.gateway.UpdateSubscription(ctx, sub, sc)
	case sub.Status == subscription.StatusCancelled:
		// never created remotely, nothing to cancel there
	default:
		// keyed by the local ID, so a create whose result was lost is replayed, not duplicated
		sc.IdempotencyKey = sub.ID.String()
		created = true
		remoteID, err = p.gateway.CreateSubscription(ctx, sub, sc)
	}

	if err != nil {
		result := classify(err)
		logger.L(ctx).Warn("Subscription push failed",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("code", result.Code),
			zap.Error(err),
		)
		return result, p.saveSubscriptionFailure(ctx, sub, result)
	}

	now := p.clock()
	err = p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		fresh, err := p.subs.FindByIDForUpdate(ctx, sub.ID)
		if err != nil {
			return err
		}
		if err := fresh.AssignRemoteID(remoteID); err != nil {
			return err
		}
		if fresh.Version == readVersion {
			fresh.RecordPushSuccess(now)
		} else {
			// edited while the call was in flight: keep it dirty for the next batch
			fresh.LastPushError = ""
		}
		*sub = *fresh
		return p.subs.Save(ctx, fresh)
	})
	if err != nil {
		if created {
			logger.L(ctx).Error("Remote contract created but not recorded locally",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("remote_id", remoteID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("persist push of subscription %s (remote contract %s already created): %w", sub.ID, remoteID, err)
		}
		return nil, fmt.Errorf("persist push of subscription %s: %w", sub.ID, err)
	}

	logger.L(ctx).Info("Subscription pushed",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("remote_id", remoteID),
	)
	return &PushResult{Success: true, RemoteID: remoteID}, nil
}

func (p *PushSynchronizer) subscriptionContext(ctx context.Context, sub *subscription.CustomerSubscription) (integration.SubscriptionContext, error) {
	var sc integration.SubscriptionContext
	customer, err := p.customers.FindByID(ctx, sub.CustomerID)
	if err != nil {
		return sc, fmt.Errorf("load customer %s: %w", sub.CustomerID, err)
	}
	if !customer.IsSynced() {
		return sc, errCustomerNotSynced
	}
	sc.CustomerRemoteID = *customer.RemoteID

	if sub.SellingPlanID != nil {
		plan, err := p.plans.FindByID(ctx, *sub.SellingPlanID)
		switch {
		case err == nil:
			sc.SellingPlanRemoteID = plan.RemoteIDValue()
		case shared.IsNotFound(err):
			// retired plans do not block the contract
		default:
			return sc, fmt.Errorf("load selling plan %s: %w", *sub.SellingPlanID, err)
		}
	}
	return sc, nil
}

func (p *PushSynchronizer) saveSubscriptionFailure(ctx context.Context, sub *subscription.CustomerSubscription, result *PushResult) error {
	return p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		fresh, err := p.subs.FindByIDForUpdate(ctx, sub.ID)
		if err != nil {
			return err
		}
		fresh.RecordPushFailure(result.Message, result.Blocked)
		*sub = *fresh
		return p.subs.Save(ctx, fresh)
	})
}

// ---------------------------------------------------------------------------
// Selling plans
// ---------------------------------------------------------------------------

func (p *PushSynchronizer) pushPlan(ctx context.Context, plan *subscription.SellingPlan) (*PushResult, error) {
	snapshot := *plan
	remoteID := plan.RemoteIDValue()

	var err error
	if plan.HasRemoteID() {
		err = p.gateway.UpdateSellingPlan(ctx, plan)
	} else {
		remoteID, err = p.gateway.CreateSellingPlan(ctx, plan)
	}

	if err != nil {
		result := classify(err)
		logger.L(ctx).Warn("Selling plan push failed",
			zap.String("selling_plan_id", plan.ID.String()),
			zap.String("code", result.Code),
			zap.Error(err),
		)
		saveErr := p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			fresh, err := p.plans.FindByID(ctx, plan.ID)
			if err != nil {
				return err
			}
			fresh.RecordPushFailure(result.Message, result.Blocked)
			return p.plans.Save(ctx, fresh)
		})
		return result, saveErr
	}

	now := p.clock()
	err = p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		fresh, err := p.plans.FindByID(ctx, plan.ID)
		if err != nil {
			return err
		}
		if err := fresh.AssignRemoteID(remoteID); err != nil {
			return err
		}
		if subscription.DiffPlans(&snapshot, fresh).Empty() {
			fresh.RecordPushSuccess(now)
		}
		*plan = *fresh
		return p.plans.Save(ctx, fresh)
	})
	if err != nil {
		return nil, fmt.Errorf("persist push of selling plan %s: %w", plan.ID, err)
	}

	logger.L(ctx).Info("Selling plan pushed",
		zap.String("selling_plan_id", plan.ID.String()),
		zap.String("remote_id", remoteID),
	)
	return &PushResult{Success: true, RemoteID: remoteID}, nil
}

// classify maps a gateway error to a failed result. Validation errors block the entity;
// everything else is retried by the next batch.
func classify(err error) *PushResult {
	result := &PushResult{Message: err.Error()}
	switch {
	case integration.IsValidation(err):
		result.Code = CodeRemoteValidation
		result.Errors = integration.FieldErrorsOf(err)
		result.Blocked = true
	case errors.Is(err, integration.ErrRemoteUnauthorized):
		result.Code = CodeRemoteAuth
	default:
		result.Code = CodeTransport
	}
	return result
}
