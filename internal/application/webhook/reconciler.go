// Package webhook reconciles remote lifecycle notifications into local state.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/application/audit"
	"github.com/eo-nwanze/lavish-sub000/internal/application/billing"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Failure codes recorded on WEBHOOK sync logs
const (
	CodeInvalidPayload       = "INVALID_PAYLOAD"
	CodeCustomerSyncDeferred = "CUSTOMER_SYNC_DEFERRED"
	CodeHandlerError         = "HANDLER_ERROR"
)

// Delivery outcomes
const (
	OutcomeProcessed = "processed"
	OutcomeUnchanged = "unchanged"
	OutcomeUnmatched = "unmatched"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Delivery is one authenticated notification as received at ingress
type Delivery struct {
	Topic      integration.Topic
	DeliveryID string
	Body       []byte
}

// Result contains the result of reconciling one delivery
type Result struct {
	Topic      integration.Topic `json:"topic"`
	DeliveryID string            `json:"delivery_id,omitempty"`
	Outcome    string            `json:"outcome"`
	SyncLogID  uuid.UUID         `json:"sync_log_id,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// CustomerSyncer materializes a customer known only by its remote ID
type CustomerSyncer interface {
	SyncByRemoteID(ctx context.Context, remoteID string) (*subscription.Customer, error)
}

// PayloadValidator checks a body against the topic's schema
type PayloadValidator interface {
	Validate(topic integration.Topic, body []byte) error
}

// ReconcilerConfig holds the collaborators of a Reconciler
type ReconcilerConfig struct {
	Subscriptions subscription.SubscriptionRepository
	Plans         subscription.SellingPlanRepository
	Attempts      subscription.BillingAttemptRepository
	Customers     subscription.CustomerRepository
	CustomerSync  CustomerSyncer
	TxManager     shared.TxManager
	Recorder      *audit.Recorder
	// Validator is optional; without it payloads are only checked by decoding
	Validator PayloadValidator
	// Idempotency is optional; without it redelivery relies on handler idempotence alone
	Idempotency shared.IdempotencyStore
	DedupTTL    time.Duration
	Policy      billing.Policy
	Logger      *zap.Logger
}

// Reconciler applies webhook deliveries. Every handled delivery writes one WEBHOOK sync log
// and each handler runs in a single transaction.
type Reconciler struct {
	subs         subscription.SubscriptionRepository
	plans        subscription.SellingPlanRepository
	attempts     subscription.BillingAttemptRepository
	customers    subscription.CustomerRepository
	customerSync CustomerSyncer
	tx           shared.TxManager
	recorder     *audit.Recorder
	validator    PayloadValidator
	dedup        shared.IdempotencyStore
	dedupTTL     time.Duration
	policy       billing.Policy
	clock        func() time.Time
	logger       *zap.Logger
	metrics      *telemetry.SyncMetrics
}

// NewReconciler creates a Reconciler
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	ttl := cfg.DedupTTL
	if ttl <= 0 {
		ttl = shared.DefaultDeliveryTTL
	}
	policy := cfg.Policy
	if policy.MaxFailures <= 0 || policy.FailureWindow <= 0 {
		policy = billing.DefaultPolicy()
	}
	return &Reconciler{
		subs:         cfg.Subscriptions,
		plans:        cfg.Plans,
		attempts:     cfg.Attempts,
		customers:    cfg.Customers,
		customerSync: cfg.CustomerSync,
		tx:           cfg.TxManager,
		recorder:     cfg.Recorder,
		validator:    cfg.Validator,
		dedup:        cfg.Idempotency,
		dedupTTL:     ttl,
		policy:       policy,
		clock:        time.Now,
		logger:       logger.OrNop(cfg.Logger),
	}
}

// SetMetrics sets the webhook counters
func (r *Reconciler) SetMetrics(m *telemetry.SyncMetrics) {
	r.metrics = m
}

// SetClock overrides the time source
func (r *Reconciler) SetClock(clock func() time.Time) {
	r.clock = clock
}

// handled is what a topic handler reports back
type handled struct {
	ref     shared.EntityRef
	outcome string
	message string
}

// Handle reconciles one delivery. Invalid payloads are acknowledged and recorded, never retried.
// A returned error means the delivery was recorded as failed and was not marked processed, so a
// redelivery runs it again; ingress still acknowledges it.
func (r *Reconciler) Handle(ctx context.Context, d Delivery) (*Result, error) {
	if !d.Topic.IsValid() {
		return nil, integration.ErrUnknownTopic
	}
	result := &Result{Topic: d.Topic, DeliveryID: d.DeliveryID}

	ctx, span := telemetry.StartServiceSpan(ctx, "webhook", "handle",
		telemetry.WithAttribute(telemetry.SpanAttrTopic, string(d.Topic)),
		telemetry.WithAttribute(telemetry.SpanAttrDeliveryID, d.DeliveryID),
	)
	defer span.End()

	if d.DeliveryID != "" && r.dedup != nil {
		seen, err := r.dedup.IsProcessed(ctx, r.dedupKey(d))
		if err != nil {
			logger.L(ctx).Warn("Webhook de-duplication lookup failed, processing anyway",
				zap.String("delivery_id", d.DeliveryID),
				zap.Error(err),
			)
		} else if seen {
			result.Outcome = OutcomeDuplicate
			r.metrics.RecordWebhook(ctx, string(d.Topic), telemetry.OutcomeIgnored)
			logger.L(ctx).Info("Duplicate webhook delivery acknowledged",
				zap.String("topic", string(d.Topic)),
				zap.String("delivery_id", d.DeliveryID),
			)
			return result, nil
		}
	}

	ctx, log, err := r.recorder.Begin(ctx, integration.OperationWebhook, false)
	if err != nil {
		return nil, err
	}
	log.Detail = fmt.Sprintf("topic=%s delivery=%s", d.Topic, d.DeliveryID)
	result.SyncLogID = log.ID

	if err := r.validate(d); err != nil {
		return r.reject(ctx, log, d, result, err)
	}

	h, herr := r.dispatch(ctx, d)
	if errors.Is(herr, integration.ErrInvalidPayload) {
		return r.reject(ctx, log, d, result, herr)
	}
	if herr != nil {
		code := CodeHandlerError
		if errors.Is(herr, integration.ErrCustomerSyncDeferred) {
			code = CodeCustomerSyncDeferred
		}
		_ = log.RecordFailure(h.ref, code, herr.Error())
		if ferr := r.recorder.Finish(ctx, log); ferr != nil {
			r.logger.Error("Failed to finish webhook sync log", zap.Error(ferr))
		}
		r.metrics.RecordWebhook(ctx, string(d.Topic), telemetry.OutcomeFailed)
		logger.L(ctx).Error("Failed to process webhook",
			zap.String("topic", string(d.Topic)),
			zap.String("delivery_id", d.DeliveryID),
			zap.Error(herr),
		)
		result.Outcome = OutcomeFailed
		result.Message = herr.Error()
		return result, herr
	}

	if h.outcome == OutcomeProcessed {
		_ = log.RecordSuccess()
		r.metrics.RecordWebhook(ctx, string(d.Topic), telemetry.OutcomeSuccess)
	} else {
		_ = log.RecordSkip()
		r.metrics.RecordWebhook(ctx, string(d.Topic), telemetry.OutcomeIgnored)
	}
	if err := r.recorder.Finish(ctx, log); err != nil {
		return result, err
	}
	r.markProcessed(ctx, d)

	result.Outcome = h.outcome
	result.Message = h.message
	return result, nil
}

// reject acknowledges a malformed delivery: it is recorded and marked processed so it is not retried
func (r *Reconciler) reject(ctx context.Context, log *integration.SyncLog, d Delivery, result *Result, cause error) (*Result, error) {
	_ = log.RecordFailure(shared.EntityRef{}, CodeInvalidPayload, cause.Error())
	if err := r.recorder.Finish(ctx, log); err != nil {
		return result, err
	}
	r.markProcessed(ctx, d)
	r.metrics.RecordWebhook(ctx, string(d.Topic), telemetry.OutcomeRejected)
	logger.L(ctx).Warn("Webhook payload rejected",
		zap.String("topic", string(d.Topic)),
		zap.Error(cause),
	)
	result.Outcome = OutcomeRejected
	result.Message = cause.Error()
	return result, nil
}

func (r *Reconciler) validate(d Delivery) error {
	if r.validator != nil {
		return r.validator.Validate(d.Topic, d.Body)
	}
	if !json.Valid(d.Body) {
		return fmt.Errorf("%w: body is not JSON", integration.ErrInvalidPayload)
	}
	return nil
}

func (r *Reconciler) dispatch(ctx context.Context, d Delivery) (handled, error) {
	switch d.Topic {
	case integration.TopicSubscriptionCreated, integration.TopicSubscriptionUpdated:
		var ev integration.SubscriptionContractEvent
		if err := decode(d.Body, &ev); err != nil {
			return handled{}, err
		}
		return r.handleContract(ctx, d.Topic, ev)
	case integration.TopicBillingSuccess:
		var ev integration.BillingAttemptEvent
		if err := decode(d.Body, &ev); err != nil {
			return handled{}, err
		}
		return r.handleBillingSuccess(ctx, ev)
	case integration.TopicBillingFailure:
		var ev integration.BillingAttemptEvent
		if err := decode(d.Body, &ev); err != nil {
			return handled{}, err
		}
		return r.handleBillingFailure(ctx, ev)
	case integration.TopicPaymentMethodRevoked:
		var ev integration.PaymentMethodEvent
		if err := decode(d.Body, &ev); err != nil {
			return handled{}, err
		}
		return r.handlePaymentMethodRevoked(ctx, ev)
	case integration.TopicPaymentMethodCreated:
		var ev integration.PaymentMethodEvent
		if err := decode(d.Body, &ev); err != nil {
			return handled{}, err
		}
		return r.handlePaymentMethodCreated(ctx, ev)
	}
	return handled{}, integration.ErrUnknownTopic
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
	}
	return nil
}

func (r *Reconciler) dedupKey(d Delivery) string {
	return "webhook:" + d.DeliveryID
}

func (r *Reconciler) markProcessed(ctx context.Context, d Delivery) {
	if d.DeliveryID == "" || r.dedup == nil {
		return
	}
	if _, err := r.dedup.MarkProcessed(ctx, r.dedupKey(d), r.dedupTTL); err != nil {
		logger.L(ctx).Warn("Failed to mark webhook delivery processed",
			zap.String("delivery_id", d.DeliveryID),
			zap.Error(err),
		)
	}
}
