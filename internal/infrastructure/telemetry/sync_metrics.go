package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics records push, billing and webhook outcomes.
// All methods are safe to call on a nil receiver so services can treat metrics as optional.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	pushTotal          *Counter
	billingTotal       *Counter
	billingAmountTotal *Counter
	webhookTotal       *Counter
	runDuration        *Histogram

	pendingPush         *Gauge
	failedSubscriptions *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	backlogProvider SyncBacklogProvider
}

// SyncBacklogProvider reports the sync backlog for periodic gauge collection
type SyncBacklogProvider interface {
	// CountPendingPush returns dirty, unblocked entities per kind
	CountPendingPush(ctx context.Context) (map[string]int64, error)
	// CountFailedSubscriptions returns subscriptions in FAILED status
	CountFailedSubscriptions(ctx context.Context) (int64, error)
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	BacklogProvider SyncBacklogProvider
}

// NewSyncMetrics creates the sync instruments
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &SyncMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		backlogProvider: cfg.BacklogProvider,
	}

	var err error
	if m.pushTotal, err = NewCounter(cfg.Meter, "subsync_push_total",
		"Total number of entity pushes to the commerce platform", "{pushes}"); err != nil {
		return nil, err
	}
	if m.billingTotal, err = NewCounter(cfg.Meter, "subsync_billing_total",
		"Total number of billing candidates by outcome", "{subscriptions}"); err != nil {
		return nil, err
	}
	if m.billingAmountTotal, err = NewCounter(cfg.Meter, "subsync_billing_amount_total",
		"Total successfully charged amount in minor units", "{cents}"); err != nil {
		return nil, err
	}
	if m.webhookTotal, err = NewCounter(cfg.Meter, "subsync_webhook_total",
		"Total number of webhook deliveries by topic and outcome", "{deliveries}"); err != nil {
		return nil, err
	}
	if m.runDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "subsync_run_duration_seconds",
		Description: "Duration of batch and reconciliation runs",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.pendingPush, err = NewGauge(cfg.Meter, "subsync_pending_push",
		"Entities waiting to be pushed", "{entities}"); err != nil {
		return nil, err
	}
	if m.failedSubscriptions, err = NewGauge(cfg.Meter, "subsync_failed_subscriptions",
		"Subscriptions in FAILED status", "{subscriptions}"); err != nil {
		return nil, err
	}
	return m, nil
}

// Outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomePending  = "pending"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
)

// RecordPush records one entity push
func (m *SyncMetrics) RecordPush(ctx context.Context, entityKind, outcome string) {
	if m == nil {
		return
	}
	m.pushTotal.Inc(ctx, AttrEntityKind.String(entityKind), AttrOutcome.String(outcome))
}

// RecordBilling records one billing candidate. reason is empty unless the candidate was skipped or failed.
func (m *SyncMetrics) RecordBilling(ctx context.Context, outcome, reason string, dryRun bool) {
	if m == nil {
		return
	}
	m.billingTotal.Inc(ctx,
		AttrOutcome.String(outcome),
		AttrReason.String(reason),
		AttrDryRun.Bool(dryRun),
	)
}

// RecordChargedAmount adds a successful charge in minor units
func (m *SyncMetrics) RecordChargedAmount(ctx context.Context, currency string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.billingAmountTotal.Add(ctx, amount.Mul(decimal.NewFromInt(100)).IntPart(), AttrCurrency.String(currency))
}

// RecordWebhook records one webhook delivery
func (m *SyncMetrics) RecordWebhook(ctx context.Context, topic, outcome string) {
	if m == nil {
		return
	}
	m.webhookTotal.Inc(ctx, AttrTopic.String(topic), AttrOutcome.String(outcome))
}

// RecordRun records how long a run took
func (m *SyncMetrics) RecordRun(ctx context.Context, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.RecordDuration(ctx, d, AttrOperation.String(operation))
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of the backlog gauges.
// This is non-blocking - use Stop() to stop collection.
func (m *SyncMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if m == nil {
		return
	}
	m.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go m.runPeriodicCollection(ctx, interval)
	})
}

func (m *SyncMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.collectBacklog(ctx)

	for {
		select {
		case <-m.stopChan:
			m.logger.Info("Stopping periodic sync metrics collection")
			return
		case <-ctx.Done():
			m.logger.Info("Context cancelled, stopping periodic sync metrics collection")
			return
		case <-ticker.C:
			m.collectBacklog(ctx)
		}
	}
}

func (m *SyncMetrics) collectBacklog(ctx context.Context) {
	if m.backlogProvider == nil {
		m.logger.Debug("No backlog provider configured, skipping backlog collection")
		return
	}

	pending, err := m.backlogProvider.CountPendingPush(ctx)
	if err != nil {
		m.logger.Warn("Failed to count pending pushes", zap.Error(err))
	} else {
		for kind, count := range pending {
			m.pendingPush.Record(ctx, count, AttrEntityKind.String(kind))
		}
	}

	failed, err := m.backlogProvider.CountFailedSubscriptions(ctx)
	if err != nil {
		m.logger.Warn("Failed to count failed subscriptions", zap.Error(err))
		return
	}
	m.failedSubscriptions.Record(ctx, failed)
}

// Stop stops the periodic collection.
func (m *SyncMetrics) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
