// Package audit owns the sync log lifecycle: opening and closing run records, querying them
// and exporting finished ones to object storage.
package audit

import (
	"context"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Recorder opens and finalizes sync logs. A run owns its log: only the Recorder that began it
// moves it to a terminal state.
type Recorder struct {
	repo    integration.SyncLogRepository
	clock   func() time.Time
	logger  *zap.Logger
	metrics *telemetry.SyncMetrics
}

// NewRecorder creates a Recorder
func NewRecorder(repo integration.SyncLogRepository, log *zap.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		clock:  time.Now,
		logger: logger.OrNop(log),
	}
}

// SetMetrics sets the run duration recorder
func (r *Recorder) SetMetrics(m *telemetry.SyncMetrics) {
	r.metrics = m
}

// SetClock overrides the time source
func (r *Recorder) SetClock(clock func() time.Time) {
	r.clock = clock
}

// Begin persists a new IN_PROGRESS log and returns ctx tagged with its ID
func (r *Recorder) Begin(ctx context.Context, op integration.SyncOperation, dryRun bool) (context.Context, *integration.SyncLog, error) {
	log, err := integration.NewSyncLog(op, dryRun, r.clock())
	if err != nil {
		return ctx, nil, err
	}
	if err := r.repo.Create(ctx, log); err != nil {
		return ctx, nil, err
	}
	ctx = logger.WithSyncLogID(ctx, log.ID.String())
	logger.L(ctx).Debug("Sync run started",
		zap.String("operation", string(op)),
		zap.Bool("dry_run", dryRun),
	)
	return ctx, log, nil
}

// Finish completes the log with the counts and errors accumulated on it
func (r *Recorder) Finish(ctx context.Context, log *integration.SyncLog) error {
	if err := log.Complete(r.clock()); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, log); err != nil {
		r.logger.Error("Failed to persist sync log",
			zap.String("sync_log_id", log.ID.String()),
			zap.Error(err),
		)
		return err
	}
	r.metrics.RecordRun(ctx, string(log.Operation), log.Duration())
	logger.L(ctx).Info("Sync run completed",
		zap.String("operation", string(log.Operation)),
		zap.Bool("dry_run", log.DryRun),
		zap.Int("processed", log.Processed),
		zap.Int("succeeded", log.Succeeded),
		zap.Int("failed", log.Failed),
		zap.Int("skipped", log.Skipped),
		zap.Duration("duration", log.Duration()),
	)
	return nil
}

// Fail marks the run aborted with cause as the detail
func (r *Recorder) Fail(ctx context.Context, log *integration.SyncLog, cause error) error {
	reason := "unknown failure"
	if cause != nil {
		reason = cause.Error()
	}
	if err := log.Fail(reason, r.clock()); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, log); err != nil {
		r.logger.Error("Failed to persist failed sync log",
			zap.String("sync_log_id", log.ID.String()),
			zap.Error(err),
		)
		return err
	}
	r.metrics.RecordRun(ctx, string(log.Operation), log.Duration())
	logger.L(ctx).Error("Sync run failed",
		zap.String("operation", string(log.Operation)),
		zap.Error(cause),
	)
	return nil
}
