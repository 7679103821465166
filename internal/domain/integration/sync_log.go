package integration

import (
	"context"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/google/uuid"
)

// SyncOperation is the kind of run a SyncLog describes
type SyncOperation string

const (
	OperationPushBatch         SyncOperation = "PUSH_BATCH"
	OperationPushEntity        SyncOperation = "PUSH_ENTITY"
	OperationBillingRun        SyncOperation = "BILLING_RUN"
	OperationBillingRetrySweep SyncOperation = "BILLING_RETRY_SWEEP"
	OperationWebhook           SyncOperation = "WEBHOOK"
	OperationCustomerSync      SyncOperation = "CUSTOMER_SYNC"
)

// IsValid returns true if the operation is known
func (o SyncOperation) IsValid() bool {
	switch o {
	case OperationPushBatch, OperationPushEntity, OperationBillingRun,
		OperationBillingRetrySweep, OperationWebhook, OperationCustomerSync:
		return true
	}
	return false
}

// SyncLogStatus is the state of a run
type SyncLogStatus string

const (
	SyncLogInProgress SyncLogStatus = "IN_PROGRESS"
	SyncLogCompleted  SyncLogStatus = "COMPLETED"
	SyncLogFailed     SyncLogStatus = "FAILED"
)

// IsValid returns true if the status is known
func (s SyncLogStatus) IsValid() bool {
	switch s {
	case SyncLogInProgress, SyncLogCompleted, SyncLogFailed:
		return true
	}
	return false
}

// IsFinal reports COMPLETED or FAILED
func (s SyncLogStatus) IsFinal() bool {
	return s == SyncLogCompleted || s == SyncLogFailed
}

// SyncError is one structured error entry of a run
type SyncError struct {
	Ref     shared.EntityRef `json:"ref"`
	Code    string           `json:"code"`
	Message string           `json:"message"`
}

// SyncLog is the append-only audit record of one batch or reconciliation run
type SyncLog struct {
	ID         uuid.UUID
	Operation  SyncOperation
	Status     SyncLogStatus
	DryRun     bool
	Processed  int
	Succeeded  int
	Failed     int
	Skipped    int
	Errors     []SyncError
	Detail     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// NewSyncLog opens an IN_PROGRESS log
func NewSyncLog(op SyncOperation, dryRun bool, startedAt time.Time) (*SyncLog, error) {
	if !op.IsValid() {
		return nil, shared.NewDomainError("INVALID_OPERATION", "Unknown sync operation "+string(op))
	}
	return &SyncLog{
		ID:        uuid.New(),
		Operation: op,
		Status:    SyncLogInProgress,
		DryRun:    dryRun,
		StartedAt: startedAt.UTC(),
	}, nil
}

// RecordSuccess counts one processed item as succeeded
func (l *SyncLog) RecordSuccess() error {
	if l.Status.IsFinal() {
		return ErrSyncLogFinalized
	}
	l.Processed++
	l.Succeeded++
	return nil
}

// RecordSkip counts one processed item as skipped
func (l *SyncLog) RecordSkip() error {
	if l.Status.IsFinal() {
		return ErrSyncLogFinalized
	}
	l.Processed++
	l.Skipped++
	return nil
}

// RecordFailure counts one processed item as failed and keeps its error
func (l *SyncLog) RecordFailure(ref shared.EntityRef, code, message string) error {
	if l.Status.IsFinal() {
		return ErrSyncLogFinalized
	}
	l.Processed++
	l.Failed++
	l.Errors = append(l.Errors, SyncError{Ref: ref, Code: code, Message: message})
	return nil
}

// Complete marks the run finished. Item failures do not fail the run.
func (l *SyncLog) Complete(at time.Time) error {
	if l.Status.IsFinal() {
		return ErrSyncLogFinalized
	}
	l.Status = SyncLogCompleted
	at = at.UTC()
	l.FinishedAt = &at
	return nil
}

// Fail marks the run aborted, e.g. when the candidate query itself failed
func (l *SyncLog) Fail(reason string, at time.Time) error {
	if l.Status.IsFinal() {
		return ErrSyncLogFinalized
	}
	l.Status = SyncLogFailed
	l.Detail = reason
	at = at.UTC()
	l.FinishedAt = &at
	return nil
}

// Duration is the run time, zero while in progress
func (l *SyncLog) Duration() time.Duration {
	if l.FinishedAt == nil {
		return 0
	}
	return l.FinishedAt.Sub(l.StartedAt)
}

// SyncLogFilter narrows audit queries
type SyncLogFilter struct {
	Operation SyncOperation
	Status    SyncLogStatus
	// FinishedBefore selects finished logs older than the given time
	FinishedBefore *time.Time
	Limit          int
	Offset         int
}

// SyncLogRepository persists sync logs. Implementations refuse to overwrite a finalized log.
type SyncLogRepository interface {
	Create(ctx context.Context, log *SyncLog) error
	// Update writes counts and status; it returns ErrSyncLogFinalized when the stored row is already final
	Update(ctx context.Context, log *SyncLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*SyncLog, error)
	List(ctx context.Context, filter SyncLogFilter) ([]*SyncLog, int64, error)
}
