package handler

import (
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/dto"
	"github.com/google/uuid"
)

// APIResponse represents a generic API response for OpenAPI documentation
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse represents an error API response for OpenAPI documentation
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// WebhookAck is the body returned for every authenticated delivery
// @Description Webhook acknowledgement
type WebhookAck struct {
	Received bool `json:"received" example:"true"`
}

// SyncLogResponse is the API view of a sync log
// @Description Audit record of one batch or reconciliation run
type SyncLogResponse struct {
	ID         uuid.UUID               `json:"id"`
	Operation  string                  `json:"operation" example:"BILLING_RUN"`
	Status     string                  `json:"status" example:"COMPLETED"`
	DryRun     bool                    `json:"dry_run"`
	Processed  int                     `json:"processed"`
	Succeeded  int                     `json:"succeeded"`
	Failed     int                     `json:"failed"`
	Skipped    int                     `json:"skipped"`
	Errors     []integration.SyncError `json:"errors"`
	Detail     string                  `json:"detail,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
}

func toSyncLogResponse(l *integration.SyncLog) SyncLogResponse {
	errs := l.Errors
	if errs == nil {
		errs = []integration.SyncError{}
	}
	return SyncLogResponse{
		ID:         l.ID,
		Operation:  string(l.Operation),
		Status:     string(l.Status),
		DryRun:     l.DryRun,
		Processed:  l.Processed,
		Succeeded:  l.Succeeded,
		Failed:     l.Failed,
		Skipped:    l.Skipped,
		Errors:     errs,
		Detail:     l.Detail,
		StartedAt:  l.StartedAt,
		FinishedAt: l.FinishedAt,
	}
}

func toSyncLogResponses(logs []*integration.SyncLog) []SyncLogResponse {
	out := make([]SyncLogResponse, len(logs))
	for i, l := range logs {
		out[i] = toSyncLogResponse(l)
	}
	return out
}
