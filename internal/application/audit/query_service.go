package audit

import (
	"context"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// QueryService answers operator questions about past runs
type QueryService struct {
	repo     integration.SyncLogRepository
	resolver *Resolver
}

// NewQueryService creates a QueryService
func NewQueryService(repo integration.SyncLogRepository, resolver *Resolver) *QueryService {
	return &QueryService{repo: repo, resolver: resolver}
}

// List returns logs newest first
func (s *QueryService) List(ctx context.Context, filter integration.SyncLogFilter) ([]*integration.SyncLog, int64, error) {
	if filter.Operation != "" && !filter.Operation.IsValid() {
		return nil, 0, shared.NewDomainError("INVALID_OPERATION", "Unknown sync operation "+string(filter.Operation))
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, shared.NewDomainError("INVALID_STATUS", "Unknown sync log status "+string(filter.Status))
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// Get returns one log
func (s *QueryService) Get(ctx context.Context, id uuid.UUID) (*integration.SyncLog, error) {
	return s.repo.FindByID(ctx, id)
}

// Resolve loads the entity a sync error points at
func (s *QueryService) Resolve(ctx context.Context, ref shared.EntityRef) (any, error) {
	return s.resolver.Resolve(ctx, ref)
}
