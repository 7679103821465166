package sync

import (
	"context"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SellingPlanService manages selling plans. Plans are deactivated, never deleted.
type SellingPlanService struct {
	plans      subscription.SellingPlanRepository
	pusher     *PushSynchronizer
	pushOnSave bool
	logger     *zap.Logger
}

// NewSellingPlanService creates a SellingPlanService. pusher may be nil when pushOnSave is false.
func NewSellingPlanService(plans subscription.SellingPlanRepository, pusher *PushSynchronizer, pushOnSave bool, log *zap.Logger) *SellingPlanService {
	return &SellingPlanService{
		plans:      plans,
		pusher:     pusher,
		pushOnSave: pushOnSave && pusher != nil,
		logger:     logger.OrNop(log),
	}
}

// Create creates a plan that still needs to be pushed
func (s *SellingPlanService) Create(ctx context.Context, in SellingPlanInput) (*SellingPlanResponse, error) {
	params, err := in.toParams()
	if err != nil {
		return nil, err
	}
	plan, err := subscription.NewSellingPlan(params)
	if err != nil {
		return nil, err
	}
	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}
	logger.L(ctx).Info("Selling plan created", zap.String("selling_plan_id", plan.ID.String()))
	return s.afterChange(ctx, plan)
}

// Update replaces the plan attributes
func (s *SellingPlanService) Update(ctx context.Context, id uuid.UUID, in SellingPlanInput) (*SellingPlanResponse, error) {
	params, err := in.toParams()
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changes, err := plan.Update(params)
	if err != nil {
		return nil, err
	}
	if changes.Empty() {
		resp := ToSellingPlanResponse(plan)
		return &resp, nil
	}
	plan.MarkDirty()
	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}
	logger.L(ctx).Info("Selling plan changed",
		zap.String("selling_plan_id", plan.ID.String()),
		zap.Strings("fields", changes),
	)
	return s.afterChange(ctx, plan)
}

// Deactivate retires a plan; deactivating an inactive plan is a no-op
func (s *SellingPlanService) Deactivate(ctx context.Context, id uuid.UUID) (*SellingPlanResponse, error) {
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.Deactivate() {
		resp := ToSellingPlanResponse(plan)
		return &resp, nil
	}
	plan.MarkDirty()
	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}
	return s.afterChange(ctx, plan)
}

// Get returns one plan
func (s *SellingPlanService) Get(ctx context.Context, id uuid.UUID) (*SellingPlanResponse, error) {
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSellingPlanResponse(plan)
	return &resp, nil
}

// List returns a page of plans
func (s *SellingPlanService) List(ctx context.Context, filter subscription.SellingPlanFilter) ([]SellingPlanResponse, int64, error) {
	plans, total, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]SellingPlanResponse, len(plans))
	for i, plan := range plans {
		out[i] = ToSellingPlanResponse(plan)
	}
	return out, total, nil
}

func (s *SellingPlanService) afterChange(ctx context.Context, plan *subscription.SellingPlan) (*SellingPlanResponse, error) {
	if s.pushOnSave {
		if _, err := s.pusher.Push(ctx, shared.SellingPlanRef(plan.ID)); err != nil {
			s.logger.Warn("Push after save failed",
				zap.String("selling_plan_id", plan.ID.String()),
				zap.Error(err),
			)
		}
		if fresh, err := s.plans.FindByID(ctx, plan.ID); err == nil {
			plan = fresh
		}
	}
	resp := ToSellingPlanResponse(plan)
	return &resp, nil
}
