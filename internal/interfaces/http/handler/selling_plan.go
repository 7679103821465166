package handler

import (
	"context"

	syncapp "github.com/eo-nwanze/lavish-sub000/internal/application/sync"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SellingPlanManager maintains the local plan catalog
type SellingPlanManager interface {
	Create(ctx context.Context, in syncapp.SellingPlanInput) (*syncapp.SellingPlanResponse, error)
	Update(ctx context.Context, id uuid.UUID, in syncapp.SellingPlanInput) (*syncapp.SellingPlanResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*syncapp.SellingPlanResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*syncapp.SellingPlanResponse, error)
	List(ctx context.Context, filter subscription.SellingPlanFilter) ([]syncapp.SellingPlanResponse, int64, error)
}

// SellingPlanListQuery holds the list filters
type SellingPlanListQuery struct {
	dto.ListRequest
	ActiveOnly bool `form:"active_only"`
}

// SellingPlanHandler manages selling plans
type SellingPlanHandler struct {
	BaseHandler
	plans SellingPlanManager
}

// NewSellingPlanHandler creates a new SellingPlanHandler
func NewSellingPlanHandler(plans SellingPlanManager) *SellingPlanHandler {
	return &SellingPlanHandler{plans: plans}
}

// Create godoc
//
//	@ID				createSellingPlan
//	@Summary		Create a selling plan
//	@Tags			selling-plans
//	@Accept			json
//	@Produce		json
//	@Param			request	body		syncapp.SellingPlanInput	true	"Plan"
//	@Success		201		{object}	APIResponse[syncapp.SellingPlanResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/selling-plans [post]
func (h *SellingPlanHandler) Create(c *gin.Context) {
	var req syncapp.SellingPlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	plan, err := h.plans.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, plan)
}

// Update godoc
//
//	@ID				updateSellingPlan
//	@Summary		Update a selling plan
//	@Tags			selling-plans
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Plan ID"	format(uuid)
//	@Param			request	body		syncapp.SellingPlanInput	true	"Plan"
//	@Success		200		{object}	APIResponse[syncapp.SellingPlanResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/selling-plans/{id} [put]
func (h *SellingPlanHandler) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid selling plan ID")
		return
	}
	var req syncapp.SellingPlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	plan, err := h.plans.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, plan)
}

// Deactivate godoc
//
//	@ID				deactivateSellingPlan
//	@Summary		Deactivate a selling plan
//	@Description	Inactive plans cannot be attached to new subscriptions
//	@Tags			selling-plans
//	@Produce		json
//	@Param			id	path		string	true	"Plan ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.SellingPlanResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/selling-plans/{id}/deactivate [post]
func (h *SellingPlanHandler) Deactivate(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid selling plan ID")
		return
	}

	plan, err := h.plans.Deactivate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, plan)
}

// Get godoc
//
//	@ID				getSellingPlan
//	@Summary		Get a selling plan
//	@Tags			selling-plans
//	@Produce		json
//	@Param			id	path		string	true	"Plan ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.SellingPlanResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/selling-plans/{id} [get]
func (h *SellingPlanHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid selling plan ID")
		return
	}

	plan, err := h.plans.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, plan)
}

// List godoc
//
//	@ID				listSellingPlans
//	@Summary		List selling plans
//	@Tags			selling-plans
//	@Produce		json
//	@Param			active_only	query		bool	false	"Only active plans"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)	maximum(100)
//	@Success		200			{object}	APIResponse[[]syncapp.SellingPlanResponse]
//	@Security		BearerAuth
//	@Router			/api/v1/selling-plans [get]
func (h *SellingPlanHandler) List(c *gin.Context) {
	var q SellingPlanListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	q.Normalize()

	plans, total, err := h.plans.List(c.Request.Context(), subscription.SellingPlanFilter{
		ActiveOnly: q.ActiveOnly,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, plans, total, q.Page, q.PageSize)
}
