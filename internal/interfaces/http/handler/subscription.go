package handler

import (
	"context"
	"time"

	syncapp "github.com/eo-nwanze/lavish-sub000/internal/application/sync"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SubscriptionManager is the local subscription lifecycle
type SubscriptionManager interface {
	Create(ctx context.Context, in syncapp.CreateSubscriptionInput) (*syncapp.SubscriptionResponse, error)
	Update(ctx context.Context, id uuid.UUID, in syncapp.UpdateSubscriptionInput) (*syncapp.SubscriptionResponse, error)
	Pause(ctx context.Context, id uuid.UUID) (*syncapp.SubscriptionResponse, error)
	Resume(ctx context.Context, id uuid.UUID) (*syncapp.SubscriptionResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) (*syncapp.SubscriptionResponse, error)
	Reactivate(ctx context.Context, id uuid.UUID, nextBilling time.Time) (*syncapp.SubscriptionResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*syncapp.SubscriptionResponse, error)
	List(ctx context.Context, filter subscription.SubscriptionFilter) ([]syncapp.SubscriptionResponse, int64, error)
}

// SubscriptionListQuery holds the list filters
type SubscriptionListQuery struct {
	dto.ListRequest
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	Status     string `form:"status"`
	NeedsPush  *bool  `form:"needs_push"`
	SortBy     string `form:"sort_by"`
	SortOrder  string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// ReactivateRequest carries the new billing date of a reactivated subscription
type ReactivateRequest struct {
	NextBillingDate string `json:"next_billing_date" binding:"required" example:"2026-11-01"`
}

// SubscriptionHandler manages local subscriptions
type SubscriptionHandler struct {
	BaseHandler
	subs SubscriptionManager
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(subs SubscriptionManager) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

// Create godoc
//
//	@ID				createSubscription
//	@Summary		Create a subscription
//	@Description	Create a local subscription; it is pushed to the remote platform on save or by the next push batch
//	@Tags			subscriptions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		syncapp.CreateSubscriptionInput	true	"Subscription"
//	@Success		201		{object}	APIResponse[syncapp.SubscriptionResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/subscriptions [post]
func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req syncapp.CreateSubscriptionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	sub, err := h.subs.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, sub)
}

// Update godoc
//
//	@ID				updateSubscription
//	@Summary		Update a subscription
//	@Tags			subscriptions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Subscription ID"	format(uuid)
//	@Param			request	body		syncapp.UpdateSubscriptionInput	true	"Changed fields"
//	@Success		200		{object}	APIResponse[syncapp.SubscriptionResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/subscriptions/{id} [put]
func (h *SubscriptionHandler) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid subscription ID")
		return
	}
	var req syncapp.UpdateSubscriptionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	sub, err := h.subs.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sub)
}

// Get godoc
//
//	@ID				getSubscription
//	@Summary		Get a subscription
//	@Tags			subscriptions
//	@Produce		json
//	@Param			id	path		string	true	"Subscription ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.SubscriptionResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/subscriptions/{id} [get]
func (h *SubscriptionHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid subscription ID")
		return
	}

	sub, err := h.subs.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sub)
}

// List godoc
//
//	@ID				listSubscriptions
//	@Summary		List subscriptions
//	@Tags			subscriptions
//	@Produce		json
//	@Param			customer_id	query		string	false	"Customer ID"	format(uuid)
//	@Param			status		query		string	false	"Status"		Enums(ACTIVE, PAUSED, CANCELLED, EXPIRED, FAILED)
//	@Param			needs_push	query		bool	false	"Only entities with unsynced changes"
//	@Param			sort_by		query		string	false	"Sort column"	Enums(created_at, updated_at, next_billing_date, status, billing_cycle_count)
//	@Param			sort_order	query		string	false	"Sort direction"	Enums(asc, desc)
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)	maximum(100)
//	@Success		200			{object}	APIResponse[[]syncapp.SubscriptionResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/subscriptions [get]
func (h *SubscriptionHandler) List(c *gin.Context) {
	var q SubscriptionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	q.Normalize()

	filter := subscription.SubscriptionFilter{
		NeedsPush: q.NeedsPush,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
	if q.CustomerID != "" {
		customerID := uuid.MustParse(q.CustomerID)
		filter.CustomerID = &customerID
	}
	if q.Status != "" {
		status, err := subscription.ParseStatus(q.Status)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		filter.Status = status
	}

	subs, total, err := h.subs.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, subs, total, q.Page, q.PageSize)
}

// Pause godoc
//
//	@ID				pauseSubscription
//	@Summary		Pause a subscription
//	@Tags			subscriptions
//	@Produce		json
//	@Param			id	path		string	true	"Subscription ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.SubscriptionResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse	"Transition not allowed from the current status"
//	@Security		BearerAuth
//	@Router			/api/v1/subscriptions/{id}/pause [post]
func (h *SubscriptionHandler) Pause(c *gin.Context) {
	h.transition(c, h.subs.Pause)
}

// Resume godoc
//
//	@ID				resumeSubscription
//	@Summary		Resume a paused subscription
//	@Tags			subscriptions
//	@Produce		json
//	@Param			id	path		string	true	"Subscription ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.SubscriptionResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse	"Transition not allowed from the current status"
//	@Security		BearerAuth
//	@Router			/api/v1/subscriptions/{id}/resume [post]
func (h *SubscriptionHandler) Resume(c *gin.Context) {
	h.transition(c, h.subs.Resume)
}

// Cancel godoc
//
//	@ID				cancelSubscription
//	@Summary		Cancel a subscription
//	@Tags			subscriptions
//	@Produce		json
//	@Param			id	path		string	true	"Subscription ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.SubscriptionResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse	"Transition not allowed from the current status"
//	@Security		BearerAuth
//	@Router			/api/v1/subscriptions/{id}/cancel [post]
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.subs.Cancel)
}

// Reactivate godoc
//
//	@ID				reactivateSubscription
//	@Summary		Reactivate a failed subscription
//	@Description	Move a FAILED subscription back to ACTIVE with a new billing date
//	@Tags			subscriptions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Subscription ID"	format(uuid)
//	@Param			request	body		ReactivateRequest	true	"New billing date"
//	@Success		200		{object}	APIResponse[syncapp.SubscriptionResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse	"Transition not allowed from the current status"
//	@Security		BearerAuth
//	@Router			/api/v1/subscriptions/{id}/reactivate [post]
func (h *SubscriptionHandler) Reactivate(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid subscription ID")
		return
	}
	var req ReactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	nextBilling, err := time.ParseInLocation(dateLayout, req.NextBillingDate, time.UTC)
	if err != nil {
		h.BadRequest(c, "next_billing_date must be formatted as YYYY-MM-DD")
		return
	}

	sub, err := h.subs.Reactivate(c.Request.Context(), id, nextBilling)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sub)
}

func (h *SubscriptionHandler) transition(
	c *gin.Context,
	change func(context.Context, uuid.UUID) (*syncapp.SubscriptionResponse, error),
) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid subscription ID")
		return
	}

	sub, err := change(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sub)
}
