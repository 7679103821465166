package handler

import (
	"context"

	"github.com/eo-nwanze/lavish-sub000/internal/application/billing"
	syncapp "github.com/eo-nwanze/lavish-sub000/internal/application/sync"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
)

// BillingRunner runs billing batches
type BillingRunner interface {
	Run(ctx context.Context, opts billing.RunOptions) (*billing.RunSummary, error)
	RetrySweep(ctx context.Context, opts billing.RunOptions) (*billing.RunSummary, error)
}

// EntityPusher pushes local entities to the remote platform
type EntityPusher interface {
	Push(ctx context.Context, ref shared.EntityRef) (*syncapp.PushResult, error)
	SyncPending(ctx context.Context) (*syncapp.SyncSummary, error)
	SyncPendingPlans(ctx context.Context) (*syncapp.SyncSummary, error)
}

// JobGuard serializes manual triggers with scheduled runs of the same job
type JobGuard interface {
	Exclusive(ctx context.Context, name string, fn scheduler.JobFunc) error
	Jobs() []scheduler.JobState
}

// PushRunResponse is the outcome of a manual push of pending entities
//
//	@Description	Plans are pushed before subscriptions so plan references resolve
type PushRunResponse struct {
	Plans         *syncapp.SyncSummary `json:"plans"`
	Subscriptions *syncapp.SyncSummary `json:"subscriptions"`
}

// SyncHandler exposes operator triggers for billing and push batches
type SyncHandler struct {
	BaseHandler
	billing BillingRunner
	pusher  EntityPusher
	guard   JobGuard
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(billing BillingRunner, pusher EntityPusher, guard JobGuard) *SyncHandler {
	return &SyncHandler{
		billing: billing,
		pusher:  pusher,
		guard:   guard,
	}
}

// PushPending pushes pending plans, then pending subscriptions
func PushPending(ctx context.Context, pusher EntityPusher) (*PushRunResponse, error) {
	plans, err := pusher.SyncPendingPlans(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := pusher.SyncPending(ctx)
	if err != nil {
		return &PushRunResponse{Plans: plans}, err
	}
	return &PushRunResponse{Plans: plans, Subscriptions: subs}, nil
}

// RunBilling godoc
//
//	@ID				runBilling
//	@Summary		Run the billing batch
//	@Description	Charge every active subscription due on or before the billing date
//	@Tags			sync
//	@Produce		json
//	@Param			dry_run	query		bool	false	"Evaluate eligibility without charging"
//	@Param			date	query		string	false	"Billing date override (YYYY-MM-DD)"
//	@Success		200		{object}	APIResponse[billing.RunSummary]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"A billing run is already in progress"
//	@Security		BearerAuth
//	@Router			/api/v1/sync/billing/run [post]
func (h *SyncHandler) RunBilling(c *gin.Context) {
	h.runBilling(c, scheduler.JobBillingRun, h.billing.Run)
}

// RetryBilling godoc
//
//	@ID				retryBilling
//	@Summary		Run the billing retry sweep
//	@Description	Retry subscriptions whose last attempt failed within the failure window
//	@Tags			sync
//	@Produce		json
//	@Param			dry_run	query		bool	false	"Evaluate eligibility without charging"
//	@Param			date	query		string	false	"Billing date override (YYYY-MM-DD)"
//	@Success		200		{object}	APIResponse[billing.RunSummary]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"A retry sweep is already in progress"
//	@Security		BearerAuth
//	@Router			/api/v1/sync/billing/retry [post]
func (h *SyncHandler) RetryBilling(c *gin.Context) {
	h.runBilling(c, scheduler.JobRetrySweep, h.billing.RetrySweep)
}

func (h *SyncHandler) runBilling(
	c *gin.Context,
	job string,
	run func(context.Context, billing.RunOptions) (*billing.RunSummary, error),
) {
	dryRun, err := queryBool(c, "dry_run")
	if err != nil {
		h.BadRequest(c, "dry_run must be a boolean")
		return
	}
	today, err := queryDate(c, "date")
	if err != nil {
		h.BadRequest(c, "date must be formatted as YYYY-MM-DD")
		return
	}

	var summary *billing.RunSummary
	err = h.guard.Exclusive(c.Request.Context(), job, func(ctx context.Context) error {
		var runErr error
		summary, runErr = run(ctx, billing.RunOptions{DryRun: dryRun, Today: today})
		return runErr
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// PushPendingEntities godoc
//
//	@ID				pushPending
//	@Summary		Push pending entities
//	@Description	Push every selling plan and subscription with unsynced local changes
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	APIResponse[PushRunResponse]
//	@Failure		409	{object}	ErrorResponse	"A push batch is already in progress"
//	@Security		BearerAuth
//	@Router			/api/v1/sync/push [post]
func (h *SyncHandler) PushPendingEntities(c *gin.Context) {
	var resp *PushRunResponse
	err := h.guard.Exclusive(c.Request.Context(), scheduler.JobPushPending, func(ctx context.Context) error {
		var pushErr error
		resp, pushErr = PushPending(ctx, h.pusher)
		return pushErr
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// PushEntity godoc
//
//	@ID				pushEntity
//	@Summary		Push one entity
//	@Description	Push a single selling plan or subscription regardless of its pending flag
//	@Tags			sync
//	@Produce		json
//	@Param			kind	path		string	true	"Entity kind"	Enums(selling_plan, subscription)
//	@Param			id		path		string	true	"Entity ID"		format(uuid)
//	@Success		200		{object}	APIResponse[syncapp.PushResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/sync/push/{kind}/{id} [post]
func (h *SyncHandler) PushEntity(c *gin.Context) {
	kind, err := shared.ParseEntityKind(c.Param("kind"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid entity ID")
		return
	}
	ref, err := shared.NewEntityRef(kind, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.pusher.Push(c.Request.Context(), ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ListJobs godoc
//
//	@ID				listSyncJobs
//	@Summary		List scheduled jobs
//	@Description	Show schedule and last-run bookkeeping of every registered job
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]scheduler.JobState]
//	@Security		BearerAuth
//	@Router			/api/v1/sync/jobs [get]
func (h *SyncHandler) ListJobs(c *gin.Context) {
	h.Success(c, h.guard.Jobs())
}
