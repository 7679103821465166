package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SyncLogQuerier reads the audit trail
type SyncLogQuerier interface {
	List(ctx context.Context, filter integration.SyncLogFilter) ([]*integration.SyncLog, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*integration.SyncLog, error)
	Resolve(ctx context.Context, ref shared.EntityRef) (any, error)
}

// SyncLogListQuery holds the list filters
type SyncLogListQuery struct {
	dto.ListRequest
	Operation string `form:"operation"`
	Status    string `form:"status"`
}

// ResolvedEntity is an error reference together with the entity it points at
//
//	@Description	Entity referenced by a recorded sync error
type ResolvedEntity struct {
	Ref    shared.EntityRef `json:"ref"`
	Entity any              `json:"entity"`
}

// SyncLogHandler serves the sync audit log
type SyncLogHandler struct {
	BaseHandler
	logs SyncLogQuerier
}

// NewSyncLogHandler creates a new SyncLogHandler
func NewSyncLogHandler(logs SyncLogQuerier) *SyncLogHandler {
	return &SyncLogHandler{logs: logs}
}

// List godoc
//
//	@ID				listSyncLogs
//	@Summary		List sync logs
//	@Description	List audit records newest first, optionally filtered by operation and status
//	@Tags			sync-logs
//	@Produce		json
//	@Param			operation	query		string	false	"Operation"	Enums(PUSH_BATCH, PUSH_ENTITY, BILLING_RUN, BILLING_RETRY_SWEEP, WEBHOOK, CUSTOMER_SYNC)
//	@Param			status		query		string	false	"Status"	Enums(IN_PROGRESS, COMPLETED, FAILED)
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)	maximum(100)
//	@Success		200			{object}	APIResponse[[]SyncLogResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/sync/logs [get]
func (h *SyncLogHandler) List(c *gin.Context) {
	var q SyncLogListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	q.Normalize()

	logs, total, err := h.logs.List(c.Request.Context(), integration.SyncLogFilter{
		Operation: integration.SyncOperation(strings.ToUpper(q.Operation)),
		Status:    integration.SyncLogStatus(strings.ToUpper(q.Status)),
		Limit:     q.PageSize,
		Offset:    q.Offset(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toSyncLogResponses(logs), total, q.Page, q.PageSize)
}

// Get godoc
//
//	@ID				getSyncLog
//	@Summary		Get a sync log
//	@Tags			sync-logs
//	@Produce		json
//	@Param			id	path		string	true	"Sync log ID"	format(uuid)
//	@Success		200	{object}	APIResponse[SyncLogResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/sync/logs/{id} [get]
func (h *SyncLogHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid sync log ID")
		return
	}

	log, err := h.logs.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSyncLogResponse(log))
}

// ResolveError godoc
//
//	@ID				resolveSyncLogError
//	@Summary		Resolve a sync error's entity
//	@Description	Load the entity that the error at the given index points at
//	@Tags			sync-logs
//	@Produce		json
//	@Param			id		path		string	true	"Sync log ID"	format(uuid)
//	@Param			index	path		int		true	"Zero-based error index"
//	@Success		200		{object}	APIResponse[ResolvedEntity]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/sync/logs/{id}/errors/{index}/entity [get]
func (h *SyncLogHandler) ResolveError(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid sync log ID")
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		h.BadRequest(c, "Invalid error index")
		return
	}

	log, err := h.logs.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if index >= len(log.Errors) {
		h.NotFound(c, "Sync log has no error at this index")
		return
	}
	ref := log.Errors[index].Ref
	if ref.IsZero() {
		h.NotFound(c, "Sync error does not reference an entity")
		return
	}

	h.resolve(c, ref)
}

// ResolveEntity godoc
//
//	@ID				resolveEntity
//	@Summary		Resolve an entity reference
//	@Tags			sync-logs
//	@Produce		json
//	@Param			kind	path		string	true	"Entity kind"	Enums(selling_plan, subscription, billing_attempt, customer)
//	@Param			id		path		string	true	"Entity ID"		format(uuid)
//	@Success		200		{object}	APIResponse[ResolvedEntity]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/api/v1/sync/entities/{kind}/{id} [get]
func (h *SyncLogHandler) ResolveEntity(c *gin.Context) {
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

	h.resolve(c, ref)
}

func (h *SyncLogHandler) resolve(c *gin.Context, ref shared.EntityRef) {
	entity, err := h.logs.Resolve(c.Request.Context(), ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ResolvedEntity{Ref: ref, Entity: entity})
}
