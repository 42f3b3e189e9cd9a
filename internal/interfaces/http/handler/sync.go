package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appsync "github.com/printsync/backend/internal/application/sync"
	"github.com/printsync/backend/internal/domain/order"
	"github.com/printsync/backend/internal/infrastructure/queue"
	"github.com/printsync/backend/internal/interfaces/http/dto"
	"github.com/printsync/backend/internal/interfaces/http/middleware"
)

// SyncActions is the slice of the sync engine the admin surface drives.
type SyncActions interface {
	PushLocalOrder(ctx context.Context, localOrder *order.LocalOrder) error
	HandleStatusChange(ctx context.Context, localOrderID uuid.UUID, action string) error
}

// SyncHandler exposes the admin sync surface: manual reconciliation trigger,
// the sync audit trail, and per-order push and status actions.
type SyncHandler struct {
	engine SyncActions
	orders order.Repository
	logs   order.SyncLogRepository
	tasks  queue.TaskQueue
	logger *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(
	engine SyncActions,
	orders order.Repository,
	logs order.SyncLogRepository,
	tasks queue.TaskQueue,
	logger *zap.Logger,
) *SyncHandler {
	return &SyncHandler{
		engine: engine,
		orders: orders,
		logs:   logs,
		tasks:  tasks,
		logger: logger,
	}
}

// RegisterRoutes registers sync admin routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync/trigger", h.TriggerSync)
	rg.GET("/sync/logs", h.ListSyncLogs)
	rg.POST("/orders/:id/push", h.PushOrder)
	rg.POST("/orders/:id/actions", h.SubmitOrderAction)
}

// TriggerSync schedules a full reconciliation sweep. The sweep shares its
// idempotency key with the periodic one, so hammering the endpoint schedules
// at most one pending sweep.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	scheduled, err := h.tasks.Enqueue(c.Request.Context(), queue.TaskSyncAll, nil, 0, queue.TaskSyncAll)
	if err != nil {
		h.logger.Error("failed to schedule reconciliation sweep", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("ENQUEUE_FAILED", "could not schedule sync"))
		return
	}

	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(dto.SyncTriggerResponse{Scheduled: scheduled}))
}

// ListSyncLogs returns the sync audit trail, newest first.
func (h *SyncHandler) ListSyncLogs(c *gin.Context) {
	var query dto.SyncLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := order.SyncLogFilter{
		EntityID: query.EntityID,
		Action:   order.SyncAction(query.Action),
		Outcome:  order.SyncOutcome(query.Outcome),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	entries, total, err := h.logs.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list sync logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("LIST_FAILED", "could not list sync logs"))
		return
	}

	items := make([]dto.SyncLogResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.SyncLogResponse{
			ID:         entry.ID.String(),
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Action:     string(entry.Action),
			Outcome:    string(entry.Outcome),
			Message:    entry.Message,
			CreatedAt:  entry.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(items, total, filter.Page, filter.PageSize))
}

// PushOrder submits a local order to the provider.
func (h *SyncHandler) PushOrder(c *gin.Context) {
	localOrderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_REQUEST", "invalid order id"))
		return
	}

	localOrder, err := h.orders.FindByID(c.Request.Context(), localOrderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, dto.NewErrorResponse("NOT_FOUND", "order not found"))
			return
		}
		h.logger.Error("failed to load order", zap.String("order_id", localOrderID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("PUSH_FAILED", "could not load order"))
		return
	}

	if err := h.engine.PushLocalOrder(c.Request.Context(), localOrder); err != nil {
		switch {
		case errors.Is(err, appsync.ErrPushDisabled):
			c.JSON(http.StatusConflict, dto.NewErrorResponse("PUSH_DISABLED", "outbound push is disabled"))
		case errors.Is(err, appsync.ErrNoMappedLineItems):
			c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse("NO_MAPPED_ITEMS", "no line items with provider mapping"))
		default:
			h.logger.Error("push failed", zap.String("order_id", localOrderID.String()), zap.Error(err))
			c.JSON(http.StatusBadGateway, dto.NewErrorResponse("PUSH_FAILED", "provider rejected the order"))
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"pushed": true}))
}

// SubmitOrderAction forwards a local status-change request to the provider.
func (h *SyncHandler) SubmitOrderAction(c *gin.Context) {
	localOrderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_REQUEST", "invalid order id"))
		return
	}

	var req dto.OrderActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	if err := h.engine.HandleStatusChange(c.Request.Context(), localOrderID, req.Action); err != nil {
		switch {
		case errors.Is(err, appsync.ErrUnknownAction):
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse("UNKNOWN_ACTION", "action not supported"))
		case errors.Is(err, order.ErrLinkNotFound):
			c.JSON(http.StatusNotFound, dto.NewErrorResponse("NOT_LINKED", "order has no provider mapping"))
		default:
			h.logger.Error("order action failed",
				zap.String("order_id", localOrderID.String()),
				zap.String("action", req.Action),
				zap.Error(err),
			)
			c.JSON(http.StatusBadGateway, dto.NewErrorResponse("ACTION_FAILED", "provider rejected the action"))
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"submitted": true}))
}
