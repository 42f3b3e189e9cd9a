package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/printsync/backend/internal/interfaces/http/dto"
	"github.com/printsync/backend/internal/interfaces/http/middleware"
)

// maxWebhookBody bounds webhook payload size.
const maxWebhookBody = 1 << 20

// OrderEventSink schedules processing for a provider order referenced by a
// webhook event.
type OrderEventSink interface {
	EnqueueOrderEvent(ctx context.Context, providerOrderID string) error
}

// WebhookHandler receives provider webhook deliveries. Processing is always
// deferred to the task queue; the handler only validates and acknowledges, so
// the provider sees a fast 2xx and duplicate deliveries collapse in the queue.
type WebhookHandler struct {
	sink   OrderEventSink
	secret string
	logger *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(sink OrderEventSink, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{sink: sink, secret: secret, logger: logger}
}

// RegisterRoutes registers webhook routes behind the shared-secret check.
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	grp := rg.Group("/webhooks", middleware.WebhookAuth(h.secret), middleware.BodyLimit(maxWebhookBody))
	grp.POST("/orders", h.HandleOrderEvent)
}

// HandleOrderEvent processes one webhook delivery. Events for orders are
// enqueued by provider order id; event types outside the order family are
// acknowledged and ignored so new provider event types never cause redelivery
// storms.
func (h *WebhookHandler) HandleOrderEvent(c *gin.Context) {
	var event dto.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_PAYLOAD", "malformed webhook payload"))
		return
	}
	if event.Type == "" || event.Data.ID == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_PAYLOAD", "missing event type or order id"))
		return
	}

	if !isOrderEvent(event.Type) {
		h.logger.Warn("ignoring webhook event of unknown type",
			zap.String("type", event.Type),
			zap.String("id", event.Data.ID),
		)
		c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"ignored": true}))
		return
	}

	if err := h.sink.EnqueueOrderEvent(c.Request.Context(), event.Data.ID); err != nil {
		h.logger.Error("failed to enqueue webhook event",
			zap.String("type", event.Type),
			zap.String("id", event.Data.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("ENQUEUE_FAILED", "could not schedule event processing"))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"scheduled": true}))
}

// isOrderEvent reports whether the event type belongs to the order family,
// e.g. "order.created", "order.updated" or "order.fulfilled".
func isOrderEvent(eventType string) bool {
	return strings.HasPrefix(strings.ToLower(eventType), "order.")
}
