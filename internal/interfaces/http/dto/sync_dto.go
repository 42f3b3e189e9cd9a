package dto

import "time"

// WebhookEvent is the payload delivered by the provider's webhook.
type WebhookEvent struct {
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`
}

// WebhookEventData carries the subject of the event.
type WebhookEventData struct {
	ID string `json:"id"`
}

// SyncTriggerResponse reports a manual reconciliation trigger.
type SyncTriggerResponse struct {
	Scheduled bool `json:"scheduled"`
}

// OrderActionRequest requests a local status-change action on an order.
type OrderActionRequest struct {
	Action string `json:"action" binding:"required,oneof=cancel refund submit"`
}

// SyncLogQuery narrows sync log listings.
type SyncLogQuery struct {
	EntityID string `form:"entity_id"`
	Action   string `form:"action" binding:"omitempty,oneof=import sync push status"`
	Outcome  string `form:"outcome" binding:"omitempty,oneof=success failure skipped"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"page_size,default=50" binding:"min=1,max=200"`
}

// SyncLogResponse is one sync audit trail entry.
type SyncLogResponse struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
