package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/printsync/backend/internal/domain/order"
)

// LocalOrderModel is the persistence model for the LocalOrder domain entity.
// Line items, shipments and the shipping address are stored as JSON columns;
// the sync engine treats them as opaque collections, never as query targets.
type LocalOrderModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key"`
	Number           string     `gorm:"type:varchar(50);not null;index"`
	Status           string     `gorm:"type:varchar(30);not null"`
	Currency         string     `gorm:"type:varchar(3);not null"`
	LineItemsJSON    string     `gorm:"type:jsonb;column:line_items"`
	AddressJSON      string     `gorm:"type:jsonb;column:shipping_address"`
	ShipmentsJSON    string     `gorm:"type:jsonb;column:shipments"`
	ProviderOrderRef string     `gorm:"type:varchar(100);index"`
	DeliveryEstimate *time.Time
	LastSyncedAt     *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LocalOrderModel) TableName() string {
	return "local_orders"
}

// ToDomain converts the persistence model to a domain LocalOrder entity.
func (m *LocalOrderModel) ToDomain() *order.LocalOrder {
	o := &order.LocalOrder{
		ID:               m.ID,
		Number:           m.Number,
		Status:           order.Status(m.Status),
		Currency:         m.Currency,
		ProviderOrderRef: m.ProviderOrderRef,
		DeliveryEstimate: m.DeliveryEstimate,
		LastSyncedAt:     m.LastSyncedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}

	if m.LineItemsJSON != "" {
		var items []order.LineItem
		if err := json.Unmarshal([]byte(m.LineItemsJSON), &items); err == nil {
			o.LineItems = items
		}
	}
	if m.AddressJSON != "" {
		var addr order.Address
		if err := json.Unmarshal([]byte(m.AddressJSON), &addr); err == nil {
			o.ShippingAddress = addr
		}
	}
	if m.ShipmentsJSON != "" {
		var shipments []order.Shipment
		if err := json.Unmarshal([]byte(m.ShipmentsJSON), &shipments); err == nil {
			o.Shipments = shipments
		}
	}

	return o
}

// FromDomain populates the persistence model from a domain LocalOrder entity.
func (m *LocalOrderModel) FromDomain(o *order.LocalOrder) {
	m.ID = o.ID
	m.Number = o.Number
	m.Status = o.Status.String()
	m.Currency = o.Currency
	m.ProviderOrderRef = o.ProviderOrderRef
	m.DeliveryEstimate = o.DeliveryEstimate
	m.LastSyncedAt = o.LastSyncedAt
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt

	m.LineItemsJSON = marshalOrEmptyArray(o.LineItems)
	m.ShipmentsJSON = marshalOrEmptyArray(o.Shipments)
	if addrBytes, err := json.Marshal(o.ShippingAddress); err == nil {
		m.AddressJSON = string(addrBytes)
	}
}

// LocalOrderModelFromDomain creates a new persistence model from a domain entity.
func LocalOrderModelFromDomain(o *order.LocalOrder) *LocalOrderModel {
	m := &LocalOrderModel{}
	m.FromDomain(o)
	return m
}

func marshalOrEmptyArray(v any) string {
	jsonBytes, err := json.Marshal(v)
	if err != nil || string(jsonBytes) == "null" {
		return "[]"
	}
	return string(jsonBytes)
}

// OrderLinkModel is the persistence model for the provider-order mapping.
// Both columns carry unique indexes so webhook-path lookups in either
// direction are single indexed reads.
type OrderLinkModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	LocalOrderID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_order_links_local"`
	ProviderOrderID string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_order_links_provider"`
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderLinkModel) TableName() string {
	return "order_links"
}

// ToDomain converts the persistence model to a domain Link.
func (m *OrderLinkModel) ToDomain() *order.Link {
	return &order.Link{
		ID:              m.ID,
		LocalOrderID:    m.LocalOrderID,
		ProviderOrderID: m.ProviderOrderID,
		CreatedAt:       m.CreatedAt,
	}
}

// OrderLinkModelFromDomain creates a persistence model from a domain Link.
func OrderLinkModelFromDomain(link *order.Link) *OrderLinkModel {
	return &OrderLinkModel{
		ID:              link.ID,
		LocalOrderID:    link.LocalOrderID,
		ProviderOrderID: link.ProviderOrderID,
		CreatedAt:       link.CreatedAt,
	}
}

// SyncLogModel is the persistence model for the append-only sync audit trail.
type SyncLogModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	EntityType string    `gorm:"type:varchar(30);not null"`
	EntityID   string    `gorm:"type:varchar(100);not null;index"`
	Action     string    `gorm:"type:varchar(20);not null;index"`
	Outcome    string    `gorm:"type:varchar(20);not null;index"`
	Message    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLogEntry.
func (m *SyncLogModel) ToDomain() *order.SyncLogEntry {
	return &order.SyncLogEntry{
		ID:         m.ID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Action:     order.SyncAction(m.Action),
		Outcome:    order.SyncOutcome(m.Outcome),
		Message:    m.Message,
		CreatedAt:  m.CreatedAt,
	}
}

// SyncLogModelFromDomain creates a persistence model from a domain entry.
func SyncLogModelFromDomain(e *order.SyncLogEntry) *SyncLogModel {
	return &SyncLogModel{
		ID:         e.ID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     string(e.Action),
		Outcome:    string(e.Outcome),
		Message:    e.Message,
		CreatedAt:  e.CreatedAt,
	}
}
