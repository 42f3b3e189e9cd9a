package order

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrOrderNotFound indicates the local order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrLinkNotFound indicates no mapping exists for the given id.
	ErrLinkNotFound = errors.New("order: link not found")
	// ErrProviderRefAssigned indicates the provider reference is already set.
	// A provider reference, once set, is never reassigned.
	ErrProviderRefAssigned = errors.New("order: provider reference already assigned")
	// ErrInvalidTransition indicates a status change that would regress the
	// forward-only lifecycle.
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

// ---------------------------------------------------------------------------
// LocalOrder
// ---------------------------------------------------------------------------

// Address is a shipping or billing address on a local order.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
	Region    string `json:"region"`
	City      string `json:"city"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	Zip       string `json:"zip"`
}

// LineItem is a single product line on a local order. Provider product and
// variant ids stay empty until the item has been mapped to the fulfillment
// provider's catalog.
type LineItem struct {
	ProductID         string          `json:"product_id"`
	VariantID         string          `json:"variant_id"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	ProviderProductID string          `json:"provider_product_id"`
	ProviderVariantID string          `json:"provider_variant_id"`
}

// IsMapped returns true when the line item resolves to a provider catalog entry.
func (li LineItem) IsMapped() bool {
	return li.ProviderProductID != "" && li.ProviderVariantID != ""
}

// Shipment is a single fulfillment shipment attached to a local order.
// Shipments are append-only; an order accumulates them over its lifecycle.
type Shipment struct {
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"tracking_number"`
	TrackingURL    string    `json:"tracking_url"`
	ShippedAt      time.Time `json:"shipped_at"`
}

// LocalOrder is the storefront's representation of an order. The sync engine
// only mutates status, tracking and sync metadata; everything else is owned
// by the storefront platform.
type LocalOrder struct {
	ID               uuid.UUID
	Number           string
	Status           Status
	Currency         string
	LineItems        []LineItem
	ShippingAddress  Address
	Shipments        []Shipment
	ProviderOrderRef string // empty until linked, then immutable
	DeliveryEstimate *time.Time
	LastSyncedAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AssignProviderRef sets the provider order reference. The assignment is
// one-time; a second call with any value fails.
func (o *LocalOrder) AssignProviderRef(ref string) error {
	if o.ProviderOrderRef != "" {
		return ErrProviderRefAssigned
	}
	o.ProviderOrderRef = ref
	return nil
}

// ApplyStatus transitions the order to the given status, enforcing the
// forward-only lifecycle. Applying the current status is a no-op.
func (o *LocalOrder) ApplyStatus(next Status) error {
	if next == o.Status {
		return nil
	}
	if !CanTransition(o.Status, next) {
		return ErrInvalidTransition
	}
	o.Status = next
	return nil
}

// MergeShipments appends shipments the order does not already carry,
// de-duplicating by tracking number. Returns the number of new shipments.
func (o *LocalOrder) MergeShipments(incoming []Shipment) int {
	seen := make(map[string]struct{}, len(o.Shipments))
	for _, s := range o.Shipments {
		seen[normalizeTracking(s.TrackingNumber)] = struct{}{}
	}

	added := 0
	for _, s := range incoming {
		key := normalizeTracking(s.TrackingNumber)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		o.Shipments = append(o.Shipments, s)
		added++
	}
	return added
}

// MarkSynced records a successful sync at the given time.
func (o *LocalOrder) MarkSynced(at time.Time) {
	o.LastSyncedAt = &at
}

func normalizeTracking(tracking string) string {
	return strings.ToUpper(strings.TrimSpace(tracking))
}

// ---------------------------------------------------------------------------
// Order link
// ---------------------------------------------------------------------------

// Link is the persisted bidirectional mapping between a local order and a
// provider order. Lookups in both directions execute on every webhook
// delivery and must be single indexed reads.
type Link struct {
	ID              uuid.UUID
	LocalOrderID    uuid.UUID
	ProviderOrderID string
	CreatedAt       time.Time
}

// NewLink creates a link between a local order and a provider order.
func NewLink(localOrderID uuid.UUID, providerOrderID string) *Link {
	return &Link{
		ID:              uuid.New(),
		LocalOrderID:    localOrderID,
		ProviderOrderID: providerOrderID,
		CreatedAt:       time.Now(),
	}
}
