package provider

import "github.com/shopspring/decimal"

// ---------------------------------------------------------------------------
// Order wire types
// ---------------------------------------------------------------------------

// Order is the provider's representation of an order, fetched as an
// immutable snapshot per sync.
type Order struct {
	ID               string          `json:"id"`
	ExternalID       string          `json:"external_id"`
	Status           string          `json:"status"`
	LineItems        []OrderLineItem `json:"line_items"`
	Shipments        []OrderShipment `json:"shipments"`
	AddressTo        OrderAddress    `json:"address_to"`
	Currency         string          `json:"currency"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	DeliveryEstimate string          `json:"estimated_delivery_date"`
	CreatedAt        string          `json:"created_at"`
}

// OrderLineItem is a single line on a provider order.
type OrderLineItem struct {
	ProductID string           `json:"product_id"`
	VariantID string           `json:"variant_id"`
	Quantity  int              `json:"quantity"`
	Cost      decimal.Decimal  `json:"cost"`
	Metadata  LineItemMetadata `json:"metadata"`
}

// LineItemMetadata echoes storefront references on provider line items.
type LineItemMetadata struct {
	SKU       string `json:"sku"`
	ProductID string `json:"local_product_id"`
	VariantID string `json:"local_variant_id"`
}

// OrderShipment is one shipment attached to a provider order.
type OrderShipment struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"number"`
	TrackingURL    string `json:"url"`
	DeliveredAt    string `json:"delivered_at"`
}

// OrderAddress is the destination address on a provider order.
type OrderAddress struct {
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

// OrdersPage is one page of the provider's paginated order listing.
type OrdersPage struct {
	CurrentPage int     `json:"current_page"`
	LastPage    int     `json:"last_page"`
	Total       int     `json:"total"`
	Data        []Order `json:"data"`
}

// HasMore reports whether more pages follow this one.
func (p *OrdersPage) HasMore() bool {
	return p.CurrentPage < p.LastPage
}

// ---------------------------------------------------------------------------
// Order submission
// ---------------------------------------------------------------------------

// OrderSubmission is the payload for creating an order on the provider.
type OrderSubmission struct {
	ExternalID       string               `json:"external_id"`
	LineItems        []SubmissionLineItem `json:"line_items"`
	AddressTo        OrderAddress         `json:"address_to"`
	SendToProduction bool                 `json:"send_shipping_notification"`
}

// SubmissionLineItem is one mapped line item in an order submission.
type SubmissionLineItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// OrderAction is a status action submitted against a provider order.
type OrderAction string

const (
	OrderActionCancel OrderAction = "cancel"
	OrderActionRefund OrderAction = "refund"
	OrderActionSubmit OrderAction = "submit"
)

// IsValid returns true for known order actions.
func (a OrderAction) IsValid() bool {
	switch a {
	case OrderActionCancel, OrderActionRefund, OrderActionSubmit:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Shipping profile wire types
// ---------------------------------------------------------------------------

// PrintProvider is one fulfillment provider from the provider listing.
type PrintProvider struct {
	ID   int    `json:"id"`
	Name string `json:"title"`
}

// ShippingInfo is the raw shipping rate table for one print provider.
type ShippingInfo struct {
	Currency string            `json:"currency"`
	Profiles []ShippingProfile `json:"profiles"`
}

// ShippingProfile is one region entry in the raw shipping info. Missing
// first_item/additional_item fields default to cost/0 during normalization.
type ShippingProfile struct {
	Method          string           `json:"method"`
	Carrier         string           `json:"carrier"`
	Countries       []string         `json:"countries"`
	Subregion       string           `json:"subregion"`
	PostcodePattern string           `json:"postcode_pattern"`
	Cost            *decimal.Decimal `json:"cost"`
	FirstItem       *decimal.Decimal `json:"first_item"`
	AdditionalItem  *decimal.Decimal `json:"additional_item"`
	MinDeliveryDays int              `json:"min_delivery_days"`
	MaxDeliveryDays int              `json:"max_delivery_days"`
}
