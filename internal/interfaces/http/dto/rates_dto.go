package dto

// RateQuoteRequest asks for shipping options for a cart and destination.
type RateQuoteRequest struct {
	Items       []RateQuoteItem `json:"items" binding:"required,min=1,dive"`
	Destination RateDestination `json:"destination" binding:"required"`
	Currency    string          `json:"currency" binding:"omitempty,len=3"`
}

// RateQuoteItem is one cart line resolved to its fulfillment provider.
type RateQuoteItem struct {
	ProviderID int `json:"provider_id" binding:"required,min=1"`
	Quantity   int `json:"quantity" binding:"required,min=1"`
}

// RateDestination is the shipping destination.
type RateDestination struct {
	Country  string `json:"country" binding:"required,len=2"`
	Region   string `json:"region"`
	Postcode string `json:"postcode"`
}

// RateOptionResponse is one shipping choice.
type RateOptionResponse struct {
	Provider        string `json:"provider,omitempty"`
	Method          string `json:"method"`
	Carrier         string `json:"carrier,omitempty"`
	Cost            string `json:"cost"`
	Currency        string `json:"currency"`
	MinDeliveryDays int    `json:"min_delivery_days"`
	MaxDeliveryDays int    `json:"max_delivery_days"`
	Fallback        bool   `json:"fallback,omitempty"`
}

// RateQuoteResponse is the full set of options for a cart.
type RateQuoteResponse struct {
	Options  []RateOptionResponse `json:"options"`
	Combined bool                 `json:"combined"`
}
