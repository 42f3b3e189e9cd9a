package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ---------------------------------------------------------------------------
// Typed endpoint wrappers
// ---------------------------------------------------------------------------

// ListOrders fetches one page of the shop's order listing.
func (c *Client) ListOrders(ctx context.Context, page, limit int) (*OrdersPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	var result OrdersPage
	endpoint := fmt.Sprintf("/shops/%s/orders.json", c.config.ShopID)
	if err := c.Get(ctx, endpoint, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOrder fetches a single provider order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var result Order
	endpoint := fmt.Sprintf("/shops/%s/orders/%s.json", c.config.ShopID, url.PathEscape(orderID))
	if err := c.Get(ctx, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateOrder submits a new order to the provider and returns the created
// provider order.
func (c *Client) CreateOrder(ctx context.Context, submission *OrderSubmission) (*Order, error) {
	var result Order
	endpoint := fmt.Sprintf("/shops/%s/orders.json", c.config.ShopID)
	if err := c.Post(ctx, endpoint, submission, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitOrderAction submits a status action (cancel, refund, submit) against
// a provider order.
func (c *Client) SubmitOrderAction(ctx context.Context, orderID string, action OrderAction) error {
	if !action.IsValid() {
		return &ClientError{Status: 0, Body: fmt.Sprintf("unknown order action %q", action)}
	}
	endpoint := fmt.Sprintf("/shops/%s/orders/%s/%s.json", c.config.ShopID, url.PathEscape(orderID), action)
	return c.Post(ctx, endpoint, nil, nil)
}

// ListPrintProviders fetches the print provider listing.
func (c *Client) ListPrintProviders(ctx context.Context) ([]PrintProvider, error) {
	var result []PrintProvider
	endpoint := fmt.Sprintf("/shops/%s/print-providers.json", c.config.ShopID)
	if err := c.Get(ctx, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetShippingInfo fetches the raw shipping rate table for one print provider.
func (c *Client) GetShippingInfo(ctx context.Context, providerID int) (*ShippingInfo, error) {
	var result ShippingInfo
	endpoint := fmt.Sprintf("/shops/%s/print-providers/%d/shipping-info.json", c.config.ShopID, providerID)
	if err := c.Get(ctx, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
