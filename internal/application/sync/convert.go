package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/printsync/backend/internal/domain/order"
	"github.com/printsync/backend/internal/infrastructure/provider"
)

// buildLocalOrder constructs a new local order from a provider order
// snapshot during import. The initial status comes from the status mapper;
// line items resolve local references from the provider's echoed metadata.
func buildLocalOrder(po *provider.Order) *order.LocalOrder {
	now := time.Now()
	localOrder := &order.LocalOrder{
		ID:               uuid.New(),
		Number:           po.ExternalID,
		Status:           order.MapProviderStatus(po.Status),
		Currency:         po.Currency,
		ShippingAddress:  toDomainAddress(po.AddressTo),
		ProviderOrderRef: po.ID,
		DeliveryEstimate: parseProviderTime(po.DeliveryEstimate),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for _, item := range po.LineItems {
		localOrder.LineItems = append(localOrder.LineItems, order.LineItem{
			ProductID:         item.Metadata.ProductID,
			VariantID:         item.Metadata.VariantID,
			Quantity:          item.Quantity,
			UnitPrice:         item.Cost,
			ProviderProductID: item.ProductID,
			ProviderVariantID: item.VariantID,
		})
	}
	localOrder.MergeShipments(toDomainShipments(po.Shipments))

	return localOrder
}

func toDomainShipments(shipments []provider.OrderShipment) []order.Shipment {
	result := make([]order.Shipment, 0, len(shipments))
	for _, s := range shipments {
		shipment := order.Shipment{
			Carrier:        s.Carrier,
			TrackingNumber: s.TrackingNumber,
			TrackingURL:    s.TrackingURL,
		}
		if at := parseProviderTime(s.DeliveredAt); at != nil {
			shipment.ShippedAt = *at
		}
		result = append(result, shipment)
	}
	return result
}

func toDomainAddress(addr provider.OrderAddress) order.Address {
	return order.Address{
		FirstName: addr.FirstName,
		LastName:  addr.LastName,
		Email:     addr.Email,
		Phone:     addr.Phone,
		Country:   addr.Country,
		Region:    addr.Region,
		City:      addr.City,
		Address1:  addr.Address1,
		Address2:  addr.Address2,
		Zip:       addr.Zip,
	}
}

func toProviderAddress(addr order.Address) provider.OrderAddress {
	return provider.OrderAddress{
		FirstName: addr.FirstName,
		LastName:  addr.LastName,
		Email:     addr.Email,
		Phone:     addr.Phone,
		Country:   addr.Country,
		Region:    addr.Region,
		City:      addr.City,
		Address1:  addr.Address1,
		Address2:  addr.Address2,
		Zip:       addr.Zip,
	}
}

// providerTimeLayouts are the timestamp formats observed in provider payloads.
var providerTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseProviderTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range providerTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
