package order

import "strings"

// DefaultStatus is returned for provider statuses outside the documented
// vocabulary. Unknown input never fails the sync; the provider's status
// vocabulary drifts and a safe default keeps orders flowing.
const DefaultStatus = StatusProcessing

// providerStatusTable maps the provider's status vocabulary to the local
// lifecycle. Keys are normalized (lowercase, underscores). The table is data,
// not logic, so it can be tested exhaustively.
var providerStatusTable = map[string]Status{
	// Pre-production.
	"pending":              StatusProcessing,
	"payment_not_received": StatusOnHold,
	"on_hold":              StatusOnHold,
	"has_issues":           StatusOnHold,

	// Production.
	"sending_to_production": StatusProcessing,
	"in_production":         StatusProcessing,

	// Shipping.
	"fulfilled":           StatusShipped,
	"partially_fulfilled": StatusShipped,
	"shipped":             StatusShipped,

	// Terminal.
	"delivered": StatusCompleted,
	"completed": StatusCompleted,

	// Cancellation and refunds.
	"canceled":                 StatusCancelled,
	"cancelled":                StatusCancelled,
	"refunded":                 StatusRefunded,
	"refund_requested":         StatusRefundRequested,
	"refund_awaiting_approval": StatusRefundRequested,
	"refund_approved":          StatusRefundApproved,
	"refund_declined":          StatusRefundDeclined,

	// Reprints.
	"reprint_requested":         StatusReprintRequested,
	"reprint_awaiting_approval": StatusReprintRequested,
	"reprint_approved":          StatusReprintApproved,
	"reprint_declined":          StatusReprintDeclined,
}

// MapProviderStatus maps a provider status string to a local order status.
// Input is normalized before lookup; unmapped input returns DefaultStatus.
func MapProviderStatus(providerStatus string) Status {
	key := normalizeStatusKey(providerStatus)
	if status, ok := providerStatusTable[key]; ok {
		return status
	}
	return DefaultStatus
}

// KnownProviderStatuses returns the documented provider vocabulary.
func KnownProviderStatuses() []string {
	keys := make([]string, 0, len(providerStatusTable))
	for key := range providerStatusTable {
		keys = append(keys, key)
	}
	return keys
}

// normalizeStatusKey lowercases the input and collapses spaces and hyphens
// to underscores so "In Production" and "in-production" hit the same entry.
func normalizeStatusKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}
