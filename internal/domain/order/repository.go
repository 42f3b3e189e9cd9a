package order

import (
	"context"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Repository interfaces
// ---------------------------------------------------------------------------

// Repository defines persistence for local orders. The sync engine updates
// existing orders; it only creates orders when importing one that originated
// on the provider side with no local counterpart.
type Repository interface {
	// FindByID finds a local order by its id.
	FindByID(ctx context.Context, id uuid.UUID) (*LocalOrder, error)

	// Create persists a newly imported local order.
	Create(ctx context.Context, o *LocalOrder) error

	// CreateWithLink persists an imported order together with its provider
	// link atomically. When the link already exists the whole write is rolled
	// back, so a racing duplicate import never leaves an orphan order.
	CreateWithLink(ctx context.Context, o *LocalOrder, link *Link) error

	// Update persists changes to an existing local order.
	Update(ctx context.Context, o *LocalOrder) error
}

// LinkRepository defines persistence for the provider-order mapping table.
// Both lookups must be single indexed reads; they run on every webhook.
type LinkRepository interface {
	// FindByProviderOrderID resolves a provider order id to its link.
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*Link, error)

	// FindByLocalOrderID resolves a local order id to its link.
	FindByLocalOrderID(ctx context.Context, localOrderID uuid.UUID) (*Link, error)

	// Create persists a new link. A provider order id links to at most one
	// local order; creating a duplicate fails.
	Create(ctx context.Context, link *Link) error
}

// SyncLogFilter narrows sync log listings.
type SyncLogFilter struct {
	EntityID string
	Action   SyncAction
	Outcome  SyncOutcome
	Page     int
	PageSize int
}

// SyncLogRepository defines persistence for the append-only sync audit trail.
type SyncLogRepository interface {
	// Append writes one log entry.
	Append(ctx context.Context, entry *SyncLogEntry) error

	// List returns entries matching the filter, newest first, with the
	// total count.
	List(ctx context.Context, filter SyncLogFilter) ([]SyncLogEntry, int64, error)

	// Prune deletes entries beyond the retention limit, oldest first.
	Prune(ctx context.Context, keep int) error
}
