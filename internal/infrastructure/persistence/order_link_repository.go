package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printsync/backend/internal/domain/order"
	"github.com/printsync/backend/internal/infrastructure/persistence/models"
)

// GormOrderLinkRepository implements order.LinkRepository using GORM.
// Both lookup directions are unique-indexed reads; this path runs on every
// webhook delivery.
type GormOrderLinkRepository struct {
	db *gorm.DB
}

// NewGormOrderLinkRepository creates a new GormOrderLinkRepository
func NewGormOrderLinkRepository(db *gorm.DB) *GormOrderLinkRepository {
	return &GormOrderLinkRepository{db: db}
}

// FindByProviderOrderID resolves a provider order id to its link
func (r *GormOrderLinkRepository) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*order.Link, error) {
	var model models.OrderLinkModel
	if err := r.db.WithContext(ctx).First(&model, "provider_order_id = ?", providerOrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrLinkNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLocalOrderID resolves a local order id to its link
func (r *GormOrderLinkRepository) FindByLocalOrderID(ctx context.Context, localOrderID uuid.UUID) (*order.Link, error) {
	var model models.OrderLinkModel
	if err := r.db.WithContext(ctx).First(&model, "local_order_id = ?", localOrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrLinkNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create persists a new link. The unique index on provider_order_id rejects
// duplicate mappings for the same provider order.
func (r *GormOrderLinkRepository) Create(ctx context.Context, link *order.Link) error {
	return r.db.WithContext(ctx).Create(models.OrderLinkModelFromDomain(link)).Error
}

var _ order.LinkRepository = (*GormOrderLinkRepository)(nil)
