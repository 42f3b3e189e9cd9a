package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printsync/backend/internal/domain/order"
	"github.com/printsync/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds a local order by its id
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.LocalOrder, error) {
	var model models.LocalOrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create persists a newly imported local order
func (r *GormOrderRepository) Create(ctx context.Context, o *order.LocalOrder) error {
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	return r.db.WithContext(ctx).Create(models.LocalOrderModelFromDomain(o)).Error
}

// CreateWithLink persists an imported order and its provider link in one
// transaction. The link's unique provider_order_id index rejects duplicates
// and rolls back the order row with them.
func (r *GormOrderRepository) CreateWithLink(ctx context.Context, o *order.LocalOrder, link *order.Link) error {
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.OrderLinkModelFromDomain(link)).Error; err != nil {
			return err
		}
		return tx.Create(models.LocalOrderModelFromDomain(o)).Error
	})
}

// Update persists changes to an existing local order
func (r *GormOrderRepository) Update(ctx context.Context, o *order.LocalOrder) error {
	o.UpdatedAt = time.Now()
	model := models.LocalOrderModelFromDomain(o)
	result := r.db.WithContext(ctx).Model(&models.LocalOrderModel{}).
		Where("id = ?", o.ID).
		Updates(map[string]any{
			"status":             model.Status,
			"line_items":         model.LineItemsJSON,
			"shipments":          model.ShipmentsJSON,
			"provider_order_ref": model.ProviderOrderRef,
			"delivery_estimate":  model.DeliveryEstimate,
			"last_synced_at":     model.LastSyncedAt,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

var _ order.Repository = (*GormOrderRepository)(nil)
