package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/printsync/backend/internal/domain/shipping"
	"github.com/printsync/backend/internal/infrastructure/persistence/models"
)

// ErrSnapshotNotFound indicates no durable snapshot exists for the provider.
var ErrSnapshotNotFound = errors.New("persistence: shipping profile snapshot not found")

// GormProfileSnapshotRepository persists durable fallback copies of shipping
// profiles, one row per print provider.
type GormProfileSnapshotRepository struct {
	db *gorm.DB
}

// NewGormProfileSnapshotRepository creates a new GormProfileSnapshotRepository
func NewGormProfileSnapshotRepository(db *gorm.DB) *GormProfileSnapshotRepository {
	return &GormProfileSnapshotRepository{db: db}
}

// Save replaces the snapshot for the profile's provider
func (r *GormProfileSnapshotRepository) Save(ctx context.Context, profile *shipping.Profile) error {
	model := models.ShippingProfileSnapshotModelFromDomain(profile)
	model.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// Find returns the stored snapshot for a provider
func (r *GormProfileSnapshotRepository) Find(ctx context.Context, providerID int) (*shipping.Profile, error) {
	var model models.ShippingProfileSnapshotModel
	if err := r.db.WithContext(ctx).First(&model, "provider_id = ?", providerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns all stored snapshots
func (r *GormProfileSnapshotRepository) FindAll(ctx context.Context) ([]shipping.Profile, error) {
	var snapshotModels []models.ShippingProfileSnapshotModel
	if err := r.db.WithContext(ctx).Find(&snapshotModels).Error; err != nil {
		return nil, err
	}
	profiles := make([]shipping.Profile, len(snapshotModels))
	for i, model := range snapshotModels {
		profiles[i] = *model.ToDomain()
	}
	return profiles, nil
}
