package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/printsync/backend/internal/domain/order"
	"github.com/printsync/backend/internal/infrastructure/persistence/models"
)

// GormSyncLogRepository implements order.SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append writes one log entry
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *order.SyncLogEntry) error {
	return r.db.WithContext(ctx).Create(models.SyncLogModelFromDomain(entry)).Error
}

// List returns entries matching the filter, newest first, with the total count
func (r *GormSyncLogRepository) List(ctx context.Context, filter order.SyncLogFilter) ([]order.SyncLogEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncLogModel{})
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", string(filter.Action))
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", string(filter.Outcome))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var logModels []models.SyncLogModel
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logModels).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]order.SyncLogEntry, len(logModels))
	for i, model := range logModels {
		entries[i] = *model.ToDomain()
	}
	return entries, total, nil
}

// Prune deletes entries beyond the retention limit, oldest first
func (r *GormSyncLogRepository) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SyncLogModel{}).Count(&count).Error; err != nil {
		return err
	}
	excess := count - int64(keep)
	if excess <= 0 {
		return nil
	}

	// Delete the oldest rows beyond the retention limit.
	subquery := r.db.WithContext(ctx).Model(&models.SyncLogModel{}).
		Select("id").
		Order("created_at ASC").
		Limit(int(excess))
	return r.db.WithContext(ctx).
		Where("id IN (?)", subquery).
		Delete(&models.SyncLogModel{}).Error
}

var _ order.SyncLogRepository = (*GormSyncLogRepository)(nil)
