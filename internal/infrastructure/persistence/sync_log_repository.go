package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSyncLogRepository implements attendance.SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append stores an audit entry
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *attendance.SyncLogEntry) error {
	model := models.SyncLogModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	entry.ID = model.ID
	entry.CreatedAt = model.CreatedAt
	return nil
}

// LatestSuccess returns the creation time of the newest entry in category
// whose outcome is one of outcomes, or nil when there is none.
func (r *GormSyncLogRepository) LatestSuccess(ctx context.Context, category attendance.LogCategory, outcomes ...attendance.LogOutcome) (*time.Time, error) {
	if len(outcomes) == 0 {
		outcomes = []attendance.LogOutcome{attendance.LogOutcomeSuccess}
	}
	var model models.SyncLogModel
	err := r.db.WithContext(ctx).
		Select("created_at").
		Where("category = ? AND outcome IN ?", category, outcomes).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	at := model.CreatedAt
	return &at, nil
}

// Recent returns up to limit entries, newest first. An empty category matches all.
func (r *GormSyncLogRepository) Recent(ctx context.Context, category attendance.LogCategory, limit int) ([]attendance.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var rows []models.SyncLogModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]attendance.SyncLogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *rows[i].ToDomain())
	}
	return entries, nil
}
