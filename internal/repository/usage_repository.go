package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fleet-planner/internal/model"
)

// UsageRepository keeps equipment usage history.
type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) ListUsageRecords(ctx context.Context, ownerID uint) ([]model.UsageRecord, error) {
	var records []model.UsageRecord
	if err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("date ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list usage records: %w", err)
	}
	return records, nil
}

func (r *UsageRepository) InsertUsageRecord(ctx context.Context, record *model.UsageRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create usage record: %w", err)
	}
	return nil
}
