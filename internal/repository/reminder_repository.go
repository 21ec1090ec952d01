package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fleet-planner/internal/model"
)

// ReminderRepository stores reminders, the upstream source of tasks.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	if err := r.db.WithContext(ctx).Create(reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (r *ReminderRepository) Save(ctx context.Context, reminder *model.Reminder) error {
	if err := r.db.WithContext(ctx).Save(reminder).Error; err != nil {
		return fmt.Errorf("save reminder: %w", err)
	}
	return nil
}

func (r *ReminderRepository) FindByID(ctx context.Context, ownerID, reminderID uint) (*model.Reminder, error) {
	var reminder model.Reminder
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", ownerID, reminderID).First(&reminder).Error; err != nil {
		return nil, translate(err)
	}
	return &reminder, nil
}

func (r *ReminderRepository) ListByUser(ctx context.Context, ownerID uint) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("due_at ASC, id ASC").Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

// ListAll is used by the warm-up job.
func (r *ReminderRepository) ListAll(ctx context.Context) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).Order("user_id ASC, id ASC").Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list all reminders: %w", err)
	}
	return reminders, nil
}
