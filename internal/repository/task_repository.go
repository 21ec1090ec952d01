package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fleet-planner/internal/model"
)

// TaskFilter narrows ListTasks. The zero value lists every task of the owner.
type TaskFilter struct {
	IDs              []uint
	Statuses         []model.TaskStatus
	ExcludeCompleted bool
}

// Match reports whether task passes the filter.
func (f TaskFilter) Match(task model.Task) bool {
	if f.ExcludeCompleted && task.Status == model.TaskStatusCompleted {
		return false
	}
	if len(f.IDs) > 0 && !containsID(f.IDs, task.ID) {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if s == task.Status {
				return true
			}
		}
		return false
	}
	return true
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// TaskRepository handles CRUD for tasks. Every query is scoped to one owner.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) ListTasks(ctx context.Context, ownerID uint, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.ExcludeCompleted {
		q = q.Where("status <> ?", model.TaskStatusCompleted)
	}

	var tasks []model.Task
	if err := q.Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, ownerID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", ownerID, taskID).First(&task).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

func (r *TaskRepository) FindByReminder(ctx context.Context, ownerID, reminderID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND reminder_id = ?", ownerID, reminderID).First(&task).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

func (r *TaskRepository) InsertTask(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) UpdateTask(ctx context.Context, ownerID, taskID uint, fields model.TaskFields) error {
	if fields.Empty() {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", ownerID, taskID).
		Updates(fields.Columns())
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) DeleteTask(ctx context.Context, ownerID, taskID uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", ownerID, taskID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByReminder removes the task driven by the reminder, if any.
func (r *TaskRepository) DeleteByReminder(ctx context.Context, ownerID, reminderID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND reminder_id = ?", ownerID, reminderID).Delete(&model.Task{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete task by reminder: %w", res.Error)
	}
	return res.RowsAffected, nil
}
