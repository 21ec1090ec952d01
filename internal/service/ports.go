package service

import (
	"context"
	"time"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
)

// TaskStore is the durable task record the scheduler reads and writes.
type TaskStore interface {
	ListTasks(ctx context.Context, ownerID uint, filter repository.TaskFilter) ([]model.Task, error)
	GetTask(ctx context.Context, ownerID, taskID uint) (*model.Task, error)
	FindByReminder(ctx context.Context, ownerID, reminderID uint) (*model.Task, error)
	InsertTask(ctx context.Context, task *model.Task) error
	UpdateTask(ctx context.Context, ownerID, taskID uint, fields model.TaskFields) error
	DeleteTask(ctx context.Context, ownerID, taskID uint) error
	DeleteByReminder(ctx context.Context, ownerID, reminderID uint) (int64, error)
}

type ReminderStore interface {
	Create(ctx context.Context, reminder *model.Reminder) error
	Save(ctx context.Context, reminder *model.Reminder) error
	FindByID(ctx context.Context, ownerID, reminderID uint) (*model.Reminder, error)
	ListByUser(ctx context.Context, ownerID uint) ([]model.Reminder, error)
	ListAll(ctx context.Context) ([]model.Reminder, error)
}

type EquipmentRegistry interface {
	ListEquipmentNames(ctx context.Context, ownerID uint) ([]string, error)
}

type OperatorRegistry interface {
	ListOperatorNames(ctx context.Context, ownerID uint) ([]string, error)
}

// UsageHistory is the equipment usage log; its records only count as busy evidence.
type UsageHistory interface {
	ListUsageRecords(ctx context.Context, ownerID uint) ([]model.UsageRecord, error)
	InsertUsageRecord(ctx context.Context, record *model.UsageRecord) error
}

type UserLister interface {
	ListAll(ctx context.Context) ([]model.User, error)
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time
