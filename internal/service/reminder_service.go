package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fleet-planner/internal/model"
)

// ReminderInput represents data required to create a reminder.
type ReminderInput struct {
	Text      string    `json:"text" validate:"required,max=500"`
	DueAt     time.Time `json:"due_at"`
	TaskType  string    `json:"task_type" validate:"omitempty,oneof=technical_inspection repair maintenance"`
	Equipment string    `json:"equipment" validate:"omitempty,max=100"`
	Operator  string    `json:"operator" validate:"omitempty,max=100"`
}

// ReminderView is a reminder with its status derived for today.
type ReminderView struct {
	model.Reminder
	Status model.TaskStatus
}

// ReminderService is the reminder source: every mutation is pushed through
// the synchronizer.
type ReminderService struct {
	reminders ReminderStore
	sync      *ReminderSynchronizer
	log       logrus.FieldLogger
	now       Clock
}

func NewReminderService(reminders ReminderStore, sync *ReminderSynchronizer, log logrus.FieldLogger, now Clock) *ReminderService {
	if now == nil {
		now = time.Now
	}
	return &ReminderService{reminders: reminders, sync: sync, log: log, now: now}
}

func (s *ReminderService) CreateReminder(ctx context.Context, ownerID uint, input ReminderInput) (*model.Reminder, *model.Task, error) {
	if err := validateStruct(input); err != nil {
		return nil, nil, err
	}
	if input.DueAt.IsZero() {
		return nil, nil, newValidationError("due_at", "is required")
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, nil, newValidationError("text", "is required")
	}
	taskType, _ := model.ParseTaskType(input.TaskType)

	reminder := model.Reminder{
		UserID:    ownerID,
		Text:      text,
		DueAt:     input.DueAt,
		TaskType:  taskType,
		Equipment: nonEmpty(input.Equipment),
		Operator:  nonEmpty(input.Operator),
	}
	if err := s.reminders.Create(ctx, &reminder); err != nil {
		return nil, nil, errors.Wrap(err, "create reminder")
	}

	task, err := s.sync.Sync(ctx, reminder)
	if err != nil {
		return &reminder, nil, err
	}
	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "reminder_id": reminder.ID}).Info("reminder created")
	return &reminder, task, nil
}

// RescheduleReminder moves the reminder and its task to a new date.
func (s *ReminderService) RescheduleReminder(ctx context.Context, ownerID, reminderID uint, dueAt time.Time) (*model.Reminder, *model.Task, error) {
	reminder, err := s.reminders.FindByID(ctx, ownerID, reminderID)
	if err != nil {
		return nil, nil, lookupErr(err, "reminder", reminderID)
	}
	reminder.DueAt = dueAt
	if err := s.reminders.Save(ctx, reminder); err != nil {
		return nil, nil, errors.Wrap(err, "save reminder")
	}
	task, err := s.sync.Sync(ctx, *reminder)
	if err != nil {
		return reminder, nil, err
	}
	return reminder, task, nil
}

// CompleteReminder closes the reminder; its task leaves the board.
func (s *ReminderService) CompleteReminder(ctx context.Context, ownerID, reminderID uint) (*model.Reminder, error) {
	reminder, err := s.reminders.FindByID(ctx, ownerID, reminderID)
	if err != nil {
		return nil, lookupErr(err, "reminder", reminderID)
	}
	if !reminder.Completed {
		reminder.Completed = true
		if err := s.reminders.Save(ctx, reminder); err != nil {
			return nil, errors.Wrap(err, "save reminder")
		}
	}
	if _, err := s.sync.Sync(ctx, *reminder); err != nil {
		return reminder, err
	}
	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "reminder_id": reminderID}).Info("reminder completed")
	return reminder, nil
}

func (s *ReminderService) ListReminders(ctx context.Context, ownerID uint) ([]ReminderView, error) {
	reminders, err := s.reminders.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list reminders")
	}
	today := model.Today(s.now())
	views := make([]ReminderView, 0, len(reminders))
	for _, r := range reminders {
		views = append(views, ReminderView{
			Reminder: r,
			Status:   DeriveStatus(model.LocalDate(r.DueAt), r.Completed, today),
		})
	}
	return views, nil
}

func nonEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
