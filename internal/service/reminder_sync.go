package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
)

// ReminderSynchronizer keeps the task driven by a reminder in step with it.
// Sync is an idempotent upsert/delete, so it is safe to replay.
type ReminderSynchronizer struct {
	tasks     TaskStore
	reminders ReminderStore
	locks     *OwnerLocks
	log       logrus.FieldLogger
	now       Clock
}

func NewReminderSynchronizer(tasks TaskStore, reminders ReminderStore, locks *OwnerLocks, log logrus.FieldLogger, now Clock) *ReminderSynchronizer {
	if now == nil {
		now = time.Now
	}
	return &ReminderSynchronizer{tasks: tasks, reminders: reminders, locks: locks, log: log, now: now}
}

// Sync applies reminder to its task. It returns the task, or nil when the
// reminder is completed and its task was removed.
func (s *ReminderSynchronizer) Sync(ctx context.Context, reminder model.Reminder) (*model.Task, error) {
	unlock := s.locks.Lock(reminder.UserID)
	defer unlock()
	return s.sync(ctx, reminder)
}

func (s *ReminderSynchronizer) sync(ctx context.Context, reminder model.Reminder) (*model.Task, error) {
	ownerID := reminder.UserID
	log := s.log.WithFields(logrus.Fields{"owner_id": ownerID, "reminder_id": reminder.ID})

	if reminder.Completed {
		n, err := s.tasks.DeleteByReminder(ctx, ownerID, reminder.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "drop task of reminder %d", reminder.ID)
		}
		if n > 0 {
			log.Info("reminder completed, task removed")
		}
		return nil, nil
	}

	name := strings.TrimSpace(reminder.Text)
	if name == "" {
		return nil, newValidationError("text", "is required")
	}
	taskType, ok := model.ParseTaskType(string(reminder.TaskType))
	if !ok {
		log.WithField("task_type", reminder.TaskType).Warn("unknown reminder task type, using inspection")
		taskType = model.TaskTypeInspection
	}

	now := s.now()
	due := model.LocalDate(reminder.DueAt)
	status := DeriveStatus(due, false, model.Today(now))
	priority := priorityForDays(DaysUntilMoment(reminder.DueAt, now))
	equipment := trimmedOrNil(reminder.Equipment)
	operator := trimmedOrNil(reminder.Operator)

	existing, err := s.tasks.FindByReminder(ctx, ownerID, reminder.ID)
	switch {
	case err == nil:
		fields := model.TaskFields{
			Name:      &name,
			TaskType:  &taskType,
			Priority:  &priority,
			DueDate:   &due,
			Equipment: equipment,
			Operator:  operator,
		}
		// a task already started or finished keeps its status
		if advances(existing.Status, status) {
			fields.Status = &status
		}
		if err := s.tasks.UpdateTask(ctx, ownerID, existing.ID, fields); err != nil {
			return nil, errors.Wrapf(err, "update task of reminder %d", reminder.ID)
		}
		fields.Apply(existing)
		log.WithField("task_id", existing.ID).Debug("reminder task updated")
		return existing, nil
	case errors.Is(err, repository.ErrNotFound):
		reminderID := reminder.ID
		task := model.Task{
			UserID:     ownerID,
			Name:       name,
			TaskType:   taskType,
			Priority:   priority,
			DueDate:    due,
			Equipment:  equipment,
			Operator:   operator,
			Status:     status,
			ReminderID: &reminderID,
		}
		if err := s.tasks.InsertTask(ctx, &task); err != nil {
			return nil, errors.Wrapf(err, "create task for reminder %d", reminder.ID)
		}
		log.WithField("task_id", task.ID).Info("task created from reminder")
		return &task, nil
	default:
		return nil, errors.Wrapf(err, "find task of reminder %d", reminder.ID)
	}
}

// SyncAll replays every stored reminder. Failures are logged and counted;
// the run continues with the next reminder.
func (s *ReminderSynchronizer) SyncAll(ctx context.Context) (int, error) {
	reminders, err := s.reminders.ListAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list reminders")
	}

	log := s.log.WithField("run_id", uuid.NewString())
	synced, failed := 0, 0
	for _, r := range reminders {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if _, err := s.Sync(ctx, r); err != nil {
			failed++
			log.WithError(err).WithField("reminder_id", r.ID).Error("reminder sync failed")
			continue
		}
		synced++
	}

	log.WithFields(logrus.Fields{"synced": synced, "failed": failed}).Info("reminder warm-up finished")
	if failed > 0 {
		return synced, errors.Errorf("%d of %d reminders failed to sync", failed, len(reminders))
	}
	return synced, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
