package service

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
)

// DeriveStatus maps a due date to a status relative to today. Lapsed tasks
// are treated as auto-closed.
func DeriveStatus(due time.Time, completed bool, today time.Time) model.TaskStatus {
	if completed {
		return model.TaskStatusCompleted
	}
	due, today = model.DateOf(due), model.DateOf(today)
	switch {
	case due.Before(today):
		return model.TaskStatusCompleted
	case due.Equal(today):
		return model.TaskStatusInProgress
	default:
		return model.TaskStatusPlanned
	}
}

// DaysUntilDue is negative for overdue dates.
func DaysUntilDue(due, today time.Time) int {
	diff := model.DateOf(due).Sub(model.DateOf(today))
	return int(math.Ceil(diff.Hours() / 24))
}

// DaysUntilMoment counts started days from local midnight of now to dueAt.
// A reminder at 09:00 a week ahead is eight days away.
func DaysUntilMoment(dueAt, now time.Time) int {
	y, m, d := now.Local().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return int(math.Ceil(dueAt.Sub(midnight).Hours() / 24))
}

// DerivePriority: 1 within two days, 2 within a week, 3 otherwise.
func DerivePriority(due, today time.Time) int {
	return priorityForDays(DaysUntilDue(due, today))
}

func priorityForDays(days int) int {
	switch {
	case days <= 2:
		return 1
	case days <= 7:
		return 2
	default:
		return 3
	}
}

// advances reports whether derived is further along the lifecycle than
// current. An unknown current status is always replaced.
func advances(current, derived model.TaskStatus) bool {
	if _, ok := model.ParseTaskStatus(string(current)); !ok {
		return true
	}
	return derived.Rank() > current.Rank()
}

// refreshFields recomputes the derived fields of a stored task. The status
// only ever moves forward, so an explicit in_progress is kept until the date
// catches up. Tasks driven by a reminder keep the priority the synchronizer
// computed from the reminder's due time.
func refreshFields(task model.Task, today time.Time) (model.TaskFields, bool) {
	var fields model.TaskFields
	if task.IsCompleted() {
		return fields, false
	}

	derived := DeriveStatus(task.DueDate, false, today)
	if advances(task.Status, derived) {
		fields.Status = &derived
	}
	if derived != model.TaskStatusCompleted && task.ReminderID == nil {
		if priority := DerivePriority(task.DueDate, today); priority != task.Priority {
			fields.Priority = &priority
		}
	}
	return fields, !fields.Empty()
}

// refreshTask persists the outcome of refreshFields and applies it to task.
func refreshTask(ctx context.Context, store TaskStore, ownerID uint, task *model.Task, today time.Time) error {
	fields, changed := refreshFields(*task, today)
	if !changed {
		return nil
	}
	if err := store.UpdateTask(ctx, ownerID, task.ID, fields); err != nil {
		return errors.Wrapf(err, "refresh task %d", task.ID)
	}
	fields.Apply(task)
	return nil
}

// refreshOwnerTasks loads every task of the owner with its derived fields
// brought up to date.
func refreshOwnerTasks(ctx context.Context, store TaskStore, ownerID uint, today time.Time) ([]model.Task, error) {
	tasks, err := store.ListTasks(ctx, ownerID, repository.TaskFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	for i := range tasks {
		if err := refreshTask(ctx, store, ownerID, &tasks[i], today); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}
