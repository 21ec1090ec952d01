package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
)

// UsageHoursPerCompletion is the fixed amount of work logged when a task completes.
const UsageHoursPerCompletion = 1.0

// TaskInput represents data required to create or edit a task. The status
// is always derived; explicit changes go through Transition.
type TaskInput struct {
	Name         string `json:"name" validate:"required,max=200"`
	TaskType     string `json:"task_type" validate:"omitempty,oneof=technical_inspection repair maintenance"`
	Priority     int    `json:"priority" validate:"omitempty,min=1,max=3"`
	DueDate      string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Equipment    string `json:"equipment" validate:"omitempty,max=100"`
	Operator     string `json:"operator" validate:"omitempty,max=100"`
	Dependencies []uint `json:"dependencies"`
}

// TaskService wraps task-related business logic: CRUD with lifecycle refresh
// and the status transition gate.
type TaskService struct {
	tasks    TaskStore
	usage    UsageHistory
	resolver *DependencyResolver
	locks    *OwnerLocks
	log      logrus.FieldLogger
	now      Clock
}

func NewTaskService(tasks TaskStore, usage UsageHistory, locks *OwnerLocks, log logrus.FieldLogger, now Clock) *TaskService {
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		tasks:    tasks,
		usage:    usage,
		resolver: NewDependencyResolver(tasks, log),
		locks:    locks,
		log:      log,
		now:      now,
	}
}

type parsedInput struct {
	name      string
	taskType  model.TaskType
	due       time.Time
	equipment *string
	operator  *string
}

func parseInput(input TaskInput) (parsedInput, error) {
	if err := validateStruct(input); err != nil {
		return parsedInput{}, err
	}
	var p parsedInput
	p.name = strings.TrimSpace(input.Name)
	if p.name == "" {
		return p, newValidationError("name", "is required")
	}
	p.taskType, _ = model.ParseTaskType(input.TaskType)
	due, err := model.ParseDate(input.DueDate)
	if err != nil {
		return p, newValidationError("due_date", "must be a date in format 2006-01-02")
	}
	p.due = due
	if v := strings.TrimSpace(input.Equipment); v != "" {
		p.equipment = &v
	}
	if v := strings.TrimSpace(input.Operator); v != "" {
		p.operator = &v
	}
	return p, nil
}

func (s *TaskService) CreateTask(ctx context.Context, ownerID uint, input TaskInput) (*model.Task, error) {
	p, err := parseInput(input)
	if err != nil {
		return nil, err
	}

	deps, err := sanitizeDependencies(ctx, s.tasks, ownerID, 0, input.Dependencies)
	if err != nil {
		return nil, err
	}

	today := model.Today(s.now())
	status := DeriveStatus(p.due, false, today)
	priority := input.Priority
	if priority == 0 {
		priority = DerivePriority(p.due, today)
	}

	task := model.Task{
		UserID:       ownerID,
		Name:         p.name,
		TaskType:     p.taskType,
		Priority:     priority,
		DueDate:      p.due,
		Equipment:    p.equipment,
		Operator:     p.operator,
		Dependencies: deps,
		Status:       status,
	}
	if err := s.tasks.InsertTask(ctx, &task); err != nil {
		return nil, errors.Wrap(err, "insert task")
	}

	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "task_id": task.ID, "due": model.FormatDate(task.DueDate)}).Info("task created")
	return &task, nil
}

// UpdateTask edits the descriptive fields of a task. Status changes go
// through Transition.
func (s *TaskService) UpdateTask(ctx context.Context, ownerID, taskID uint, input TaskInput) (*model.Task, error) {
	p, err := parseInput(input)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	task, err := s.tasks.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, lookupErr(err, "task", taskID)
	}

	deps, err := sanitizeDependencies(ctx, s.tasks, ownerID, taskID, input.Dependencies)
	if err != nil {
		return nil, err
	}
	if deps == nil {
		deps = []uint{}
	}

	fields := model.TaskFields{
		Name:         &p.name,
		TaskType:     &p.taskType,
		DueDate:      &p.due,
		Equipment:    p.equipment,
		Operator:     p.operator,
		Dependencies: &deps,
	}
	if input.Priority != 0 {
		fields.Priority = &input.Priority
	}
	if err := s.tasks.UpdateTask(ctx, ownerID, taskID, fields); err != nil {
		return nil, lookupErr(err, "task", taskID)
	}
	fields.Apply(task)

	derived, changed := refreshFields(*task, model.Today(s.now()))
	if input.Priority != 0 {
		derived.Priority = nil
		changed = !derived.Empty()
	}
	if changed {
		if err := s.tasks.UpdateTask(ctx, ownerID, taskID, derived); err != nil {
			return nil, errors.Wrapf(err, "refresh task %d", taskID)
		}
		derived.Apply(task)
	}

	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "task_id": taskID}).Info("task updated")
	return task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, ownerID, taskID uint) error {
	if err := s.tasks.DeleteTask(ctx, ownerID, taskID); err != nil {
		return lookupErr(err, "task", taskID)
	}
	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "task_id": taskID}).Info("task deleted")
	return nil
}

// GetTask returns the task with its derived fields brought up to date.
func (s *TaskService) GetTask(ctx context.Context, ownerID, taskID uint) (*model.Task, error) {
	task, err := s.tasks.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, lookupErr(err, "task", taskID)
	}
	if err := refreshTask(ctx, s.tasks, ownerID, task, model.Today(s.now())); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks refreshes status and priority of every task before filtering,
// so listings always agree with the current date.
func (s *TaskService) ListTasks(ctx context.Context, ownerID uint, filter repository.TaskFilter) ([]model.Task, error) {
	tasks, err := s.tasks.ListTasks(ctx, ownerID, repository.TaskFilter{IDs: filter.IDs})
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}

	today := model.Today(s.now())
	out := make([]model.Task, 0, len(tasks))
	for i := range tasks {
		if err := refreshTask(ctx, s.tasks, ownerID, &tasks[i], today); err != nil {
			return nil, err
		}
		if filter.Match(tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out, nil
}

// Transition moves a task to another status. Leaving planned requires every
// dependency to be completed; starting work requires the equipment and the
// operator to be free on the due date. Completing logs equipment usage.
func (s *TaskService) Transition(ctx context.Context, ownerID, taskID uint, to model.TaskStatus) (*model.Task, error) {
	if _, ok := model.ParseTaskStatus(string(to)); !ok {
		return nil, newValidationError("status", "must be one of: planned in_progress completed")
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	task, err := s.tasks.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, lookupErr(err, "task", taskID)
	}
	if task.Status == to {
		return task, nil
	}
	log := s.log.WithFields(logrus.Fields{"owner_id": ownerID, "task_id": taskID, "from": task.Status, "to": to})

	if task.Status == model.TaskStatusPlanned || task.Status == "" {
		res, err := s.resolver.Resolve(ctx, ownerID, task)
		if err != nil {
			return nil, err
		}
		if res.Blocked {
			log.WithField("blocked_by", formatIDs(res.BlockedBy)).Warn("transition rejected: open dependencies")
			return nil, &ConflictError{
				TaskID:   taskID,
				Resource: ResourceDependency,
				Name:     formatIDs(res.BlockedBy),
				Date:     res.DueDate,
			}
		}
	}

	if to == model.TaskStatusInProgress {
		if err := s.checkResources(ctx, ownerID, task); err != nil {
			log.WithError(err).Warn("transition rejected: resource conflict")
			return nil, err
		}
	}

	if err := s.tasks.UpdateTask(ctx, ownerID, taskID, model.TaskFields{Status: &to}); err != nil {
		return nil, lookupErr(err, "task", taskID)
	}
	task.Status = to

	if to == model.TaskStatusCompleted && task.Equipment != nil {
		id := task.ID
		record := model.UsageRecord{
			UserID:    ownerID,
			Equipment: *task.Equipment,
			Date:      task.DueDate,
			Hours:     UsageHoursPerCompletion,
			TaskID:    &id,
		}
		if err := s.usage.InsertUsageRecord(ctx, &record); err != nil {
			return nil, errors.Wrap(err, "record equipment usage")
		}
	}

	log.Info("task status changed")
	return task, nil
}

func (s *TaskService) checkResources(ctx context.Context, ownerID uint, task *model.Task) error {
	if task.Equipment == nil && task.Operator == nil {
		return nil
	}
	all, err := s.tasks.ListTasks(ctx, ownerID, repository.TaskFilter{})
	if err != nil {
		return errors.Wrap(err, "list tasks")
	}

	if task.Equipment != nil {
		usage, err := s.usage.ListUsageRecords(ctx, ownerID)
		if err != nil {
			return errors.Wrap(err, "list usage records")
		}
		if b, busy := equipmentView(all, usage, task.ID).holder(*task.Equipment, task.DueDate, task.ID); busy {
			return &ConflictError{TaskID: task.ID, Resource: ResourceEquipment, Name: *task.Equipment, Date: task.DueDate, HeldBy: b.taskID}
		}
	}
	if task.Operator != nil {
		if b, busy := operatorView(all, true, task.ID).holder(*task.Operator, task.DueDate, task.ID); busy {
			return &ConflictError{TaskID: task.ID, Resource: ResourceOperator, Name: *task.Operator, Date: task.DueDate, HeldBy: b.taskID}
		}
	}
	return nil
}
