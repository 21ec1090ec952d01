package service

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
)

func newTestTaskService(store *memStore, today string) *TaskService {
	return NewTaskService(store, store, NewOwnerLocks(), nullLogger(), clockAt(today))
}

func TestCreateTaskDerivesStatusAndPriority(t *testing.T) {
	store := newMemStore()
	svc := newTestTaskService(store, "2025-01-01")

	task, err := svc.CreateTask(context.Background(), 1, TaskInput{
		Name:      "  Oil change ",
		TaskType:  "maintenance",
		DueDate:   "2025-01-01",
		Equipment: "Tractor A",
	})
	require.NoError(t, err)
	assert.Equal(t, "Oil change", task.Name)
	assert.Equal(t, model.TaskTypeInspection, task.TaskType)
	assert.Equal(t, model.TaskStatusInProgress, task.Status)
	assert.Equal(t, 1, task.Priority)
	assert.Equal(t, "Tractor A", task.EquipmentName())
	assert.Nil(t, task.Operator)
}

func TestCreateTaskValidation(t *testing.T) {
	svc := newTestTaskService(newMemStore(), "2025-01-01")

	_, err := svc.CreateTask(context.Background(), 1, TaskInput{
		TaskType: "painting",
		Priority: 5,
		DueDate:  "01/05/2025",
	})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "task_type")
	assert.Contains(t, verr.Fields, "priority")
	assert.Contains(t, verr.Fields, "due_date")
}

func TestListTasksRefreshesLifecycle(t *testing.T) {
	store := newMemStore()
	dueToday := store.seed(model.Task{UserID: 1, Name: "Today", DueDate: day("2025-01-05"), Status: model.TaskStatusPlanned, Priority: 3})
	lapsed := store.seed(model.Task{UserID: 1, Name: "Lapsed", DueDate: day("2025-01-01"), Status: model.TaskStatusPlanned, Priority: 1})
	later := store.seed(model.Task{UserID: 1, Name: "Later", DueDate: day("2025-01-09"), Status: model.TaskStatusPlanned, Priority: 3})
	svc := newTestTaskService(store, "2025-01-05")

	tasks, err := svc.ListTasks(context.Background(), 1, repository.TaskFilter{ExcludeCompleted: true})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, dueToday, tasks[0].ID)
	assert.Equal(t, model.TaskStatusInProgress, tasks[0].Status)
	assert.Equal(t, 1, tasks[0].Priority)
	assert.Equal(t, later, tasks[1].ID)
	assert.Equal(t, 2, tasks[1].Priority)

	assert.Equal(t, model.TaskStatusCompleted, store.task(lapsed).Status)
	assert.Equal(t, model.TaskStatusInProgress, store.task(dueToday).Status)

	before := store.updates
	_, err = svc.ListTasks(context.Background(), 1, repository.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, before, store.updates, "second listing writes nothing")
}

func TestGetTaskNotFound(t *testing.T) {
	svc := newTestTaskService(newMemStore(), "2025-01-01")

	_, err := svc.GetTask(context.Background(), 1, 77)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, uint(77), nf.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestTransitionRejectsBookedEquipment(t *testing.T) {
	store := newMemStore()
	holder := store.seed(model.Task{UserID: 1, Name: "Holder", DueDate: day("2025-01-05"), Status: model.TaskStatusPlanned, Equipment: strPtr("Tractor A")})
	id := store.seed(model.Task{UserID: 1, Name: "Mover", DueDate: day("2025-01-05"), Status: model.TaskStatusPlanned, Equipment: strPtr("Tractor A")})
	svc := newTestTaskService(store, "2025-01-01")

	_, err := svc.Transition(context.Background(), 1, id, model.TaskStatusInProgress)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, ResourceEquipment, conflict.Resource)
	assert.Equal(t, "Tractor A", conflict.Name)
	assert.Equal(t, day("2025-01-05"), conflict.Date)
	assert.Equal(t, holder, conflict.HeldBy)
	assert.Equal(t, model.TaskStatusPlanned, store.task(id).Status)
}

func TestTransitionRejectsEquipmentWithUsage(t *testing.T) {
	store := newMemStore()
	store.usage = append(store.usage, model.UsageRecord{UserID: 1, Equipment: "Tractor A", Date: day("2025-01-05"), Hours: 2})
	id := store.seed(model.Task{UserID: 1, Name: "Mover", DueDate: day("2025-01-05"), Status: model.TaskStatusPlanned, Equipment: strPtr("Tractor A")})
	svc := newTestTaskService(store, "2025-01-01")

	_, err := svc.Transition(context.Background(), 1, id, model.TaskStatusInProgress)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Zero(t, conflict.HeldBy)
}

func TestTransitionChecksOnlyBusyOperators(t *testing.T) {
	store := newMemStore()
	store.seed(model.Task{UserID: 1, Name: "Planned elsewhere", DueDate: day("2025-01-05"), Status: model.TaskStatusPlanned, Operator: strPtr("Ivan")})
	first := store.seed(model.Task{UserID: 1, Name: "First", DueDate: day("2025-01-05"), Status: model.TaskStatusPlanned, Operator: strPtr("Ivan")})
	second := store.seed(model.Task{UserID: 1, Name: "Second", DueDate: day("2025-01-05"), Status: model.TaskStatusPlanned, Operator: strPtr("Ivan")})
	svc := newTestTaskService(store, "2025-01-01")

	task, err := svc.Transition(context.Background(), 1, first, model.TaskStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, task.Status)

	_, err = svc.Transition(context.Background(), 1, second, model.TaskStatusInProgress)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, ResourceOperator, conflict.Resource)
	assert.Equal(t, first, conflict.HeldBy)
}

func TestTransitionBlockedByDependencies(t *testing.T) {
	store := newMemStore()
	depID := store.seed(model.Task{UserID: 1, Name: "Order parts", DueDate: day("2025-01-10"), Status: model.TaskStatusPlanned})
	id := store.seed(model.Task{
		UserID:       1,
		Name:         "Install parts",
		DueDate:      day("2025-01-01"),
		Status:       model.TaskStatusPlanned,
		Dependencies: datatypes.JSONSlice[uint]{depID},
	})
	svc := newTestTaskService(store, "2025-01-01")

	_, err := svc.Transition(context.Background(), 1, id, model.TaskStatusCompleted)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, ResourceDependency, conflict.Resource)
	assert.Equal(t, day("2025-01-11"), conflict.Date)
	assert.Equal(t, day("2025-01-11"), store.task(id).DueDate)
	assert.Equal(t, model.TaskStatusPlanned, store.task(id).Status)

	_, err = svc.Transition(context.Background(), 1, depID, model.TaskStatusCompleted)
	require.NoError(t, err)
	task, err := svc.Transition(context.Background(), 1, id, model.TaskStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, task.Status)
}

func TestTransitionCompletionRecordsUsage(t *testing.T) {
	store := newMemStore()
	id := store.seed(model.Task{UserID: 1, Name: "Oil change", DueDate: day("2025-01-05"), Status: model.TaskStatusInProgress, Equipment: strPtr("Tractor A")})
	noEquipment := store.seed(model.Task{UserID: 1, Name: "Paperwork", DueDate: day("2025-01-05"), Status: model.TaskStatusInProgress})
	svc := newTestTaskService(store, "2025-01-05")

	_, err := svc.Transition(context.Background(), 1, id, model.TaskStatusCompleted)
	require.NoError(t, err)
	_, err = svc.Transition(context.Background(), 1, noEquipment, model.TaskStatusCompleted)
	require.NoError(t, err)

	require.Len(t, store.usage, 1)
	record := store.usage[0]
	assert.Equal(t, "Tractor A", record.Equipment)
	assert.Equal(t, day("2025-01-05"), record.Date)
	assert.Equal(t, UsageHoursPerCompletion, record.Hours)
	require.NotNil(t, record.TaskID)
	assert.Equal(t, id, *record.TaskID)
}

func TestTransitionValidatesTarget(t *testing.T) {
	store := newMemStore()
	id := seedOpen(store, 1, "Oil change", "2025-01-05", model.TaskTypeInspection, 2)
	svc := newTestTaskService(store, "2025-01-01")

	_, err := svc.Transition(context.Background(), 1, id, model.TaskStatus("cancelled"))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	_, err = svc.Transition(context.Background(), 2, id, model.TaskStatusInProgress)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestCreatedTasksGoThroughTransitionGate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestTaskService(store, "2025-01-01")

	input := TaskInput{Name: "Oil change", DueDate: "2025-01-05", Equipment: "Tractor A"}
	first, err := svc.CreateTask(ctx, 1, input)
	require.NoError(t, err)
	input.Name = "Brake check"
	second, err := svc.CreateTask(ctx, 1, input)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPlanned, first.Status)
	assert.Equal(t, model.TaskStatusPlanned, second.Status)

	_, err = svc.Transition(ctx, 1, second.ID, model.TaskStatusInProgress)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.ID, conflict.HeldBy)
	assert.Empty(t, store.usage)
}

func TestUpdateTaskRecomputesDerivedFields(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestTaskService(store, "2025-01-01")

	task, err := svc.CreateTask(ctx, 1, TaskInput{Name: "Tyres", DueDate: "2025-01-20"})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPlanned, task.Status)
	assert.Equal(t, 3, task.Priority)

	moved, err := svc.UpdateTask(ctx, 1, task.ID, TaskInput{Name: "Tyres", DueDate: "2025-01-01"})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, moved.Status)
	assert.Equal(t, 1, moved.Priority)
	assert.Equal(t, model.TaskStatusInProgress, store.task(task.ID).Status)
	assert.Equal(t, 1, store.task(task.ID).Priority)

	pinned, err := svc.UpdateTask(ctx, 1, task.ID, TaskInput{Name: "Tyres", DueDate: "2025-01-02", Priority: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, pinned.Priority)
	assert.Equal(t, 3, store.task(task.ID).Priority)
}
