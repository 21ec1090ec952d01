package service

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"fleet-planner/internal/model"
)

func TestParseDependencyIDs(t *testing.T) {
	assert.Equal(t, []uint{1, 2, 3}, ParseDependencyIDs("1, 2,x,,3,2,0,-1"))
	assert.Empty(t, ParseDependencyIDs(""))
	assert.Empty(t, ParseDependencyIDs("abc, ,"))
}

func TestResolveReschedulesAfterOpenDependency(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	depID := store.seed(model.Task{UserID: 1, Name: "Replace filter", DueDate: day("2025-01-10"), Status: model.TaskStatusPlanned})
	taskID := store.seed(model.Task{
		UserID:       1,
		Name:         "Oil change",
		DueDate:      day("2025-01-01"),
		Status:       model.TaskStatusPlanned,
		Dependencies: datatypes.JSONSlice[uint]{depID},
	})

	resolver := NewDependencyResolver(store, nullLogger())
	task := store.task(taskID)
	res, err := resolver.Resolve(ctx, 1, &task)
	require.NoError(t, err)

	assert.True(t, res.Blocked)
	assert.True(t, res.Shifted)
	assert.Equal(t, []uint{depID}, res.BlockedBy)
	assert.Equal(t, day("2025-01-11"), task.DueDate)
	assert.Equal(t, day("2025-01-11"), store.task(taskID).DueDate)

	// a second pass finds the date already in place
	res, err = resolver.Resolve(ctx, 1, &task)
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.False(t, res.Shifted)
}

func TestResolveIgnoresCompletedAndUnknownDependencies(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	doneID := store.seed(model.Task{UserID: 1, Name: "Done", DueDate: day("2025-01-10"), Status: model.TaskStatusCompleted})
	foreignID := store.seed(model.Task{UserID: 2, Name: "Other owner", DueDate: day("2025-02-10"), Status: model.TaskStatusPlanned})
	taskID := store.seed(model.Task{
		UserID:       1,
		Name:         "Inspection",
		DueDate:      day("2025-01-01"),
		Status:       model.TaskStatusPlanned,
		Dependencies: datatypes.JSONSlice[uint]{doneID, foreignID, 99},
	})

	task := store.task(taskID)
	res, err := NewDependencyResolver(store, nullLogger()).Resolve(ctx, 1, &task)
	require.NoError(t, err)
	assert.False(t, res.Blocked)
	assert.Equal(t, day("2025-01-01"), store.task(taskID).DueDate)
	assert.Zero(t, store.updates)
}

func TestCreateTaskDropsUnknownDependencies(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewTaskService(store, store, NewOwnerLocks(), nullLogger(), clockAt("2025-01-01"))

	first, err := svc.CreateTask(ctx, 1, TaskInput{Name: "Tyres", DueDate: "2025-01-05"})
	require.NoError(t, err)

	second, err := svc.CreateTask(ctx, 1, TaskInput{Name: "Alignment", DueDate: "2025-01-06", Dependencies: []uint{first.ID, 42}})
	require.NoError(t, err)
	assert.Equal(t, datatypes.JSONSlice[uint]{first.ID}, second.Dependencies)
}

func TestUpdateTaskRejectsDependencyCycle(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewTaskService(store, store, NewOwnerLocks(), nullLogger(), clockAt("2025-01-01"))

	a, err := svc.CreateTask(ctx, 1, TaskInput{Name: "A", DueDate: "2025-01-05"})
	require.NoError(t, err)
	b, err := svc.CreateTask(ctx, 1, TaskInput{Name: "B", DueDate: "2025-01-06", Dependencies: []uint{a.ID}})
	require.NoError(t, err)
	c, err := svc.CreateTask(ctx, 1, TaskInput{Name: "C", DueDate: "2025-01-07", Dependencies: []uint{b.ID}})
	require.NoError(t, err)

	_, err = svc.UpdateTask(ctx, 1, a.ID, TaskInput{Name: "A", DueDate: "2025-01-05", Dependencies: []uint{c.ID}})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "dependencies")
	assert.Empty(t, store.task(a.ID).Dependencies)

	// self references are dropped, not rejected
	updated, err := svc.UpdateTask(ctx, 1, a.ID, TaskInput{Name: "A", DueDate: "2025-01-05", Dependencies: []uint{a.ID}})
	require.NoError(t, err)
	assert.Empty(t, updated.Dependencies)
}
