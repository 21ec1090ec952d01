package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
)

// ParseDependencyIDs reads a comma-separated id list. Tokens that are not
// positive integers are ignored and duplicates collapse to the first occurrence.
func ParseDependencyIDs(raw string) []uint {
	var ids []uint
	seen := make(map[uint]struct{})
	for _, token := range strings.Split(raw, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(token), 10, 64)
		if err != nil || n == 0 {
			continue
		}
		id := uint(n)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func formatIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

// Resolution is the outcome of a dependency check.
type Resolution struct {
	DueDate   time.Time
	Blocked   bool
	BlockedBy []uint
	Shifted   bool
}

// DependencyResolver moves blocked tasks after their latest dependency.
type DependencyResolver struct {
	tasks TaskStore
	log   logrus.FieldLogger
}

func NewDependencyResolver(tasks TaskStore, log logrus.FieldLogger) *DependencyResolver {
	return &DependencyResolver{tasks: tasks, log: log}
}

// Resolve checks task's dependencies. When any of them is not completed the
// task's due date becomes the latest dependency due date plus one day, and
// the change is persisted. task is updated in place.
func (r *DependencyResolver) Resolve(ctx context.Context, ownerID uint, task *model.Task) (Resolution, error) {
	res := Resolution{DueDate: task.DueDate}
	ids := withoutID(task.Dependencies, task.ID)
	if len(ids) == 0 {
		return res, nil
	}

	deps, err := r.tasks.ListTasks(ctx, ownerID, repository.TaskFilter{IDs: ids})
	if err != nil {
		return res, errors.Wrapf(err, "load dependencies of task %d", task.ID)
	}
	if len(deps) == 0 {
		return res, nil
	}

	var latest time.Time
	for _, dep := range deps {
		if !dep.IsCompleted() {
			res.BlockedBy = append(res.BlockedBy, dep.ID)
		}
		if dep.DueDate.After(latest) {
			latest = dep.DueDate
		}
	}
	if len(res.BlockedBy) == 0 {
		return res, nil
	}
	sort.Slice(res.BlockedBy, func(i, j int) bool { return res.BlockedBy[i] < res.BlockedBy[j] })
	res.Blocked = true

	due := model.DateOf(latest).AddDate(0, 0, 1)
	res.DueDate = due
	if due.Equal(model.DateOf(task.DueDate)) {
		return res, nil
	}

	if err := r.tasks.UpdateTask(ctx, ownerID, task.ID, model.TaskFields{DueDate: &due}); err != nil {
		return res, errors.Wrapf(err, "reschedule task %d", task.ID)
	}
	r.log.WithFields(logrus.Fields{
		"owner_id":   ownerID,
		"task_id":    task.ID,
		"blocked_by": formatIDs(res.BlockedBy),
		"from":       model.FormatDate(task.DueDate),
		"to":         model.FormatDate(due),
	}).Info("task rescheduled after open dependencies")

	task.DueDate = due
	res.Shifted = true
	return res, nil
}

// sanitizeDependencies keeps only ids of the owner's other tasks, in input
// order, and rejects a set that would close a dependency cycle.
func sanitizeDependencies(ctx context.Context, tasks TaskStore, ownerID, taskID uint, ids []uint) ([]uint, error) {
	ids = withoutID(ids, taskID)
	if len(ids) == 0 {
		return nil, nil
	}

	all, err := tasks.ListTasks(ctx, ownerID, repository.TaskFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "load tasks for dependency check")
	}
	graph := make(map[uint][]uint, len(all))
	for _, t := range all {
		graph[t.ID] = t.Dependencies
	}

	kept := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := graph[id]; ok {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}

	if taskID != 0 {
		graph[taskID] = kept
		if reaches(graph, kept, taskID) {
			return nil, newValidationError("dependencies", "dependency cycle through task "+strconv.FormatUint(uint64(taskID), 10))
		}
	}
	return kept, nil
}

// reaches reports whether target is reachable from any of start.
func reaches(graph map[uint][]uint, start []uint, target uint) bool {
	visited := make(map[uint]bool)
	stack := append([]uint(nil), start...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == target {
			return true
		}
		if visited[n] {
			continue
		}
		visited[n] = true
		stack = append(stack, graph[n]...)
	}
	return false
}

func withoutID(ids []uint, id uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
