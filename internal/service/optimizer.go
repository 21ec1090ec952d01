package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
)

// Optimizer fills in missing equipment and operator assignments for an
// owner's open tasks without double-booking a resource on the same date
// while capacity lasts.
type Optimizer struct {
	tasks     TaskStore
	equipment EquipmentRegistry
	operators OperatorRegistry
	usage     UsageHistory
	resolver  *DependencyResolver
	locks     *OwnerLocks
	log       logrus.FieldLogger
	now       Clock
}

func NewOptimizer(tasks TaskStore, equipment EquipmentRegistry, operators OperatorRegistry, usage UsageHistory, locks *OwnerLocks, log logrus.FieldLogger, now Clock) *Optimizer {
	if now == nil {
		now = time.Now
	}
	return &Optimizer{
		tasks:     tasks,
		equipment: equipment,
		operators: operators,
		usage:     usage,
		resolver:  NewDependencyResolver(tasks, log),
		locks:     locks,
		log:       log,
		now:       now,
	}
}

// Optimize runs one pass over the owner's open tasks and returns the tasks
// whose assignment changed. Tasks persisted before a store failure stay
// updated.
func (o *Optimizer) Optimize(ctx context.Context, ownerID uint) ([]model.Task, error) {
	unlock := o.locks.Lock(ownerID)
	defer unlock()

	log := o.log.WithFields(logrus.Fields{"owner_id": ownerID, "pass_id": uuid.NewString()})

	current, err := refreshOwnerTasks(ctx, o.tasks, ownerID, model.Today(o.now()))
	if err != nil {
		return nil, err
	}
	var pending []model.Task
	for _, t := range current {
		if !t.IsCompleted() {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		log.Debug("optimize: nothing to do")
		return nil, nil
	}

	shifted := make(map[uint]bool)
	for _, i := range dependencyOrder(pending) {
		res, err := o.resolver.Resolve(ctx, ownerID, &pending[i])
		if err != nil {
			return nil, err
		}
		if res.Shifted {
			shifted[pending[i].ID] = true
		}
	}

	sortForAssignment(pending)

	all, err := o.tasks.ListTasks(ctx, ownerID, repository.TaskFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	usage, err := o.usage.ListUsageRecords(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list usage records")
	}
	equipmentNames, err := o.equipment.ListEquipmentNames(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list equipment")
	}
	operatorNames, err := o.operators.ListOperatorNames(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list operators")
	}

	changes := make(map[uint]*model.TaskFields)
	fieldsFor := func(id uint) *model.TaskFields {
		f, ok := changes[id]
		if !ok {
			f = &model.TaskFields{}
			changes[id] = f
		}
		return f
	}

	if len(equipmentNames) == 0 {
		log.Warn("optimize: no equipment registered, skipping equipment assignment")
	} else {
		view := equipmentView(all, usage, 0)
		for i := range pending {
			t := &pending[i]
			if t.Equipment != nil {
				continue
			}
			name, free := view.pick(equipmentNames, t.DueDate)
			if !free {
				log.WithFields(logrus.Fields{"task_id": t.ID, "equipment": name, "date": model.FormatDate(t.DueDate)}).
					Warn("optimize: all equipment busy, double-booking least loaded unit")
			}
			view.book(name, t.DueDate, t.ID)
			t.Equipment = &name
			fieldsFor(t.ID).Equipment = &name
		}
	}

	if len(operatorNames) == 0 {
		log.Warn("optimize: no operators registered, skipping operator assignment")
	} else {
		view := operatorView(all, false, 0)
		for i := range pending {
			t := &pending[i]
			if t.Operator != nil {
				continue
			}
			name, free := view.pick(operatorNames, t.DueDate)
			if !free {
				log.WithFields(logrus.Fields{"task_id": t.ID, "operator": name, "date": model.FormatDate(t.DueDate)}).
					Warn("optimize: all operators busy, double-booking least loaded operator")
			}
			view.book(name, t.DueDate, t.ID)
			t.Operator = &name
			fieldsFor(t.ID).Operator = &name
		}
	}

	var updated []model.Task
	for _, t := range pending {
		fields, ok := changes[t.ID]
		if !ok {
			if shifted[t.ID] {
				updated = append(updated, t)
			}
			continue
		}
		if err := o.tasks.UpdateTask(ctx, ownerID, t.ID, *fields); err != nil {
			return updated, errors.Wrapf(err, "assign task %d", t.ID)
		}
		updated = append(updated, t)
	}

	log.WithFields(logrus.Fields{"open": len(pending), "updated": len(updated)}).Info("optimize pass finished")
	return updated, nil
}

// dependencyOrder returns indexes of tasks so that every task comes after the
// tasks it depends on. Ties keep the input order.
func dependencyOrder(tasks []model.Task) []int {
	index := make(map[uint]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}
	order := make([]int, 0, len(tasks))
	state := make([]uint8, len(tasks)) // 0 new, 1 visiting, 2 done
	var visit func(i int)
	visit = func(i int) {
		if state[i] != 0 {
			return
		}
		state[i] = 1
		for _, dep := range tasks[i].Dependencies {
			if j, ok := index[dep]; ok {
				visit(j)
			}
		}
		state[i] = 2
		order = append(order, i)
	}
	for i := range tasks {
		visit(i)
	}
	return order
}

// sortForAssignment puts inspections first, then more urgent priorities,
// then earlier due dates.
func sortForAssignment(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.TaskType.Rank() != b.TaskType.Rank() {
			return a.TaskType.Rank() < b.TaskType.Rank()
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.DueDate.Before(b.DueDate)
	})
}
