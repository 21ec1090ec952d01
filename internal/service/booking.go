package service

import (
	"time"

	"fleet-planner/internal/model"
)

type bookingKey struct {
	resource string
	day      string
}

// booking is one claim on a resource for a day. A zero taskID comes from
// usage history.
type booking struct {
	taskID uint
}

// bookingView is the derived set of (resource, date) pairs in use. It is
// built per call and never shared.
type bookingView struct {
	busy map[bookingKey][]booking
	load map[string]int
}

func newBookingView() *bookingView {
	return &bookingView{
		busy: make(map[bookingKey][]booking),
		load: make(map[string]int),
	}
}

func keyFor(resource string, day time.Time) bookingKey {
	return bookingKey{resource: resource, day: model.FormatDate(model.DateOf(day))}
}

// book records a task claim. Task claims count towards the resource load.
func (v *bookingView) book(resource string, day time.Time, taskID uint) {
	if resource == "" {
		return
	}
	k := keyFor(resource, day)
	v.busy[k] = append(v.busy[k], booking{taskID: taskID})
	v.load[resource]++
}

// markUsed records history evidence; it makes the day busy but adds no load.
func (v *bookingView) markUsed(resource string, day time.Time) {
	if resource == "" {
		return
	}
	k := keyFor(resource, day)
	v.busy[k] = append(v.busy[k], booking{})
}

// holder returns who keeps resource busy on day, ignoring the task itself.
func (v *bookingView) holder(resource string, day time.Time, exceptTaskID uint) (booking, bool) {
	for _, b := range v.busy[keyFor(resource, day)] {
		if b.taskID != 0 && b.taskID == exceptTaskID {
			continue
		}
		return b, true
	}
	return booking{}, false
}

func (v *bookingView) isBusy(resource string, day time.Time) bool {
	_, ok := v.holder(resource, day, 0)
	return ok
}

// pick returns the first resource free on day, or the least-loaded one when
// all are taken. Ties keep the order of names.
func (v *bookingView) pick(names []string, day time.Time) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	for _, name := range names {
		if !v.isBusy(name, day) {
			return name, true
		}
	}
	best := names[0]
	for _, name := range names[1:] {
		if v.load[name] < v.load[best] {
			best = name
		}
	}
	return best, false
}

func equipmentView(tasks []model.Task, usage []model.UsageRecord, exceptTaskID uint) *bookingView {
	v := newBookingView()
	for _, t := range tasks {
		if t.ID == exceptTaskID {
			continue
		}
		v.book(t.EquipmentName(), t.DueDate, t.ID)
	}
	for _, r := range usage {
		v.markUsed(r.Equipment, r.Date)
	}
	return v
}

// operatorView books operators of tasks; with inProgressOnly it keeps just
// the tasks already being worked on.
func operatorView(tasks []model.Task, inProgressOnly bool, exceptTaskID uint) *bookingView {
	v := newBookingView()
	for _, t := range tasks {
		if t.ID == exceptTaskID {
			continue
		}
		if inProgressOnly && t.Status != model.TaskStatusInProgress {
			continue
		}
		v.book(t.OperatorName(), t.DueDate, t.ID)
	}
	return v
}
