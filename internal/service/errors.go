package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
)

// ValidationError lists every invalid field of a rejected input.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// NotFoundError is returned when an owner-scoped record does not exist.
type NotFoundError struct {
	Kind string
	ID   uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return repository.ErrNotFound
}

const (
	ResourceEquipment  = "equipment"
	ResourceOperator   = "operator"
	ResourceDependency = "dependency"
)

// ConflictError rejects a transition because a resource is taken on the
// task's date, or because dependencies are still open.
type ConflictError struct {
	TaskID   uint
	Resource string
	Name     string
	Date     time.Time
	// HeldBy is the task holding the resource; zero means a usage record.
	HeldBy uint
}

func (e *ConflictError) Error() string {
	date := model.FormatDate(e.Date)
	switch {
	case e.Resource == ResourceDependency:
		return fmt.Sprintf("task %d is blocked by open dependencies %s, rescheduled to %s", e.TaskID, e.Name, date)
	case e.HeldBy == 0:
		return fmt.Sprintf("%s %q is already in use on %s", e.Resource, e.Name, date)
	default:
		return fmt.Sprintf("%s %q is already booked on %s by task %d", e.Resource, e.Name, date, e.HeldBy)
	}
}

// lookupErr turns a store miss into a NotFoundError and wraps anything else.
func lookupErr(err error, kind string, id uint) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return errors.Wrapf(err, "get %s %d", kind, id)
}
