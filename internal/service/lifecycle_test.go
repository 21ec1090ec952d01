package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fleet-planner/internal/model"
)

func TestDeriveStatus(t *testing.T) {
	today := day("2025-01-10")

	tests := []struct {
		name      string
		due       string
		completed bool
		want      model.TaskStatus
	}{
		{"completed flag wins", "2025-02-01", true, model.TaskStatusCompleted},
		{"past due closes", "2025-01-09", false, model.TaskStatusCompleted},
		{"due today is in progress", "2025-01-10", false, model.TaskStatusInProgress},
		{"future is planned", "2025-01-11", false, model.TaskStatusPlanned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(day(tt.due), tt.completed, today))
		})
	}
}

func TestDerivePriority(t *testing.T) {
	today := day("2025-01-01")

	tests := []struct {
		due  string
		want int
	}{
		{"2024-12-20", 1},
		{"2025-01-01", 1},
		{"2025-01-02", 1},
		{"2025-01-03", 1},
		{"2025-01-04", 2},
		{"2025-01-06", 2},
		{"2025-01-08", 2},
		{"2025-01-09", 3},
		{"2025-01-11", 3},
	}
	for _, tt := range tests {
		t.Run(tt.due, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePriority(day(tt.due), today))
		})
	}
}

func TestDaysUntilDue(t *testing.T) {
	today := day("2025-03-01")
	assert.Equal(t, 0, DaysUntilDue(today, today))
	assert.Equal(t, 10, DaysUntilDue(day("2025-03-11"), today))
	assert.Equal(t, -3, DaysUntilDue(day("2025-02-26"), today))
}

func TestDaysUntilMoment(t *testing.T) {
	now := clockAt("2025-01-01")()
	assert.Equal(t, 8, DaysUntilMoment(at("2025-01-08", 9), now))
	assert.Equal(t, 1, DaysUntilMoment(at("2025-01-01", 15), now))
	assert.Equal(t, 0, DaysUntilMoment(at("2025-01-01", 0), now))
	assert.Equal(t, 3, priorityForDays(DaysUntilMoment(at("2025-01-08", 9), now)))
}

func TestRefreshFieldsIsIdempotent(t *testing.T) {
	today := day("2025-01-01")
	task := model.Task{
		ID:       1,
		DueDate:  day("2025-01-01"),
		Status:   model.TaskStatusPlanned,
		Priority: 3,
	}

	fields, changed := refreshFields(task, today)
	assert.True(t, changed)
	fields.Apply(&task)
	assert.Equal(t, model.TaskStatusInProgress, task.Status)
	assert.Equal(t, 1, task.Priority)

	_, changed = refreshFields(task, today)
	assert.False(t, changed)
}

func TestRefreshFieldsKeepsExplicitStatus(t *testing.T) {
	today := day("2025-01-01")
	task := model.Task{
		DueDate:  day("2025-01-20"),
		Status:   model.TaskStatusInProgress,
		Priority: 3,
	}

	fields, changed := refreshFields(task, today)
	assert.False(t, changed)
	assert.Nil(t, fields.Status)

	done := model.Task{DueDate: day("2025-01-20"), Status: model.TaskStatusCompleted, Priority: 3}
	_, changed = refreshFields(done, today)
	assert.False(t, changed)
}
