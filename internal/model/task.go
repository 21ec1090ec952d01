package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskType string

const (
	TaskTypeInspection TaskType = "technical_inspection"
	TaskTypeRepair     TaskType = "repair"

	// legacyTaskTypeMaintenance is what older rows and reminders carry for inspections.
	legacyTaskTypeMaintenance = "maintenance"
)

// ParseTaskType normalizes raw input. An empty value and the legacy
// "maintenance" both mean an inspection.
func ParseTaskType(raw string) (TaskType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", legacyTaskTypeMaintenance, string(TaskTypeInspection):
		return TaskTypeInspection, true
	case string(TaskTypeRepair):
		return TaskTypeRepair, true
	default:
		return TaskType(raw), false
	}
}

// Rank orders task types for assignment: inspections go first.
func (t TaskType) Rank() int {
	if t == TaskTypeRepair {
		return 1
	}
	return 0
}

func (t *TaskType) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = TaskTypeInspection
	case string:
		*t, _ = ParseTaskType(v)
	case []byte:
		*t, _ = ParseTaskType(string(v))
	default:
		return fmt.Errorf("scan task type: unsupported type %T", value)
	}
	return nil
}

func (t TaskType) Value() (driver.Value, error) {
	return string(t), nil
}

type TaskStatus string

const (
	TaskStatusPlanned    TaskStatus = "planned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

func ParseTaskStatus(raw string) (TaskStatus, bool) {
	s := TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case TaskStatusPlanned, TaskStatusInProgress, TaskStatusCompleted:
		return s, true
	default:
		return s, false
	}
}

// Rank is the position of the status in the lifecycle.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusInProgress:
		return 1
	case TaskStatusCompleted:
		return 2
	default:
		return 0
	}
}

// Task is a schedulable maintenance or repair work item.
type Task struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       uint      `gorm:"index;uniqueIndex:idx_task_owner_reminder"`
	Name         string    `gorm:"not null"`
	TaskType     TaskType  `gorm:"type:varchar(32)"`
	Priority     int       `gorm:"default:3"`
	DueDate      time.Time `gorm:"type:date;index"`
	Equipment    *string   `gorm:"index"`
	Operator     *string   `gorm:"index"`
	Dependencies datatypes.JSONSlice[uint]
	Status       TaskStatus `gorm:"type:varchar(16);index"`
	ReminderID   *uint      `gorm:"uniqueIndex:idx_task_owner_reminder"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AfterFind keeps DueDate a pure calendar date whatever location the driver used.
func (t *Task) AfterFind(tx *gorm.DB) error {
	t.DueDate = DateOf(t.DueDate.UTC())
	return nil
}

func (t Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

func (t Task) EquipmentName() string {
	if t.Equipment == nil {
		return ""
	}
	return *t.Equipment
}

func (t Task) OperatorName() string {
	if t.Operator == nil {
		return ""
	}
	return *t.Operator
}

// TaskFields is a partial update. Nil fields are left untouched.
type TaskFields struct {
	Name         *string
	TaskType     *TaskType
	Priority     *int
	DueDate      *time.Time
	Equipment    *string
	Operator     *string
	Dependencies *[]uint
	Status       *TaskStatus
}

func (f TaskFields) Empty() bool {
	return f.Name == nil && f.TaskType == nil && f.Priority == nil && f.DueDate == nil &&
		f.Equipment == nil && f.Operator == nil && f.Dependencies == nil && f.Status == nil
}

// Columns maps the set fields to column names for a gorm Updates call.
func (f TaskFields) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if f.Name != nil {
		cols["name"] = *f.Name
	}
	if f.TaskType != nil {
		cols["task_type"] = *f.TaskType
	}
	if f.Priority != nil {
		cols["priority"] = *f.Priority
	}
	if f.DueDate != nil {
		cols["due_date"] = DateOf(*f.DueDate)
	}
	if f.Equipment != nil {
		cols["equipment"] = *f.Equipment
	}
	if f.Operator != nil {
		cols["operator"] = *f.Operator
	}
	if f.Dependencies != nil {
		cols["dependencies"] = datatypes.JSONSlice[uint](*f.Dependencies)
	}
	if f.Status != nil {
		cols["status"] = *f.Status
	}
	return cols
}

// Apply copies the set fields onto t.
func (f TaskFields) Apply(t *Task) {
	if f.Name != nil {
		t.Name = *f.Name
	}
	if f.TaskType != nil {
		t.TaskType = *f.TaskType
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.DueDate != nil {
		t.DueDate = DateOf(*f.DueDate)
	}
	if f.Equipment != nil {
		name := *f.Equipment
		t.Equipment = &name
	}
	if f.Operator != nil {
		name := *f.Operator
		t.Operator = &name
	}
	if f.Dependencies != nil {
		t.Dependencies = append(datatypes.JSONSlice[uint](nil), (*f.Dependencies)...)
	}
	if f.Status != nil {
		t.Status = *f.Status
	}
}
