package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/datatypes"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
)

// memStore implements every store port in memory
type memStore struct {
	mu        sync.Mutex
	tasks     []model.Task
	reminders []model.Reminder
	usage     []model.UsageRecord
	equipment map[uint][]string
	operators map[uint][]string
	users     []model.User

	nextTask     uint
	nextReminder uint
	nextUsage    uint

	failUpdate error
	updates    int
}

func newMemStore() *memStore {
	return &memStore{
		equipment: make(map[uint][]string),
		operators: make(map[uint][]string),
	}
}

func cloneTask(t model.Task) model.Task {
	if t.Equipment != nil {
		v := *t.Equipment
		t.Equipment = &v
	}
	if t.Operator != nil {
		v := *t.Operator
		t.Operator = &v
	}
	if t.ReminderID != nil {
		v := *t.ReminderID
		t.ReminderID = &v
	}
	t.Dependencies = append(datatypes.JSONSlice[uint](nil), t.Dependencies...)
	return t
}

func (m *memStore) ListTasks(_ context.Context, ownerID uint, filter repository.TaskFilter) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Task
	for _, t := range m.tasks {
		if t.UserID == ownerID && filter.Match(t) {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

func (m *memStore) find(ownerID, taskID uint) int {
	for i, t := range m.tasks {
		if t.UserID == ownerID && t.ID == taskID {
			return i
		}
	}
	return -1
}

func (m *memStore) GetTask(_ context.Context, ownerID, taskID uint) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(ownerID, taskID)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	t := cloneTask(m.tasks[i])
	return &t, nil
}

func (m *memStore) FindByReminder(_ context.Context, ownerID, reminderID uint) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.UserID == ownerID && t.ReminderID != nil && *t.ReminderID == reminderID {
			c := cloneTask(t)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) InsertTask(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task.ReminderID != nil {
		for _, t := range m.tasks {
			if t.UserID == task.UserID && t.ReminderID != nil && *t.ReminderID == *task.ReminderID {
				return errors.New("duplicate reminder task")
			}
		}
	}
	m.nextTask++
	task.ID = m.nextTask
	task.DueDate = model.DateOf(task.DueDate)
	m.tasks = append(m.tasks, cloneTask(*task))
	return nil
}

func (m *memStore) UpdateTask(_ context.Context, ownerID, taskID uint, fields model.TaskFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	i := m.find(ownerID, taskID)
	if i < 0 {
		return repository.ErrNotFound
	}
	fields.Apply(&m.tasks[i])
	m.updates++
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, ownerID, taskID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(ownerID, taskID)
	if i < 0 {
		return repository.ErrNotFound
	}
	m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
	return nil
}

func (m *memStore) DeleteByReminder(_ context.Context, ownerID, reminderID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if t.UserID == ownerID && t.ReminderID != nil && *t.ReminderID == reminderID {
			n++
			continue
		}
		kept = append(kept, t)
	}
	m.tasks = kept
	return n, nil
}

func (m *memStore) Create(_ context.Context, reminder *model.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextReminder++
	reminder.ID = m.nextReminder
	m.reminders = append(m.reminders, *reminder)
	return nil
}

func (m *memStore) Save(_ context.Context, reminder *model.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.reminders {
		if r.ID == reminder.ID {
			m.reminders[i] = *reminder
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) FindByID(_ context.Context, ownerID, reminderID uint) (*model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reminders {
		if r.UserID == ownerID && r.ID == reminderID {
			c := r
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListByUser(_ context.Context, ownerID uint) ([]model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reminder
	for _, r := range m.reminders {
		if r.UserID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context) ([]model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Reminder(nil), m.reminders...), nil
}

func (m *memStore) ListEquipmentNames(_ context.Context, ownerID uint) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.equipment[ownerID]...), nil
}

func (m *memStore) ListOperatorNames(_ context.Context, ownerID uint) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.operators[ownerID]...), nil
}

func (m *memStore) ListUsageRecords(_ context.Context, ownerID uint) ([]model.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UsageRecord
	for _, r := range m.usage {
		if r.UserID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) InsertUsageRecord(_ context.Context, record *model.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUsage++
	record.ID = m.nextUsage
	m.usage = append(m.usage, *record)
	return nil
}

// userList adapts the users slice to UserLister.
type userList []model.User

func (u userList) ListAll(context.Context) ([]model.User, error) {
	return u, nil
}

func (m *memStore) task(id uint) model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return cloneTask(t)
		}
	}
	return model.Task{}
}

// seed inserts a task as-is and returns its id.
func (m *memStore) seed(t model.Task) uint {
	_ = m.InsertTask(context.Background(), &t)
	return t.ID
}

func strPtr(s string) *string { return &s }

func day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// clockAt pins "now" to noon local time of the given date.
func clockAt(date string) Clock {
	d := day(date)
	now := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.Local)
	return func() time.Time { return now }
}

func nullLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func sortedNames(tasks []model.Task, get func(model.Task) string) []string {
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, get(t))
	}
	sort.Strings(names)
	return names
}
