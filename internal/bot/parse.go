package bot

import (
	"fmt"
	"strings"
	"time"

	"fleet-planner/internal/model"
	"fleet-planner/internal/service"
)

const (
	dateTimeLayout = "2006-01-02 15:04"
	// reminders without a time fire at the start of the working day
	defaultReminderHour = 9
)

// parseLocalDate reads YYYY-MM-DD as midnight in the local zone.
func parseLocalDate(raw string) (time.Time, error) {
	return time.ParseInLocation(model.DateLayout, strings.TrimSpace(raw), time.Local)
}

// parseReminderArgs reads "<date> [HH:MM] [repair] <text> [| equipment [| operator]]".
func parseReminderArgs(args string) (service.ReminderInput, error) {
	head, equipment, operator := splitPipes(args)
	fields := strings.Fields(head)
	if len(fields) < 2 {
		return service.ReminderInput{}, fmt.Errorf("Формат: /remind 2025-11-30 [10:00] [repair] текст [| техника [| оператор]]")
	}

	day, err := parseLocalDate(fields[0])
	if err != nil {
		return service.ReminderInput{}, fmt.Errorf("Не могу распознать дату %q, нужен формат 2025-11-30", fields[0])
	}
	dueAt := day.Add(defaultReminderHour * time.Hour)
	rest := fields[1:]
	if t, err := time.ParseInLocation(dateTimeLayout, fields[0]+" "+fields[1], time.Local); err == nil {
		dueAt = t
		rest = fields[2:]
	}

	taskType, rest := takeTaskType(rest)
	text := strings.Join(rest, " ")
	if text == "" {
		return service.ReminderInput{}, fmt.Errorf("Добавь текст напоминания после даты")
	}

	return service.ReminderInput{
		Text:      text,
		DueAt:     dueAt,
		TaskType:  string(taskType),
		Equipment: equipment,
		Operator:  operator,
	}, nil
}

// parseTaskArgs reads "<date> [repair] <name> [| dependency ids]".
func parseTaskArgs(args string) (service.TaskInput, error) {
	parts := strings.SplitN(args, "|", 2)
	fields := strings.Fields(parts[0])
	if len(fields) < 2 {
		return service.TaskInput{}, fmt.Errorf("Формат: /newtask 2025-11-30 [repair] название [| 3,5]")
	}
	if _, err := model.ParseDate(fields[0]); err != nil {
		return service.TaskInput{}, fmt.Errorf("Не могу распознать дату %q, нужен формат 2025-11-30", fields[0])
	}

	taskType, rest := takeTaskType(fields[1:])
	name := strings.Join(rest, " ")
	if name == "" {
		return service.TaskInput{}, fmt.Errorf("Добавь название задачи после даты")
	}

	input := service.TaskInput{
		Name:     name,
		TaskType: string(taskType),
		DueDate:  fields[0],
	}
	if len(parts) == 2 {
		input.Dependencies = service.ParseDependencyIDs(parts[1])
	}
	return input, nil
}

// takeTaskType consumes a leading task type token if present.
func takeTaskType(fields []string) (model.TaskType, []string) {
	if len(fields) == 0 {
		return model.TaskTypeInspection, fields
	}
	switch strings.ToLower(fields[0]) {
	case "repair", "ремонт":
		return model.TaskTypeRepair, fields[1:]
	case "inspection", "maintenance", "то", string(model.TaskTypeInspection):
		return model.TaskTypeInspection, fields[1:]
	}
	return model.TaskTypeInspection, fields
}

func splitPipes(args string) (head, equipment, operator string) {
	parts := strings.SplitN(args, "|", 3)
	head = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		equipment = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		operator = strings.TrimSpace(parts[2])
	}
	return head, equipment, operator
}
