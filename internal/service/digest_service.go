package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
)

// DigestService builds the maintenance report sent to owners.
type DigestService struct {
	tasks *TaskService
}

func NewDigestService(tasks *TaskService) *DigestService {
	return &DigestService{tasks: tasks}
}

func (s *DigestService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	tasks, err := s.tasks.ListTasks(ctx, user.ID, repository.TaskFilter{ExcludeCompleted: true})
	if err != nil {
		return "", err
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority < tasks[j].Priority
		}
		return tasks[i].DueDate.Before(tasks[j].DueDate)
	})

	today := model.Today(now)
	var inProgress, planned []model.Task
	for _, t := range tasks {
		if t.Status == model.TaskStatusInProgress {
			inProgress = append(inProgress, t)
		} else {
			planned = append(planned, t)
		}
	}

	var builder strings.Builder
	builder.WriteString("🛠 <b>Сводка по обслуживанию техники</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s", today.Format("02.01.2006")))
	if name := strings.TrimSpace(user.DisplayName()); name != "" {
		builder.WriteString(" · " + html.EscapeString(name))
	}
	builder.WriteString("\n\n")

	builder.WriteString("🔧 <b>В работе сегодня</b>\n")
	if len(inProgress) == 0 {
		builder.WriteString("— ничего не запланировано\n")
	} else {
		for _, t := range inProgress {
			builder.WriteString(FormatTaskLine(t, today))
		}
	}

	builder.WriteString("\n📋 <b>Запланировано</b>\n")
	if len(planned) == 0 {
		builder.WriteString("— нет открытых задач\n")
	} else {
		for _, t := range planned {
			builder.WriteString(FormatTaskLine(t, today))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatTaskLine renders one task as an HTML block for Telegram.
func FormatTaskLine(task model.Task, today time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s #%d %s", priorityIcon(task.Priority), task.ID, html.EscapeString(strings.TrimSpace(task.Name))))
	if task.TaskType == model.TaskTypeRepair {
		sb.WriteString(" <i>(ремонт)</i>")
	} else {
		sb.WriteString(" <i>(ТО)</i>")
	}

	days := DaysUntilDue(task.DueDate, today)
	switch {
	case days < 0:
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s — <b>просрочено</b>", model.FormatDate(task.DueDate)))
	case days == 0:
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s — сегодня", model.FormatDate(task.DueDate)))
	default:
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s · осталось %d дн.", model.FormatDate(task.DueDate), days))
	}

	sb.WriteString(fmt.Sprintf("\n   🚜 %s · 👷 %s", orUnassigned(task.EquipmentName()), orUnassigned(task.OperatorName())))
	if len(task.Dependencies) > 0 {
		sb.WriteString(fmt.Sprintf("\n   🔗 после: %s", formatIDs(task.Dependencies)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func priorityIcon(priority int) string {
	switch priority {
	case 1:
		return "🔴"
	case 2:
		return "🟠"
	default:
		return "🟢"
	}
}

func orUnassigned(name string) string {
	if name == "" {
		return "не назначено"
	}
	return html.EscapeString(name)
}
