package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
	"fleet-planner/internal/service"
)

const (
	cbBeginPrefix  = "begin:"
	cbFinishPrefix = "finish:"
)

const (
	menuLabelTasks     = "📋 Задачи"
	menuLabelReminders = "⏰ Напоминания"
	menuLabelOptimize  = "⚙️ Распределить"
	menuLabelReport    = "🛠 Сводка"
)

// Bot aggregates Telegram API with services.
type Bot struct {
	api         *tgbotapi.BotAPI
	userRepo    *repository.UserRepository
	equipment   *repository.EquipmentRepository
	operators   *repository.OperatorRepository
	taskSvc     *service.TaskService
	reminderSvc *service.ReminderService
	optimizer   *service.Optimizer
	digestSvc   *service.DigestService
	log         logrus.FieldLogger
}

// Deps groups everything the bot talks to.
type Deps struct {
	Users     *repository.UserRepository
	Equipment *repository.EquipmentRepository
	Operators *repository.OperatorRepository
	Tasks     *service.TaskService
	Reminders *service.ReminderService
	Optimizer *service.Optimizer
	Digest    *service.DigestService
}

func New(token string, deps Deps, log logrus.FieldLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.WithField("account", api.Self.UserName).Info("bot authorized")

	return &Bot{
		api:         api,
		userRepo:    deps.Users,
		equipment:   deps.Equipment,
		operators:   deps.Operators,
		taskSvc:     deps.Tasks,
		reminderSvc: deps.Reminders,
		optimizer:   deps.Optimizer,
		digestSvc:   deps.Digest,
		log:         log,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.WithError(err).Error("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.WithError(err).Error("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.log.WithFields(logrus.Fields{"from": msg.From.ID, "command": msg.Command()}).Info("command received")
		return b.handleCommand(ctx, msg)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelTasks:
		return b.handleListTasks(ctx, msg)
	case menuLabelReminders:
		return b.handleListReminders(ctx, msg)
	case menuLabelOptimize:
		return b.handleOptimize(ctx, msg)
	case menuLabelReport:
		return b.handleReport(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "remind":
		return b.handleRemind(ctx, msg)
	case "reminders":
		return b.handleListReminders(ctx, msg)
	case "done_reminder":
		return b.handleCompleteReminder(ctx, msg)
	case "reschedule":
		return b.handleReschedule(ctx, msg)
	case "newtask":
		return b.handleNewTask(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "begin":
		return b.handleTransitionCommand(ctx, msg, model.TaskStatusInProgress)
	case "finish":
		return b.handleTransitionCommand(ctx, msg, model.TaskStatusCompleted)
	case "optimize":
		return b.handleOptimize(ctx, msg)
	case "equipment":
		return b.handleEquipment(ctx, msg)
	case "operators":
		return b.handleOperators(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "коллега"
	}

	text := fmt.Sprintf("👋 Привет, %s!\n<b>Я планирую обслуживание техники: сроки, технику и операторов.</b>\n\n", escape(name))
	return b.sendText(msg.Chat.ID, text+helpText)
}

const helpText = "ℹ️ <b>Команды</b>\n" +
	"• /remind &lt;дата&gt; [repair] &lt;текст&gt; [| техника [| оператор]] — напоминание\n" +
	"• /reminders — список напоминаний\n" +
	"• /done_reminder &lt;id&gt; — закрыть напоминание\n" +
	"• /reschedule &lt;id&gt; &lt;дата&gt; — перенести напоминание\n" +
	"• /newtask &lt;дата&gt; [repair] &lt;название&gt; [| зависимости через запятую]\n" +
	"• /tasks — задачи по обслуживанию\n" +
	"• /begin &lt;id&gt;, /finish &lt;id&gt; — начать или завершить задачу\n" +
	"• /optimize — распределить технику и операторов\n" +
	"• /equipment [название], /operators [имя] — реестры\n" +
	"• /report — сводка\n" +
	"Даты в формате <code>2025-11-30</code>."

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, helpText)
}

func (b *Bot) handleRemind(ctx context.Context, msg *tgbotapi.Message) error {
	input, err := parseReminderArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	reminder, task, err := b.reminderSvc.CreateReminder(ctx, user.ID, input)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}

	text := fmt.Sprintf("⏰ Напоминание #%d сохранено на %s.", reminder.ID, model.FormatDate(model.LocalDate(reminder.DueAt)))
	if task != nil {
		text += "\n\n" + service.FormatTaskLine(*task, model.Today(time.Now()))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleListReminders(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	views, err := b.reminderSvc.ListReminders(ctx, user.ID)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	if len(views) == 0 {
		return b.sendText(msg.Chat.ID, "Напоминаний нет. Добавь через /remind.")
	}

	var sb strings.Builder
	sb.WriteString("⏰ <b>Напоминания</b>\n")
	for _, v := range views {
		sb.WriteString(fmt.Sprintf("%s #%d %s — %s\n", statusIcon(v.Status), v.ID, escape(v.Text), model.FormatDate(model.LocalDate(v.DueAt))))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleCompleteReminder(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID напоминания: /done_reminder 4")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if _, err := b.reminderSvc.CompleteReminder(ctx, user.ID, id); err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Напоминание #%d закрыто, задача снята с доски.", id))
}

func (b *Bot) handleReschedule(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, "Формат: /reschedule &lt;id&gt; &lt;дата&gt;")
	}
	id, err := parseID(fields[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, "ID напоминания должен быть числом.")
	}
	due, err := parseLocalDate(fields[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, "Не могу распознать дату. Используй формат <code>2025-11-30</code>.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	_, task, err := b.reminderSvc.RescheduleReminder(ctx, user.ID, id, due)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	text := fmt.Sprintf("📆 Напоминание #%d перенесено на %s.", id, model.FormatDate(due))
	if task != nil {
		text += "\n\n" + service.FormatTaskLine(*task, model.Today(time.Now()))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleNewTask(ctx context.Context, msg *tgbotapi.Message) error {
	input, err := parseTaskArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.CreateTask(ctx, user.ID, input)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, "✅ <b>Задача сохранена</b>\n"+service.FormatTaskLine(*task, model.Today(time.Now())))
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListTasks(ctx, user.ID, repository.TaskFilter{ExcludeCompleted: true})
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "Открытых задач нет. Добавь напоминание через /remind.")
	}

	today := model.Today(time.Now())
	var sb strings.Builder
	sb.WriteString("📋 <b>Задачи</b>\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range tasks {
		sb.WriteString(service.FormatTaskLine(t, today))
		var row []tgbotapi.InlineKeyboardButton
		if t.Status == model.TaskStatusPlanned {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("▶️ #%d", t.ID), fmt.Sprintf("%s%d", cbBeginPrefix, t.ID)))
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d", t.ID), fmt.Sprintf("%s%d", cbFinishPrefix, t.ID)))
		rows = append(rows, row)
	}

	out := tgbotapi.NewMessage(chatID, strings.TrimSpace(sb.String()))
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleTransitionCommand(ctx context.Context, msg *tgbotapi.Message, to model.TaskStatus) error {
	id, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи, например /"+msg.Command()+" 12")
	}
	return b.transition(ctx, msg.Chat.ID, msg.From, id, to)
}

func (b *Bot) transition(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint, to model.TaskStatus) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.Transition(ctx, user.ID, taskID, to)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if to == model.TaskStatusCompleted {
		return b.sendText(chatID, fmt.Sprintf("✅ Задача «%s» выполнена.", escape(task.Name)))
	}
	return b.sendText(chatID, fmt.Sprintf("🔧 Задача «%s» в работе.", escape(task.Name)))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.Message == nil || cb.From == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Warn("answer callback")
	}

	switch {
	case strings.HasPrefix(cb.Data, cbBeginPrefix):
		id, err := parseID(strings.TrimPrefix(cb.Data, cbBeginPrefix))
		if err != nil {
			return err
		}
		return b.transition(ctx, cb.Message.Chat.ID, cb.From, id, model.TaskStatusInProgress)
	case strings.HasPrefix(cb.Data, cbFinishPrefix):
		id, err := parseID(strings.TrimPrefix(cb.Data, cbFinishPrefix))
		if err != nil {
			return err
		}
		return b.transition(ctx, cb.Message.Chat.ID, cb.From, id, model.TaskStatusCompleted)
	default:
		return nil
	}
}

func (b *Bot) handleOptimize(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	updated, err := b.optimizer.Optimize(ctx, user.ID)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	if len(updated) == 0 {
		return b.sendText(msg.Chat.ID, "⚙️ Всё уже распределено, изменений нет.")
	}

	today := model.Today(time.Now())
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚙️ <b>Обновлено задач: %d</b>\n", len(updated)))
	for _, t := range updated {
		sb.WriteString(service.FormatTaskLine(t, today))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleEquipment(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if name := strings.TrimSpace(msg.CommandArguments()); name != "" {
		if _, err := b.equipment.GetOrCreate(ctx, user.ID, name); err != nil {
			return b.sendError(msg.Chat.ID, err)
		}
	}
	names, err := b.equipment.ListEquipmentNames(ctx, user.ID)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, formatRegistry("🚜 <b>Техника</b>", names))
}

func (b *Bot) handleOperators(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if name := strings.TrimSpace(msg.CommandArguments()); name != "" {
		if _, err := b.operators.GetOrCreate(ctx, user.ID, name); err != nil {
			return b.sendError(msg.Chat.ID, err)
		}
	}
	names, err := b.operators.ListOperatorNames(ctx, user.ID)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, formatRegistry("👷 <b>Операторы</b>", names))
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.digestSvc.DailySummary(ctx, *user, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сформировать сводку: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

// SendDailyReports pushes the maintenance digest to every owner.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.digestSvc.DailySummary(ctx, user, now)
		if err != nil {
			b.log.WithError(err).WithField("owner_id", user.ID).Error("build digest")
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			b.log.WithError(err).WithField("owner_id", user.ID).Error("send digest")
		}
	}
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendError(chatID int64, err error) error {
	text, internal := describeError(err)
	if internal {
		b.log.WithError(err).Error("request failed")
	}
	return b.sendText(chatID, text)
}

// describeError renders a service error for the user; internal reports
// whether it was unexpected.
func describeError(err error) (string, bool) {
	var verr *service.ValidationError
	var nf *service.NotFoundError
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &verr):
		return "⚠️ Проверь ввод: " + escape(verr.Error()), false
	case errors.As(err, &nf):
		return "Не найдено: " + escape(nf.Error()), false
	case errors.As(err, &conflict):
		if conflict.Resource == service.ResourceDependency {
			return fmt.Sprintf("⛔ Сначала нужно закрыть задачи %s. Срок перенесён на %s.", escape(conflict.Name), model.FormatDate(conflict.Date)), false
		}
		return "⛔ Конфликт: " + escape(conflict.Error()), false
	default:
		return "Ошибка: " + escape(err.Error()), true
	}
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelReminders),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelOptimize),
			tgbotapi.NewKeyboardButton(menuLabelReport),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func formatRegistry(title string, names []string) string {
	if len(names) == 0 {
		return title + "\n— пусто"
	}
	var sb strings.Builder
	sb.WriteString(title)
	for i, n := range names {
		sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, escape(n)))
	}
	return sb.String()
}

func statusIcon(status model.TaskStatus) string {
	switch status {
	case model.TaskStatusCompleted:
		return "✅"
	case model.TaskStatusInProgress:
		return "🔧"
	default:
		return "🗓"
	}
}

func parseID(raw string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(n), nil
}

func escape(s string) string {
	return html.EscapeString(s)
}
