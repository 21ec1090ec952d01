package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"fleet-planner/internal/bot"
	"fleet-planner/internal/config"
	applog "fleet-planner/internal/log"
	"fleet-planner/internal/model"
	"fleet-planner/internal/repository"
	"fleet-planner/internal/service"
)

const jobTimeout = 2 * time.Minute

// app holds the wired stores and services for one process.
type app struct {
	cfg    config.Config
	log    *logrus.Logger
	db     *gorm.DB
	users  *repository.UserRepository
	equip  *repository.EquipmentRepository
	ops    *repository.OperatorRepository
	tasks  *service.TaskService
	remind *service.ReminderService
	sync   *service.ReminderSynchronizer
	opt    *service.Optimizer
	digest *service.DigestService
	warmup *service.WarmupService
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	logger, err := applog.New(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "logger")
	}
	db, err := repository.NewDB(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, errors.Wrap(err, "db")
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	equipmentRepo := repository.NewEquipmentRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	locks := service.NewOwnerLocks()
	taskSvc := service.NewTaskService(taskRepo, usageRepo, locks, logger, time.Now)
	syncer := service.NewReminderSynchronizer(taskRepo, reminderRepo, locks, logger, time.Now)
	optimizer := service.NewOptimizer(taskRepo, equipmentRepo, operatorRepo, usageRepo, locks, logger, time.Now)

	return &app{
		cfg:    cfg,
		log:    logger,
		db:     db,
		users:  userRepo,
		equip:  equipmentRepo,
		ops:    operatorRepo,
		tasks:  taskSvc,
		remind: service.NewReminderService(reminderRepo, syncer, logger, time.Now),
		sync:   syncer,
		opt:    optimizer,
		digest: service.NewDigestService(taskSvc),
		warmup: service.NewWarmupService(syncer, optimizer, userRepo, logger),
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// SetupCLI registers the planner commands on root.
func SetupCLI(rootCmd *cobra.Command) {
	botCmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot with the warm-up and digest jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return a.runBot(cmd.Context())
		},
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync every reminder into tasks and optimize each owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.warmup.Run(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "warm-up complete")
			return nil
		},
	}

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Assign equipment and operators to an owner's open tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := cmd.Flags().GetUint("owner")
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			updated, err := a.opt.Optimize(cmd.Context(), owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d task(s)\n", len(updated))
			printTasks(cmd.OutOrStdout(), updated)
			return nil
		},
	}
	optimizeCmd.Flags().Uint("owner", 0, "owner (user) id")
	_ = optimizeCmd.MarkFlagRequired("owner")

	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "List an owner's tasks with refreshed status and priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := cmd.Flags().GetUint("owner")
			if err != nil {
				return err
			}
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			tasks, err := a.tasks.ListTasks(cmd.Context(), owner, repository.TaskFilter{ExcludeCompleted: !all})
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	tasksCmd.Flags().Uint("owner", 0, "owner (user) id")
	tasksCmd.Flags().Bool("all", false, "include completed tasks")
	_ = tasksCmd.MarkFlagRequired("owner")

	rootCmd.AddCommand(botCmd, syncCmd, optimizeCmd, tasksCmd)
}

func (a *app) runBot(ctx context.Context) error {
	if err := a.cfg.RequireTelegram(); err != nil {
		return err
	}

	telegramBot, err := bot.New(a.cfg.TelegramToken, bot.Deps{
		Users:     a.users,
		Equipment: a.equip,
		Operators: a.ops,
		Tasks:     a.tasks,
		Reminders: a.remind,
		Optimizer: a.opt,
		Digest:    a.digest,
	}, a.log)
	if err != nil {
		return err
	}

	if err := a.warmup.Run(ctx); err != nil {
		a.log.WithError(err).Error("startup warm-up")
	}

	scheduler := service.NewSchedulerService(time.Local, a.log)
	if _, err := scheduler.ScheduleDaily("warmup", a.cfg.WarmupAt, func() {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		if err := a.warmup.Run(jobCtx); err != nil {
			a.log.WithError(err).Error("scheduled warm-up")
		}
	}); err != nil {
		return errors.Wrap(err, "schedule warm-up")
	}
	if a.cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval("digest", a.cfg.ReportInterval, func() {
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.WithError(err).Error("digest")
			}
		}); err != nil {
			return errors.Wrap(err, "schedule digest")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	a.log.Info("fleet planner bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}

func printTasks(w io.Writer, tasks []model.Task) {
	for _, t := range tasks {
		fmt.Fprintf(w, "#%d\t%s\t%s\tP%d\t%s\t%s\t%s\t%s\n",
			t.ID, model.FormatDate(t.DueDate), t.Status, t.Priority, t.TaskType,
			t.Name, orDash(t.EquipmentName()), orDash(t.OperatorName()))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
