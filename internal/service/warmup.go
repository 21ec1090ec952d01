package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// WarmupService replays reminders and runs an optimize pass for every owner.
// It runs at startup and once a day.
type WarmupService struct {
	sync      *ReminderSynchronizer
	optimizer *Optimizer
	users     UserLister
	log       logrus.FieldLogger
}

func NewWarmupService(sync *ReminderSynchronizer, optimizer *Optimizer, users UserLister, log logrus.FieldLogger) *WarmupService {
	return &WarmupService{sync: sync, optimizer: optimizer, users: users, log: log}
}

func (s *WarmupService) Run(ctx context.Context) error {
	if _, err := s.sync.SyncAll(ctx); err != nil {
		// Individual reminder failures are already logged; keep going.
		s.log.WithError(err).Warn("warm-up: reminder sync incomplete")
	}

	users, err := s.users.ListAll(ctx)
	if err != nil {
		return errors.Wrap(err, "list users")
	}
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.optimizer.Optimize(ctx, u.ID); err != nil {
			s.log.WithError(err).WithField("owner_id", u.ID).Error("warm-up: optimize failed")
		}
	}
	return nil
}
