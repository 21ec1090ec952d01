package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fleet-planner/internal/model"
)

// UserRepository stores fleet owners. An owner is identified by the Telegram
// account that talks to the bot.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram returns the owner for telegramID, creating it on first
// contact. The profile columns follow the latest Telegram data.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	var owner model.User
	err := r.db.WithContext(ctx).
		Where(model.User{TelegramID: telegramID}).
		Assign(map[string]interface{}{
			"first_name": firstName,
			"last_name":  lastName,
			"username":   username,
		}).
		FirstOrCreate(&owner).Error
	if err != nil {
		return nil, fmt.Errorf("upsert owner %d: %w", telegramID, err)
	}
	return &owner, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var owner model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&owner).Error; err != nil {
		return nil, translate(err)
	}
	return &owner, nil
}

// ListAll returns every owner; the digest and warm-up jobs walk this list.
func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var owners []model.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&owners).Error; err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}
