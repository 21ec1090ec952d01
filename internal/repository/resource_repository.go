package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"fleet-planner/internal/model"
)

// EquipmentRepository is the owner's equipment registry.
type EquipmentRepository struct {
	db *gorm.DB
}

func NewEquipmentRepository(db *gorm.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

func (r *EquipmentRepository) GetOrCreate(ctx context.Context, ownerID uint, name string) (*model.Equipment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var equipment model.Equipment
	db := r.db.WithContext(ctx)
	err := db.Where("user_id = ? AND name = ?", ownerID, name).First(&equipment).Error
	switch {
	case err == nil:
		return &equipment, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		equipment = model.Equipment{UserID: ownerID, Name: name}
		if err := db.Create(&equipment).Error; err != nil {
			return nil, fmt.Errorf("create equipment: %w", err)
		}
		return &equipment, nil
	default:
		return nil, fmt.Errorf("find equipment: %w", err)
	}
}

// ListEquipmentNames returns names in registration order.
func (r *EquipmentRepository) ListEquipmentNames(ctx context.Context, ownerID uint) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&model.Equipment{}).
		Where("user_id = ?", ownerID).Order("id ASC").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	return names, nil
}

// OperatorRepository is the owner's operator registry.
type OperatorRepository struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

func (r *OperatorRepository) GetOrCreate(ctx context.Context, ownerID uint, name string) (*model.Operator, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var operator model.Operator
	db := r.db.WithContext(ctx)
	err := db.Where("user_id = ? AND name = ?", ownerID, name).First(&operator).Error
	switch {
	case err == nil:
		return &operator, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		operator = model.Operator{UserID: ownerID, Name: name}
		if err := db.Create(&operator).Error; err != nil {
			return nil, fmt.Errorf("create operator: %w", err)
		}
		return &operator, nil
	default:
		return nil, fmt.Errorf("find operator: %w", err)
	}
}

// ListOperatorNames returns names in registration order.
func (r *OperatorRepository) ListOperatorNames(ctx context.Context, ownerID uint) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&model.Operator{}).
		Where("user_id = ?", ownerID).Order("id ASC").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	return names, nil
}
