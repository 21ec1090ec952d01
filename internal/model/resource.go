package model

import (
	"time"

	"gorm.io/gorm"
)

// Equipment is a registered fleet unit.
type Equipment struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index:idx_user_equipment_name,unique"`
	Name      string `gorm:"index:idx_user_equipment_name,unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Operator is a named person who can run a piece of equipment.
type Operator struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index:idx_user_operator_name,unique"`
	Name      string `gorm:"index:idx_user_operator_name,unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UsageRecord is one historical entry of equipment work on a given date.
type UsageRecord struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index"`
	Equipment string    `gorm:"index"`
	Date      time.Time `gorm:"type:date"`
	Hours     float64
	TaskID    *uint
	CreatedAt time.Time
}

func (r *UsageRecord) AfterFind(tx *gorm.DB) error {
	r.Date = DateOf(r.Date.UTC())
	return nil
}
