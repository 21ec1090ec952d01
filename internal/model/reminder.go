package model

import "time"

// Reminder is a scheduled maintenance or repair notice. Each open reminder
// drives exactly one Task.
type Reminder struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index"`
	Text      string    `gorm:"not null"`
	DueAt     time.Time `gorm:"index"`
	Completed bool      `gorm:"default:false"`
	TaskType  TaskType  `gorm:"type:varchar(32)"`
	Equipment *string
	Operator  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
