package models

import (
	"time"
)

type Room struct {
	ID          uint    `gorm:"primaryKey"`
	Name        string  `gorm:"uniqueIndex;not null"`
	Description *string
	CreatedAt   time.Time

	// Связи
	Messages []Message `gorm:"foreignKey:RoomID"`
}
