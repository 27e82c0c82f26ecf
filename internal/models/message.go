package models

import (
	"time"
)

// MessageKind определяет тип содержимого сообщения
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindAudio MessageKind = "audio"
)

// IsMedia сообщает, что Content содержит URL внешнего файла
func (k MessageKind) IsMedia() bool {
	return k == KindImage || k == KindAudio
}

// Message неизменяемо после сохранения.
// ID служит порядковым номером вставки и разрешает равные CreatedAt.
type Message struct {
	ID        uint        `gorm:"primaryKey"`
	RoomID    uint        `gorm:"not null;index:idx_room_created,priority:1"`
	RoomName  string      `gorm:"-"`
	Author    string      `gorm:"not null"`
	Content   string      `gorm:"type:text;not null"`
	Kind      MessageKind `gorm:"default:'text'"`
	CreatedAt time.Time   `gorm:"index:idx_room_created,priority:2"`
}
