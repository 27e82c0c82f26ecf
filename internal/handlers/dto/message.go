package dto

import (
	"github.com/thereayou/room-relay/internal/models"
)

const (
	DefaultAuthor = "Anonymous"

	// TimestampLayout - RFC 3339 с ровно шестью знаками дробной части:
	// хранилища округляют время до микросекунд, а фиксированная ширина
	// сохраняет порядок при сравнении строк
	TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// InboundMessage структура для входящих сообщений
type InboundMessage struct {
	Author  string             `json:"author"`
	Content string             `json:"content"`
	Kind    models.MessageKind `json:"kind" validate:"required,oneof=text image audio"`
}

// WithDefaults подставляет значения по умолчанию для пустых полей
func (m InboundMessage) WithDefaults() InboundMessage {
	if m.Author == "" {
		m.Author = DefaultAuthor
	}
	if m.Kind == "" {
		m.Kind = models.KindText
	}
	return m
}

// MessageResponse структура для исходящих сообщений и истории
type MessageResponse struct {
	Author    string             `json:"author"`
	Content   string             `json:"content"`
	Kind      models.MessageKind `json:"kind"`
	Timestamp string             `json:"timestamp"`
}

func NewMessageResponse(m models.Message) MessageResponse {
	return MessageResponse{
		Author:    m.Author,
		Content:   m.Content,
		Kind:      m.Kind,
		Timestamp: m.CreatedAt.UTC().Format(TimestampLayout),
	}
}

type RoomResponse struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Online      int     `json:"online"`
}
