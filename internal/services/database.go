//go:generate go run go.uber.org/mock/mockgen -source=database.go -destination=../../mocks/mock_message_store.go -package=mocks
package services

import (
	"context"

	"github.com/thereayou/room-relay/internal/models"
)

// MessageStore - долговременный журнал сообщений по комнатам
type MessageStore interface {
	// Append атомарно записывает сообщение и возвращает его с присвоенным временем
	Append(ctx context.Context, room, author, content string, kind models.MessageKind) (models.Message, error)
	// History возвращает все сообщения комнаты в порядке записи
	History(ctx context.Context, room string) ([]models.Message, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	SeedRooms(ctx context.Context, names []string) error
	Close() error
}
