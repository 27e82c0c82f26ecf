package database

import (
	"context"
	"time"

	"github.com/thereayou/room-relay/internal/models"
	"gorm.io/gorm"
)

// now - время записи сообщения. Микросекунды - точность postgres timestamptz,
// так что прочитанное из истории совпадает с возвращённым из Append.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (d *Database) Append(ctx context.Context, room, author, content string, kind models.MessageKind) (models.Message, error) {
	var message models.Message

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := findRoom(tx, room)
		if err != nil {
			return err
		}

		message = models.Message{
			RoomID:    r.ID,
			RoomName:  r.Name,
			Author:    author,
			Content:   content,
			Kind:      kind,
			CreatedAt: now(),
		}
		return tx.Create(&message).Error
	})
	if err != nil {
		return models.Message{}, err
	}

	return message, nil
}

// History получает все сообщения комнаты, старые первыми
func (d *Database) History(ctx context.Context, room string) ([]models.Message, error) {
	db := d.db.WithContext(ctx)

	r, err := findRoom(db, room)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	err = db.
		Where("room_id = ?", r.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i := range messages {
		messages[i].RoomName = r.Name
		messages[i].CreatedAt = messages[i].CreatedAt.UTC()
	}

	return messages, nil
}
