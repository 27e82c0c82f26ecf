package database

import (
	"context"
	"errors"

	"github.com/thereayou/room-relay/internal/models"
	"github.com/thereayou/room-relay/internal/services"
	"gorm.io/gorm"
)

// SeedRooms создаёт стартовые комнаты, только если таблица пуста
func (d *Database) SeedRooms(ctx context.Context, names []string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Room{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 || len(names) == 0 {
			return nil
		}

		rooms := make([]models.Room, len(names))
		for i, name := range names {
			rooms[i] = models.Room{Name: name}
		}
		if err := tx.Create(&rooms).Error; err != nil {
			return err
		}

		d.log.Info("rooms.seeded", "count", len(rooms))
		return nil
	})
}

func (d *Database) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := d.db.WithContext(ctx).Order("id ASC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func findRoom(tx *gorm.DB, name string) (*models.Room, error) {
	var room models.Room
	if err := tx.Where("name = ?", name).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}
