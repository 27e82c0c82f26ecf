package services

import (
	"context"

	"github.com/samber/lo"
	"github.com/thereayou/room-relay/internal/models"
)

// RoomCatalog - набор комнат, подготовленных при старте.
// После загрузки только читается, поэтому блокировка не нужна.
type RoomCatalog struct {
	rooms map[string]models.Room
	order []string
}

func NewRoomCatalog(rooms []models.Room) *RoomCatalog {
	return &RoomCatalog{
		rooms: lo.SliceToMap(rooms, func(r models.Room) (string, models.Room) {
			return r.Name, r
		}),
		order: lo.Map(rooms, func(r models.Room, _ int) string { return r.Name }),
	}
}

// LoadRoomCatalog засевает комнаты (если их ещё нет) и читает итоговый набор из хранилища
func LoadRoomCatalog(ctx context.Context, store MessageStore, seed []string) (*RoomCatalog, error) {
	if err := store.SeedRooms(ctx, seed); err != nil {
		return nil, err
	}
	rooms, err := store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	return NewRoomCatalog(rooms), nil
}

func (c *RoomCatalog) Exists(name string) bool {
	_, ok := c.rooms[name]
	return ok
}

func (c *RoomCatalog) Get(name string) (models.Room, error) {
	room, ok := c.rooms[name]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	return room, nil
}

// All возвращает комнаты в порядке, в котором их отдало хранилище
func (c *RoomCatalog) All() []models.Room {
	return lo.Map(c.order, func(name string, _ int) models.Room { return c.rooms[name] })
}
