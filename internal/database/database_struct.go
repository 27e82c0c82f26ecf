package database

import (
	"log/slog"

	"github.com/thereayou/room-relay/internal/services"
	"gorm.io/gorm"
)

type Database struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewDatabase(db *gorm.DB, log *slog.Logger) *Database {
	return &Database{db: db, log: log}
}

var (
	_ services.MessageStore = (*Database)(nil)
	_ services.MessageStore = (*BadgerStore)(nil)
)
