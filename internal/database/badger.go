package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/thereayou/room-relay/internal/models"
	"github.com/thereayou/room-relay/internal/services"
)

const (
	roomPrefix = "room:"
	msgPrefix  = "msg:"
	seqKey     = "seq:msg"
)

// BadgerStore - встраиваемое хранилище сообщений поверх BadgerDB.
//
// Ключ сообщения "msg:{room}\x00{unix nanos, 19 знаков}:{seq, 20 знаков}":
// дополнение нулями даёт лексикографический порядок по времени, а сквозной
// счётчик разводит сообщения, записанные в одну и ту же наносекунду.
type BadgerStore struct {
	db    *badger.DB
	seq   *badger.Sequence
	log   *slog.Logger
	locks sync.Map // room name -> *sync.Mutex
}

type diskMessage struct {
	ID      uint64             `json:"id"`
	Room    string             `json:"room"`
	RoomID  uint               `json:"room_id"`
	Author  string             `json:"author"`
	Content string             `json:"content"`
	Kind    models.MessageKind `json:"kind"`
	At      int64              `json:"at"`
}

type diskRoom struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func OpenBadger(path string, log *slog.Logger) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, err
	}
	return NewBadgerStore(db, log)
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(seqKey), 100)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, seq: seq, log: log}, nil
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.log.Warn("badger.sequence.release", "err", err)
	}
	return s.db.Close()
}

func (s *BadgerStore) roomLock(room string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(room, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func roomKey(name string) []byte {
	return []byte(roomPrefix + name)
}

func roomMessagesPrefix(name string) []byte {
	return []byte(msgPrefix + name + "\x00")
}

func messageKey(name string, at time.Time, seq uint64) []byte {
	return append(roomMessagesPrefix(name), fmt.Sprintf("%019d:%020d", at.UnixNano(), seq)...)
}

func getRoom(txn *badger.Txn, name string) (diskRoom, error) {
	item, err := txn.Get(roomKey(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return diskRoom{}, services.ErrRoomNotFound
		}
		return diskRoom{}, err
	}

	var room diskRoom
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &room)
	})
	return room, err
}

// Append сериализуется по комнате; разные комнаты пишутся параллельно
func (s *BadgerStore) Append(ctx context.Context, room, author, content string, kind models.MessageKind) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}

	mu := s.roomLock(room)
	mu.Lock()
	defer mu.Unlock()

	var dm diskMessage
	err := s.db.Update(func(txn *badger.Txn) error {
		r, err := getRoom(txn, room)
		if err != nil {
			return err
		}

		seq, err := s.seq.Next()
		if err != nil {
			return err
		}

		at := now()
		dm = diskMessage{
			ID:      seq + 1,
			Room:    r.Name,
			RoomID:  r.ID,
			Author:  author,
			Content: content,
			Kind:    kind,
			At:      at.UnixNano(),
		}

		raw, err := json.Marshal(dm)
		if err != nil {
			return err
		}
		return txn.Set(messageKey(r.Name, at, seq), raw)
	})
	if err != nil {
		return models.Message{}, err
	}

	return dm.toModel(), nil
}

func (s *BadgerStore) History(ctx context.Context, room string) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getRoom(txn, room); err != nil {
			return err
		}

		prefix := roomMessagesPrefix(room)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dm diskMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			})
			if err != nil {
				return err
			}
			messages = append(messages, dm.toModel())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (s *BadgerStore) SeedRooms(ctx context.Context, names []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		prefix := []byte(roomPrefix)
		it.Seek(prefix)
		exists := it.ValidForPrefix(prefix)
		it.Close()

		if exists {
			return nil
		}

		created := time.Now().UTC()
		for i, name := range names {
			raw, err := json.Marshal(diskRoom{ID: uint(i + 1), Name: name, CreatedAt: created})
			if err != nil {
				return err
			}
			if err := txn.Set(roomKey(name), raw); err != nil {
				return err
			}
		}

		if len(names) > 0 {
			s.log.Info("rooms.seeded", "count", len(names))
		}
		return nil
	})
}

func (s *BadgerStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rooms []models.Room
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r diskRoom
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return err
			}
			rooms = append(rooms, models.Room{
				ID:          r.ID,
				Name:        r.Name,
				Description: r.Description,
				CreatedAt:   r.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (m diskMessage) toModel() models.Message {
	return models.Message{
		ID:        uint(m.ID),
		RoomID:    m.RoomID,
		RoomName:  m.Room,
		Author:    m.Author,
		Content:   m.Content,
		Kind:      m.Kind,
		CreatedAt: time.Unix(0, m.At).UTC(),
	}
}
