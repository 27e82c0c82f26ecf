package database

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thereayou/room-relay/internal/models"
	"github.com/thereayou/room-relay/internal/services"
)

var seed = []string{"General", "Frontend", "Backend"}

// storeFactories прогоняет один и тот же набор проверок на обоих хранилищах
func storeFactories() map[string]func(t *testing.T) services.MessageStore {
	return map[string]func(t *testing.T) services.MessageStore{
		"sqlite": func(t *testing.T) services.MessageStore {
			dsn := filepath.Join(t.TempDir(), "relay.db") + "?_busy_timeout=5000"
			db, err := Connect(DriverSQLite, dsn, slog.New(slog.DiscardHandler))
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			return db
		},
		"badger": func(t *testing.T) services.MessageStore {
			s, err := OpenBadger(t.TempDir(), slog.New(slog.DiscardHandler))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func seeded(t *testing.T, newStore func(t *testing.T) services.MessageStore) services.MessageStore {
	s := newStore(t)
	require.NoError(t, s.SeedRooms(context.Background(), seed))
	return s
}

func TestStore_SeedRoomsOnce(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			s := seeded(t, newStore)

			// второй посев игнорируется: комнаты уже есть
			req.NoError(s.SeedRooms(ctx, []string{"Other"}))

			rooms, err := s.ListRooms(ctx)
			req.NoError(err)
			req.Len(rooms, 3)
			for i, r := range rooms {
				req.Equal(seed[i], r.Name)
				req.NotZero(r.ID)
			}
		})
	}
}

func TestStore_AppendThenHistoryTail(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			s := seeded(t, newStore)

			first, err := s.Append(ctx, "General", "alice", "hi", models.KindText)
			req.NoError(err)
			second, err := s.Append(ctx, "General", "bob", "https://example.com/cat.png", models.KindImage)
			req.NoError(err)
			_, err = s.Append(ctx, "Backend", "carol", "elsewhere", models.KindText)
			req.NoError(err)

			history, err := s.History(ctx, "General")
			req.NoError(err)
			req.Len(history, 2)

			req.Equal(first.ID, history[0].ID)
			req.Equal("alice", history[0].Author)
			req.Equal("hi", history[0].Content)
			req.Equal(models.KindText, history[0].Kind)
			req.True(first.CreatedAt.Equal(history[0].CreatedAt))

			tail := history[len(history)-1]
			req.Equal(second.ID, tail.ID)
			req.Equal(models.KindImage, tail.Kind)
			req.Equal("General", tail.RoomName)
			req.True(second.CreatedAt.Equal(tail.CreatedAt))
			req.False(tail.CreatedAt.Before(history[0].CreatedAt))
		})
	}
}

func TestStore_EmptyHistory(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			history, err := seeded(t, newStore).History(context.Background(), "Frontend")
			require.NoError(t, err)
			require.Empty(t, history)
		})
	}
}

func TestStore_UnknownRoom(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			s := seeded(t, newStore)

			_, err := s.Append(ctx, "Nonexistent", "alice", "hi", models.KindText)
			req.ErrorIs(err, services.ErrRoomNotFound)

			_, err = s.History(ctx, "Nonexistent")
			req.ErrorIs(err, services.ErrRoomNotFound)

			rooms, err := s.ListRooms(ctx)
			req.NoError(err)
			req.Len(rooms, 3)
		})
	}
}

func TestStore_ConcurrentAppendsKeepEveryMessage(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			s := seeded(t, newStore)

			const writers, perWriter = 4, 10
			var wg sync.WaitGroup
			errs := make(chan error, writers*perWriter)
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						if _, err := s.Append(ctx, "General", "writer", "msg", models.KindText); err != nil {
							errs <- err
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				req.NoError(err)
			}

			history, err := s.History(ctx, "General")
			req.NoError(err)
			req.Len(history, writers*perWriter)

			// порядок чтения: время, затем порядковый номер вставки
			for i := 1; i < len(history); i++ {
				prev, cur := history[i-1], history[i]
				req.False(cur.CreatedAt.Before(prev.CreatedAt))
				if cur.CreatedAt.Equal(prev.CreatedAt) {
					req.Greater(cur.ID, prev.ID)
				}
			}
		})
	}
}

func TestConnect_RequiresDSN(t *testing.T) {
	_, err := Connect(DriverSQLite, "", slog.New(slog.DiscardHandler))
	require.Error(t, err)

	_, err = Connect("mysql", "dsn", slog.New(slog.DiscardHandler))
	require.Error(t, err)
}
