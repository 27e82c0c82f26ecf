//go:generate go run go.uber.org/mock/mockgen -source=redis_bus.go -destination=../../mocks/mock_bus.go -package=mocks
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Bus передаёт уже сохранённые сообщения другим экземплярам сервиса
type Bus interface {
	Publish(ctx context.Context, room string, frame []byte) error
	// Subscribe блокируется до отмены ctx и вызывает fn для сообщений чужих экземпляров
	Subscribe(ctx context.Context, fn func(room string, frame []byte))
	Close() error
}

type busEnvelope struct {
	Origin  uuid.UUID       `json:"origin"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

type RedisBus struct {
	rdb    *redis.Client
	origin uuid.UUID
	log    *slog.Logger
}

// NewRedisBus подключается к redis и проверяет соединение
func NewRedisBus(ctx context.Context, url string, log *slog.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &RedisBus{rdb: rdb, origin: uuid.New(), log: log}, nil
}

func (b *RedisBus) Publish(ctx context.Context, room string, frame []byte) error {
	raw, err := json.Marshal(busEnvelope{Origin: b.origin, Room: room, Payload: frame})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channel(room), raw).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, fn func(room string, frame []byte)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env busEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("bus.decode", "channel", msg.Channel, "err", err)
				continue
			}
			// своё сообщение уже разослано локально
			if env.Origin == b.origin {
				continue
			}
			room := env.Room
			if room == "" {
				room = roomFromChannel(msg.Channel)
			}
			fn(room, env.Payload)
		}
	}
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

func channel(room string) string { return "room:" + room }

func roomFromChannel(ch string) string { return strings.TrimPrefix(ch, "room:") }
