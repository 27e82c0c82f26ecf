package websocket

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/thereayou/room-relay/internal/metrics"
)

// Hub - реестр живых соединений по комнатам.
// Карта комнат не покидает Hub: наружу отдаются только копии.
type Hub struct {
	// Клиенты в комнатах, в порядке регистрации
	rooms map[string][]*Client

	mu sync.RWMutex

	log     *slog.Logger
	metrics *metrics.Metrics

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub
func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:   make(map[string][]*Client),
		log:     log,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Context отменяется при Stop; им пользуются обработчики входящих сообщений
func (h *Hub) Context() context.Context {
	return h.ctx
}

// Register добавляет клиента в комнату. После возврата клиент уже виден рассылке.
// После Stop клиент не регистрируется, а сразу закрывается.
func (h *Hub) Register(room string, client *Client) {
	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		client.Close()
		h.log.Debug("ws.register.stopped", "room", room, "client", client.ID)
		return
	}
	h.rooms[room] = append(h.rooms[room], client)
	count := len(h.rooms[room])
	// gauge меняется только под mu
	h.metrics.SetLive(room, count)
	h.mu.Unlock()

	h.log.Debug("ws.register", "room", room, "client", client.ID, "members", count)
}

// Unregister удаляет клиента из комнаты. Повторный вызов ничего не делает:
// отключение и неудачная доставка могут удалять одного клиента наперегонки.
func (h *Hub) Unregister(room string, client *Client) {
	h.mu.Lock()
	members := h.rooms[room]
	i := slices.Index(members, client)
	if i < 0 {
		h.mu.Unlock()
		return
	}

	members = slices.Delete(members, i, i+1)
	if len(members) == 0 {
		delete(h.rooms, room)
	} else {
		h.rooms[room] = members
	}
	count := len(members)
	h.metrics.SetLive(room, count)
	h.mu.Unlock()

	h.log.Debug("ws.unregister", "room", room, "client", client.ID, "members", count)
}

// Members возвращает копию состава комнаты
func (h *Hub) Members(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]*Client, len(h.rooms[room]))
	copy(members, h.rooms[room])
	return members
}

func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Stop останавливает hub и закрывает всех клиентов
func (h *Hub) Stop() {
	h.mu.Lock()
	h.cancel()
	rooms := h.rooms
	h.rooms = make(map[string][]*Client)
	for room := range rooms {
		h.metrics.SetLive(room, 0)
	}
	h.mu.Unlock()

	closed := 0
	for _, members := range rooms {
		for _, client := range members {
			client.Close()
			closed++
		}
	}

	h.log.Info("ws.hub.stopped", "closed", closed)
}
