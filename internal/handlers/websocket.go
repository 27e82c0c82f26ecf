package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/thereayou/room-relay/internal/services"
	ws "github.com/thereayou/room-relay/internal/websocket"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub            *ws.Hub
	messageHandler *MessageHandler
	rooms          *services.RoomCatalog
	upgrader       websocket.Upgrader
	opts           ws.ClientOptions
	log            *slog.Logger
}

// NewWebSocketHandler создает новый WebSocket handler.
// allowedOrigins со значением "*" пропускает любой Origin.
func NewWebSocketHandler(hub *ws.Hub, messageHandler *MessageHandler, rooms *services.RoomCatalog, allowedOrigins []string, opts ws.ClientOptions, log *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		messageHandler: messageHandler,
		rooms:          rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		opts: opts,
		log:  log,
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || lo.Contains(allowed, "*") {
			return true
		}
		return lo.Contains(allowed, origin)
	}
}

// HandleWebSocket подключает клиента к комнате из пути и обслуживает его до отключения
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	room := c.Param("room")
	if !h.rooms.Exists(room) {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrRoomNotFound.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		h.log.Debug("ws.upgrade", "room", room, "err", err)
		return
	}

	client := ws.NewClient(h.hub, conn, room, h.opts, h.log)
	h.hub.Register(room, client)

	go client.WritePump()
	client.ReadPump(h.messageHandler)
}
