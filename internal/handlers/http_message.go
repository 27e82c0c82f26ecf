package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/thereayou/room-relay/internal/handlers/dto"
	"github.com/thereayou/room-relay/internal/models"
	"github.com/thereayou/room-relay/internal/services"
)

type HTTPMessageHandler struct {
	store services.MessageStore
	rooms *services.RoomCatalog
	log   *slog.Logger
}

func NewHTTPMessageHandler(store services.MessageStore, rooms *services.RoomCatalog, log *slog.Logger) *HTTPMessageHandler {
	return &HTTPMessageHandler{store: store, rooms: rooms, log: log}
}

// GetRoomMessages получает историю сообщений комнаты в порядке записи
func (h *HTTPMessageHandler) GetRoomMessages(c *gin.Context) {
	room := c.Param("room")
	if !h.rooms.Exists(room) {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrRoomNotFound.Error()})
		return
	}

	messages, err := h.store.History(c.Request.Context(), room)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": services.ErrRoomNotFound.Error()})
			return
		}
		h.log.Error("history.load", "room", room, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, lo.Map(messages, func(m models.Message, _ int) dto.MessageResponse {
		return dto.NewMessageResponse(m)
	}))
}
