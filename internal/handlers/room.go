package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/thereayou/room-relay/internal/handlers/dto"
	"github.com/thereayou/room-relay/internal/models"
	"github.com/thereayou/room-relay/internal/services"
	ws "github.com/thereayou/room-relay/internal/websocket"
)

type RoomHandler struct {
	rooms *services.RoomCatalog
	hub   *ws.Hub
}

func NewRoomHandler(rooms *services.RoomCatalog, hub *ws.Hub) *RoomHandler {
	return &RoomHandler{rooms: rooms, hub: hub}
}

// ListRooms возвращает все комнаты с числом подключенных клиентов
func (h *RoomHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, lo.Map(h.rooms.All(), func(r models.Room, _ int) dto.RoomResponse {
		return dto.RoomResponse{
			Name:        r.Name,
			Description: r.Description,
			Online:      h.hub.Count(r.Name),
		}
	}))
}
