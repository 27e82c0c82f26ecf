package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/room-relay/internal/middleware"
)

func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.log))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	chat := r.Group("/chat")
	{
		chat.GET("/ws/:room", s.WSH.HandleWebSocket)
		chat.GET("/rooms", s.RoomH.ListRooms)
		chat.GET("/rooms/:room/messages", s.HistoryH.GetRoomMessages)
	}

	return r
}
