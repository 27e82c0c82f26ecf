package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/room-relay/internal/database"
	"github.com/thereayou/room-relay/internal/handlers/dto"
	"github.com/thereayou/room-relay/internal/services"
	ws "github.com/thereayou/room-relay/internal/websocket"
)

type relayFixture struct {
	store services.MessageStore
	hub   *ws.Hub
	srv   *httptest.Server
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.DiscardHandler)

	store, err := database.OpenBadger(t.TempDir(), log)
	require.NoError(t, err)

	rooms, err := services.LoadRoomCatalog(context.Background(), store, []string{"General", "Frontend", "Backend"})
	require.NoError(t, err)

	hub := ws.NewHub(log, nil)
	msgH := NewMessageHandler(store, rooms, hub, log)
	wsH := NewWebSocketHandler(hub, msgH, rooms, []string{"*"}, ws.DefaultClientOptions(), log)

	r := gin.New()
	r.GET("/chat/ws/:room", wsH.HandleWebSocket)
	r.GET("/chat/rooms", NewRoomHandler(rooms, hub).ListRooms)
	r.GET("/chat/rooms/:room/messages", NewHTTPMessageHandler(store, rooms, log).GetRoomMessages)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
		_ = store.Close()
	})

	return &relayFixture{store: store, hub: hub, srv: srv}
}

func (f *relayFixture) dial(t *testing.T, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/chat/ws/" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *relayFixture) waitMembers(t *testing.T, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.hub.Count(room) == n }, 2*time.Second, 10*time.Millisecond)
}

func send(t *testing.T, conn *websocket.Conn, in dto.InboundMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(in))
}

func receive(t *testing.T, conn *websocket.Conn) map[string]string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]string
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestGateway_BothMembersReceiveAndHistoryEndsWithRecord(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	a := f.dial(t, "General")
	b := f.dial(t, "General")
	f.waitMembers(t, "General", 2)

	send(t, a, dto.InboundMessage{Author: "alice", Content: "hi", Kind: "text"})

	fromA := receive(t, a)
	fromB := receive(t, b)
	req.Equal(fromA, fromB)
	req.Equal("alice", fromA["author"])
	req.Equal("hi", fromA["content"])
	req.Equal("text", fromA["kind"])

	ts, err := time.Parse(dto.TimestampLayout, fromA["timestamp"])
	req.NoError(err)

	history, err := f.store.History(context.Background(), "General")
	req.NoError(err)
	req.NotEmpty(history)
	tail := history[len(history)-1]
	req.Equal("alice", tail.Author)
	req.Equal("hi", tail.Content)
	req.True(ts.Equal(tail.CreatedAt))
}

func TestGateway_ClosedMemberIsRemoved(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	a := f.dial(t, "General")
	b := f.dial(t, "General")
	f.waitMembers(t, "General", 2)

	req.NoError(b.Close())
	f.waitMembers(t, "General", 1)

	send(t, a, dto.InboundMessage{Author: "alice", Content: "still here", Kind: "text"})
	req.Equal("still here", receive(t, a)["content"])

	members := f.hub.Members("General")
	req.Len(members, 1)
}

func TestGateway_UnknownRoom(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/chat/ws/Nonexistent"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusNotFound, resp.StatusCode)

	_, err = f.store.History(context.Background(), "Nonexistent")
	req.ErrorIs(err, services.ErrRoomNotFound)
	req.Empty(f.hub.Members("Nonexistent"))
}

func TestGateway_ProtocolErrorClosesOnlyOffender(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	a := f.dial(t, "General")
	bad := f.dial(t, "General")
	f.waitMembers(t, "General", 2)

	req.NoError(bad.WriteMessage(websocket.TextMessage, []byte("not json")))

	req.NoError(bad.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := bad.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)

	f.waitMembers(t, "General", 1)

	send(t, a, dto.InboundMessage{Author: "alice", Content: "unaffected", Kind: "text"})
	req.Equal("unaffected", receive(t, a)["content"])
}

func TestGateway_BinaryFrameRejected(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	conn := f.dial(t, "Frontend")
	f.waitMembers(t, "Frontend", 1)

	req.NoError(conn.WriteMessage(websocket.BinaryMessage, []byte{0x1}))
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := conn.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseUnsupportedData), "got %v", err)
	f.waitMembers(t, "Frontend", 0)
}

func TestHistoryRoute(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)
	ctx := context.Background()

	_, err := f.store.Append(ctx, "Backend", "alice", "first", "text")
	req.NoError(err)
	_, err = f.store.Append(ctx, "Backend", "bob", "https://example.com/a.mp3", "audio")
	req.NoError(err)

	resp, err := http.Get(f.srv.URL + "/chat/rooms/Backend/messages")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var got []dto.MessageResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&got))
	req.Len(got, 2)
	req.Equal("first", got[0].Content)
	req.Equal("bob", got[1].Author)
	req.EqualValues("audio", got[1].Kind)

	resp, err = http.Get(f.srv.URL + "/chat/rooms/Nonexistent/messages")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestHistoryRoute_EmptyRoomIsArray(t *testing.T) {
	f := newRelayFixture(t)

	resp, err := http.Get(f.srv.URL + "/chat/rooms/Frontend/messages")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []dto.MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestRoomsRoute(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	f.dial(t, "Frontend")
	f.waitMembers(t, "Frontend", 1)

	resp, err := http.Get(f.srv.URL + "/chat/rooms")
	req.NoError(err)
	defer resp.Body.Close()

	var got []dto.RoomResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&got))
	req.Equal([]dto.RoomResponse{
		{Name: "General", Online: 0},
		{Name: "Frontend", Online: 1},
		{Name: "Backend", Online: 0},
	}, got)
}
