package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	defaultWriteWait = 10 * time.Second

	// Время ожидания pong от клиента
	defaultPongWait = 60 * time.Second

	// Максимальный размер входящего кадра
	defaultMaxMessageSize = 512 * 1024 // 512KB

	defaultSendBuffer = 256
)

type ClientOptions struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		SendBuffer:     defaultSendBuffer,
		MaxMessageSize: defaultMaxMessageSize,
		WriteWait:      defaultWriteWait,
		PongWait:       defaultPongWait,
	}
}

// Интервал отправки ping
func (o ClientOptions) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// ClientMessageHandler обрабатывает один входящий кадр. Ошибка, обёрнутая
// в ErrInvalidMessage, закрывает соединение; остальные только логируются.
type ClientMessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, frame []byte) error
}

// Client - одно живое соединение, привязанное к одной комнате на всё время жизни
type Client struct {
	ID   uuid.UUID
	Room string
	Conn *websocket.Conn
	Hub  *Hub

	send   chan []byte
	mu     sync.RWMutex
	closed bool

	opts ClientOptions
	log  *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, room string, opts ClientOptions, log *slog.Logger) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	id := uuid.New()
	return &Client{
		ID:   id,
		Room: room,
		Conn: conn,
		Hub:  hub,
		send: make(chan []byte, opts.SendBuffer),
		opts: opts,
		log:  log.With("client", id, "room", room),
	}
}

// Deliver ставит готовый кадр в очередь отправки, не блокируясь.
// Закрытый клиент и переполненная очередь - неудачная доставка.
func (c *Client) Deliver(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return ErrClientQueueFull
	}
}

// Close закрывает очередь отправки; WritePump отправит close-кадр и закроет сокет.
// Можно вызывать повторно.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) SendError(errorMsg string) {
	data, err := json.Marshal(map[string]string{"error": errorMsg})
	if err != nil {
		return
	}
	if err := c.Deliver(data); err != nil {
		c.log.Debug("ws.error_frame.dropped", "err", err)
	}
}

// ReadPump читает кадры клиента, пока соединение живо.
// При выходе клиент удаляется из комнаты и закрывается.
func (c *Client) ReadPump(handler ClientMessageHandler) {
	defer func() {
		c.Hub.Unregister(c.Room, c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.opts.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	ctx := c.Hub.Context()
	for {
		typ, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("ws.read", "err", err)
			} else {
				c.log.Debug("ws.disconnect", "err", err)
			}
			return
		}

		if typ != websocket.TextMessage {
			c.closeWithError(websocket.CloseUnsupportedData, "text frames only")
			return
		}

		if err := handler.HandleMessage(ctx, c, frame); err != nil {
			if errors.Is(err, ErrInvalidMessage) {
				c.log.Info("ws.protocol_error", "err", err)
				c.closeWithError(websocket.ClosePolicyViolation, ErrInvalidMessage.Error())
				return
			}
			c.log.Warn("ws.handle", "err", err)
		}
	}
}

// closeWithError отправляет close-кадр; WriteControl можно вызывать параллельно с WritePump
func (c *Client) closeWithError(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait)); err != nil {
		c.log.Debug("ws.close_frame", "err", err)
	}
}

// WritePump отправляет сообщения клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				// очередь закрыта
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("ws.write", "err", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
