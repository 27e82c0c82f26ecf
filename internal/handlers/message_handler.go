package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/thereayou/room-relay/internal/handlers/dto"
	"github.com/thereayou/room-relay/internal/metrics"
	"github.com/thereayou/room-relay/internal/models"
	"github.com/thereayou/room-relay/internal/services"
	"github.com/thereayou/room-relay/internal/websocket"
)

const defaultMaxContentLength = 4096

// MessageHandler принимает сообщение одного клиента, сохраняет его
// и рассылает всем живым участникам комнаты, включая отправителя.
type MessageHandler struct {
	store   services.MessageStore
	rooms   *services.RoomCatalog
	hub     *websocket.Hub
	bus     websocket.Bus
	metrics *metrics.Metrics
	log     *slog.Logger

	validate         *validator.Validate
	maxContentLength int
}

type MessageHandlerOption func(*MessageHandler)

// WithBus включает пересылку принятых сообщений другим экземплярам
func WithBus(bus websocket.Bus) MessageHandlerOption {
	return func(h *MessageHandler) { h.bus = bus }
}

func WithMetrics(m *metrics.Metrics) MessageHandlerOption {
	return func(h *MessageHandler) { h.metrics = m }
}

func WithMaxContentLength(n int) MessageHandlerOption {
	return func(h *MessageHandler) {
		if n > 0 {
			h.maxContentLength = n
		}
	}
}

func NewMessageHandler(store services.MessageStore, rooms *services.RoomCatalog, hub *websocket.Hub, log *slog.Logger, opts ...MessageHandlerOption) *MessageHandler {
	h := &MessageHandler{
		store:            store,
		rooms:            rooms,
		hub:              hub,
		log:              log,
		validate:         validator.New(),
		maxContentLength: defaultMaxContentLength,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type deliveryResult struct {
	client *websocket.Client
	err    error
}

// Handle проводит один цикл: проверка комнаты, запись, рассылка, чистка.
// Ошибки неудачной доставки отправителю не возвращаются.
func (h *MessageHandler) Handle(ctx context.Context, room string, sender *websocket.Client, author, content string, kind models.MessageKind) (models.Message, error) {
	if !h.rooms.Exists(room) {
		return models.Message{}, services.ErrRoomNotFound
	}

	message, err := h.store.Append(ctx, room, author, content, kind)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			return models.Message{}, err
		}
		h.metrics.PersistFailed(room)
		return models.Message{}, fmt.Errorf("%w: %v", services.ErrPersistence, err)
	}
	h.metrics.Persisted(room)

	frame, err := json.Marshal(dto.NewMessageResponse(message))
	if err != nil {
		h.log.Error("broadcast.encode", "room", room, "err", err)
		return message, nil
	}

	results := h.fanout(room, frame)
	h.log.Debug("broadcast.done",
		"room", room,
		"sender", senderID(sender),
		"members", len(results),
		"message", message.ID,
	)

	if h.bus != nil {
		if err := h.bus.Publish(ctx, room, frame); err != nil {
			h.metrics.BusPublishFailed()
			h.log.Warn("bus.publish", "room", room, "err", err)
		}
	}

	return message, nil
}

// Relay рассылает локальным участникам сообщение, сохранённое другим экземпляром
func (h *MessageHandler) Relay(room string, frame []byte) {
	if !h.rooms.Exists(room) {
		h.log.Warn("bus.unknown_room", "room", room)
		return
	}
	h.fanout(room, frame)
}

func (h *MessageHandler) fanout(room string, frame []byte) []deliveryResult {
	members := h.hub.Members(room)

	results := make([]deliveryResult, len(members))
	for i, client := range members {
		results[i] = deliveryResult{client: client, err: client.Deliver(frame)}
	}

	h.prune(room, results)
	return results
}

// prune убирает из комнаты всех, кому не удалось доставить сообщение
func (h *MessageHandler) prune(room string, results []deliveryResult) {
	for _, r := range results {
		if r.err == nil {
			continue
		}
		h.hub.Unregister(room, r.client)
		r.client.Close()
		h.metrics.DeliveryFailed(room)
		h.log.Info("broadcast.prune", "room", room, "client", r.client.ID, "err", r.err)
	}
}

// HandleMessage разбирает кадр клиента и передаёт его в Handle
func (h *MessageHandler) HandleMessage(ctx context.Context, client *websocket.Client, frame []byte) error {
	var in dto.InboundMessage
	if err := json.Unmarshal(frame, &in); err != nil {
		h.metrics.ProtocolError()
		return fmt.Errorf("%w: %v", websocket.ErrInvalidMessage, err)
	}

	in = in.WithDefaults()
	if err := h.validateInbound(in); err != nil {
		h.metrics.ProtocolError()
		return fmt.Errorf("%w: %v", websocket.ErrInvalidMessage, err)
	}

	_, err := h.Handle(ctx, client.Room, client, in.Author, in.Content, in.Kind)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrRoomNotFound):
		client.SendError(services.ErrRoomNotFound.Error())
		return nil
	case errors.Is(err, services.ErrPersistence):
		h.log.Error("broadcast.persist", "room", client.Room, "err", err)
		client.SendError(services.ErrPersistence.Error())
		return nil
	default:
		client.SendError("internal error")
		return err
	}
}

func (h *MessageHandler) validateInbound(in dto.InboundMessage) error {
	if err := h.validate.Struct(in); err != nil {
		return err
	}
	if err := h.validate.Var(in.Content, "max="+strconv.Itoa(h.maxContentLength)); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if in.Kind.IsMedia() {
		if err := h.validate.Var(in.Content, "required,url"); err != nil {
			return fmt.Errorf("%s content must be a url: %w", in.Kind, err)
		}
	}
	return nil
}

func senderID(c *websocket.Client) string {
	if c == nil {
		return ""
	}
	return c.ID.String()
}
