package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/thereayou/room-relay/internal/config"
	"github.com/thereayou/room-relay/internal/database"
	"github.com/thereayou/room-relay/internal/handlers"
	"github.com/thereayou/room-relay/internal/metrics"
	"github.com/thereayou/room-relay/internal/services"
	"github.com/thereayou/room-relay/internal/websocket"
)

type Server struct {
	Router  *gin.Engine
	Store   services.MessageStore
	Rooms   *services.RoomCatalog
	Hub     *websocket.Hub
	Bus     websocket.Bus
	Metrics *metrics.Metrics

	MessageH *handlers.MessageHandler
	WSH      *handlers.WebSocketHandler
	HistoryH *handlers.HTTPMessageHandler
	RoomH    *handlers.RoomHandler

	cfg config.Config
	log *slog.Logger
}

// NewServer открывает хранилище, засевает комнаты и собирает обработчики
func NewServer(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	store, err := openStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("store open failed: %w", err)
	}

	s, err := newServer(ctx, cfg, log, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

func newServer(ctx context.Context, cfg config.Config, log *slog.Logger, store services.MessageStore) (*Server, error) {
	rooms, err := services.LoadRoomCatalog(ctx, store, cfg.SeedRooms)
	if err != nil {
		return nil, fmt.Errorf("rooms load failed: %w", err)
	}

	m := metrics.New(prometheus.NewRegistry())
	hub := websocket.NewHub(log, m)

	opts := []handlers.MessageHandlerOption{
		handlers.WithMetrics(m),
		handlers.WithMaxContentLength(cfg.MaxContentLength),
	}

	var bus websocket.Bus
	if cfg.RedisURL != "" {
		rb, err := websocket.NewRedisBus(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, fmt.Errorf("redis connect failed: %w", err)
		}
		bus = rb
		opts = append(opts, handlers.WithBus(bus))
	}

	msgH := handlers.NewMessageHandler(store, rooms, hub, log, opts...)
	clientOpts := websocket.ClientOptions{
		SendBuffer:     cfg.SendBufferSize,
		MaxMessageSize: int64(cfg.MaxMessageSize),
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
	}

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Store:    store,
		Rooms:    rooms,
		Hub:      hub,
		Bus:      bus,
		Metrics:  m,
		MessageH: msgH,
		WSH:      handlers.NewWebSocketHandler(hub, msgH, rooms, cfg.CORSAllow, clientOpts, log),
		HistoryH: handlers.NewHTTPMessageHandler(store, rooms, log),
		RoomH:    handlers.NewRoomHandler(rooms, hub),
		cfg:      cfg,
		log:      log,
	}
	s.Router = NewRouter(s)
	return s, nil
}

func openStore(cfg config.Config, log *slog.Logger) (services.MessageStore, error) {
	switch cfg.StoreDriver {
	case config.DriverBadger:
		return database.OpenBadger(cfg.BadgerPath, log)
	case config.DriverPostgres:
		return database.Connect(database.DriverPostgres, cfg.DatabaseURL, log)
	case config.DriverSQLite:
		return database.Connect(database.DriverSQLite, cfg.DatabaseURL, log)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// Handler - gin-роутер с CORS
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSAllow,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(s.Router)
}

// Run обслуживает запросы до отмены ctx, затем закрывает соединения и хранилище
func (s *Server) Run(ctx context.Context) error {
	if s.Bus != nil {
		go s.Bus.Subscribe(ctx, s.MessageH.Relay)
	}

	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("server.start", "addr", srv.Addr, "store", s.cfg.StoreDriver, "rooms", len(s.Rooms.All()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Info("server.shutdown")
	case runErr = <-errChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	// hijacked websocket-соединения Shutdown не ждёт, их закрывает hub
	s.Hub.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("server.shutdown", "err", err)
	}
	s.Close()

	return runErr
}

func (s *Server) Close() {
	if s.Bus != nil {
		if err := s.Bus.Close(); err != nil {
			s.log.Warn("bus.close", "err", err)
		}
	}
	if err := s.Store.Close(); err != nil {
		s.log.Warn("store.close", "err", err)
	}
}
