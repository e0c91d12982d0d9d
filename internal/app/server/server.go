package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chess-vn/rpsarena/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	shutdownTimeout     = 10 * time.Second
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type server struct {
	address  string
	upgrader websocket.Upgrader

	config     Config
	registry   *Registry
	dispatcher *Dispatcher
	history    RoundHistory
}

// NewServer wires the registry and dispatcher. history may be nil, in which
// case resolved rounds are not recorded.
func NewServer(cfg Config, history RoundHistory) *server {
	var recorder RoundRecorder
	if history != nil {
		recorder = history
	}
	registry := NewRegistry(cfg.Game, recorder)
	return &server{
		address: "0.0.0.0:" + cfg.Port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Origin checking is handled by middleware
			},
		},
		config:     cfg,
		registry:   registry,
		dispatcher: NewDispatcher(registry, cfg.Game),
		history:    history,
	}
}

func (s *server) Router() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(originFilter(s.config.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"rooms":  s.registry.Len(),
		})
	})
	router.GET("/rooms/:code", s.getRoom)
	router.GET("/rooms/:code/history", s.getRoomHistory)
	router.GET("/ws", jwtAuth(s.config.JwtSecret), s.handleWebSocket)
	return router
}

// Start serves until ctx is cancelled, then closes every room and drains
// the listener.
func (s *server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info("websocket server started", zap.String("port", s.config.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.registry.Close(shutdownCtx); err != nil {
		logging.Warn("rooms did not close in time", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) handleWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	conn := newConnection(ws, s.config.Conn)
	logging.Info("player connected",
		zap.String("conn_id", conn.id),
		zap.String("remote_address", conn.remoteAddress()),
		zap.String("user_id", c.GetString("user_id")),
	)
	go conn.writePump()
	conn.readPump(s.dispatcher)
}

func (s *server) getRoom(c *gin.Context) {
	room, ok := s.registry.Lookup(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	snap, err := room.Snapshot()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *server) getRoomHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Round history is disabled"})
		return
	}
	room, ok := s.registry.Lookup(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	records, err := s.history.FetchRoundRecords(
		c.Request.Context(),
		room.ID(),
		int32(limit),
	)
	if err != nil {
		logging.Error("failed to fetch round history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch round history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": records})
}
