package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agent-bridge/internal/dispatch"
	"agent-bridge/internal/notify"
	"agent-bridge/internal/storage"
)

// Config is the HTTP surface configuration. BridgeSecret, when set,
// gates /execute behind the X-Bridge-Secret header.
type Config struct {
	Addr         string
	BridgeSecret string
	DryRun       bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the inbound JSON surface of the bridge.
type Server struct {
	engine       *gin.Engine
	httpServer   *http.Server
	dispatcher   *dispatch.Dispatcher
	calendar     dispatch.CalendarService
	sheets       dispatch.SheetService
	notifier     *notify.Notifier
	store        storage.Storage
	logger       *zap.Logger
	dryRun       bool
	bridgeSecret string
}

func New(cfg Config, dispatcher *dispatch.Dispatcher, calendar dispatch.CalendarService, sheets dispatch.SheetService, notifier *notify.Notifier, store storage.Storage, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{
		engine:       engine,
		dispatcher:   dispatcher,
		calendar:     calendar,
		sheets:       sheets,
		notifier:     notifier,
		store:        store,
		logger:       logger,
		dryRun:       cfg.DryRun,
		bridgeSecret: cfg.BridgeSecret,
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/notes", s.handleListNotes)
	s.engine.POST("/intent/route", s.handleIntentRoute)
	s.engine.POST("/execute", s.requireBridgeSecret, s.handleExecute)
	s.engine.POST("/calendar/events", s.handleCreateEvent)
	s.engine.POST("/sheets/append", s.handleSheetsAppend)
	s.engine.POST("/notify", s.handleNotify)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requireBridgeSecret is the shared-secret guard between the voice
// assistant bridge (Lambda side) and this service.
func (s *Server) requireBridgeSecret(c *gin.Context) {
	if s.bridgeSecret == "" {
		return
	}
	if c.GetHeader("X-Bridge-Secret") != s.bridgeSecret {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
	}
}
