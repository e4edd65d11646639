package server

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"courseboard-backend/internal/auth"
	"courseboard-backend/internal/config"
	"courseboard-backend/internal/handler"
	"courseboard-backend/internal/hub"
	"courseboard-backend/internal/presence"
	"courseboard-backend/internal/service"
	"courseboard-backend/internal/store"
)

// Server wires the Fiber app to the whiteboard engine.
type Server struct {
	app            *fiber.App
	cfg            *config.Config
	db             *gorm.DB
	hub            *hub.Hub
	sessionHandler *handler.SessionHandler
	wsHandler      *handler.WhiteboardWSHandler
	healthHandler  *handler.HealthHandler
	jwtManager     *auth.JWTManager
}

// New creates a server instance. The presence manager may be nil when Redis
// is not configured; presence features degrade to in-process counts.
func New(cfg *config.Config, db *gorm.DB, pres *presence.Manager) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Courseboard Realtime Whiteboard",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // incompatible with WebSocket rooms
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             4 * 1024 * 1024,
		DisableStartupMessage: false,
	})

	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	sessionStore := store.NewGormStore(db)
	members := service.NewMembershipService(db)
	gate := service.NewGate(members, cfg.Whiteboard.ClearRequiresManage)
	roomHub := hub.New()

	return &Server{
		app:            app,
		cfg:            cfg,
		db:             db,
		hub:            roomHub,
		sessionHandler: handler.NewSessionHandler(sessionStore, members, gate, roomHub, pres),
		wsHandler:      handler.NewWhiteboardWSHandler(sessionStore, members, gate, roomHub, pres, cfg.Whiteboard),
		healthHandler:  handler.NewHealthHandler(db, pres),
		jwtManager:     jwtManager,
	}
}

// SetupMiddleware installs the global middleware chain.
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PATCH, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes registers the REST API, the health probes, and the whiteboard
// WebSocket endpoint.
func (s *Server) SetupRoutes() {
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/livez", s.healthHandler.Liveness)
	s.app.Get("/readyz", s.healthHandler.Readiness)

	courseGroup := s.app.Group("/api/courses", auth.AuthMiddleware(s.jwtManager))
	courseGroup.Post("/:courseId/whiteboards", s.sessionHandler.CreateSession)
	courseGroup.Get("/:courseId/whiteboards", s.sessionHandler.ListCourseSessions)

	wbGroup := s.app.Group("/api/whiteboards", auth.AuthMiddleware(s.jwtManager))
	wbGroup.Get("/:id", s.sessionHandler.GetSession)
	wbGroup.Patch("/:id", s.sessionHandler.UpdateSession)
	wbGroup.Delete("/:id", s.sessionHandler.DeleteSession)
	wbGroup.Get("/:id/strokes", s.sessionHandler.ListStrokes)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// The token is parsed here but not enforced: rejections happen inside
	// the handler as protocol close codes, which browser clients can read.
	s.app.Get("/ws/whiteboard/:sessionId", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		if token := auth.TokenFromRequest(c); token != "" {
			if claims, err := s.jwtManager.ValidateAccessToken(token); err == nil {
				c.Locals("userId", claims.UserID)
			}
		}
		c.Locals("sessionId", c.Params("sessionId"))

		return c.Next()
	}, websocket.New(s.wsHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:   s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  s.cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout: s.cfg.WebSocket.HandshakeTimeout,
	}))
}

// Start runs the server with graceful shutdown on SIGINT/SIGTERM.
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Courseboard whiteboard server starting on %s", s.cfg.Server.Port)
	log.Printf("WebSocket endpoint: ws://localhost%s/ws/whiteboard/:sessionId", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
