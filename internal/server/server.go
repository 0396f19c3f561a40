package server

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/auth"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/cache"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/config"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/database"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/handler"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/hub"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/membership"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/whiteboard"
)

// Server wraps the Fiber app and wires handlers, middleware, and the
// collaboration socket together.
type Server struct {
	app               *fiber.App
	cfg               *config.Config
	db                *gorm.DB
	log               *zap.SugaredLogger
	hub               *hub.Hub
	jwtManager        *auth.JWTManager
	whiteboardHandler *handler.WhiteboardHandler
	activityHandler   *handler.ActivityHandler
}

// New builds the server. mirror may be nil when Redis is not configured.
func New(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, h *hub.Hub, canvas *whiteboard.Service, oracle membership.Oracle, mirror *cache.Mirror) *Server {
	app := fiber.New(fiber.Config{
		AppName:         "Elevare Collaboration Hub",
		ServerHeader:    "Fiber",
		StrictRouting:   true,
		CaseSensitive:   true,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		Prefork:         false, // incompatible with websockets
		ReadBufferSize:  16384,
		WriteBufferSize: 16384,
	})

	return &Server{
		app:               app,
		cfg:               cfg,
		db:                db,
		log:               log,
		hub:               h,
		jwtManager:        auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry),
		whiteboardHandler: handler.NewWhiteboardHandler(canvas, oracle, h, log),
		activityHandler:   handler.NewActivityHandler(mirror, h, oracle, log),
	}
}

// SetupMiddleware installs panic recovery, request logging, and CORS.
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes registers REST endpoints and the collaboration socket.
func (s *Server) SetupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		if err := database.Ping(s.db); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Whiteboard REST routes
	boardGroup := s.app.Group("/api/whiteboards", auth.Middleware(s.jwtManager))
	boardGroup.Post("/", s.whiteboardHandler.CreateWhiteboard)
	boardGroup.Get("/:id", s.whiteboardHandler.GetWhiteboard)
	boardGroup.Put("/:id/elements", s.whiteboardHandler.StoreElements)
	boardGroup.Get("/:id/history", s.whiteboardHandler.GetHistory)
	boardGroup.Post("/:id/snapshots", s.whiteboardHandler.CreateSnapshot)
	boardGroup.Post("/:id/autosave", s.whiteboardHandler.AutoSave)
	boardGroup.Post("/:id/restore", s.whiteboardHandler.RestoreVersion)
	boardGroup.Get("/:id/export", s.whiteboardHandler.ExportCanvas)

	// Activity and call roster routes
	s.app.Get("/api/groups/:id/activity", auth.Middleware(s.jwtManager), s.activityHandler.GetGroupActivity)
	s.app.Get("/api/calls/:id/participants", auth.Middleware(s.jwtManager), s.activityHandler.GetCallParticipants)

	// Collaboration socket. The token rides the access_token cookie or a
	// query parameter; browsers cannot set headers on websocket upgrades.
	s.app.Get("/ws/collab", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Cookies("access_token")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		claims, err := s.jwtManager.ValidateAccessToken(token)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		c.Locals("userID", claims.UserID)
		c.Locals("nickname", claims.Nickname)
		return c.Next()
	}, websocket.New(func(ws *websocket.Conn) {
		userID := ws.Locals("userID").(int64)
		nickname, _ := ws.Locals("nickname").(string)
		s.hub.ServeConn(ws, userID, nickname)
	}, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start runs the server until SIGINT/SIGTERM, then drains connections.
func (s *Server) Start() error {
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		s.log.Infof("[Server] shutdown signal received")
		s.hub.Stop()
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			s.log.Errorf("[Server] shutdown error: %v", err)
		}
	}()

	s.log.Infof("[Server] listening on %s", s.cfg.Server.Port)
	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown stops the server without waiting for a signal.
func (s *Server) Shutdown() error {
	s.hub.Stop()
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
