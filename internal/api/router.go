package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/api/handlers"
	"github.com/healthbot/backend/internal/auth"
	"github.com/healthbot/backend/internal/metrics"
	"github.com/healthbot/backend/internal/middleware/ratelimit"
	"github.com/healthbot/backend/internal/middleware/security"
	"github.com/healthbot/backend/internal/middleware/validation"
)

type ServerConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
	RequestLogs    bool
}

// Handlers bundles everything the router mounts. Nil handlers leave their routes unmounted.
type Handlers struct {
	Tokens      *auth.Tokens
	RateLimiter *ratelimit.RateLimiter
	Logger      *zap.Logger

	System      *handlers.SystemHandler
	Auth        *handlers.AuthHandler
	Chat        *handlers.ChatHandler
	ChatSocket  *handlers.WebSocketHandler
	Knowledge   *handlers.KnowledgeHandler
	Appointment *handlers.AppointmentHandler
	Emergency   *handlers.EmergencyHandler
	Documents   *handlers.DocumentHandler
	Query       *handlers.QueryHandler
}

func NewApp(cfg ServerConfig, h Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BodyLimit:    cfg.BodyLimit,
	})

	app.Use(recover.New())
	if cfg.RequestLogs {
		app.Use(fiberlogger.New())
	}

	allowOrigins := "*"
	if len(cfg.AllowedOrigins) > 0 {
		allowOrigins = strings.Join(cfg.AllowedOrigins, ", ")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		IsDevelopment:  cfg.Development,
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	if h.RateLimiter != nil {
		api.Use(h.RateLimiter.Middleware())
	}
	api.Use(validation.Middleware(validation.Config{Logger: h.Logger}))

	if h.System != nil {
		api.Get("/health", h.System.Health)
		api.Get("/ready", h.System.Ready)
		api.Get("/status", h.System.Status)
	}

	if h.Knowledge != nil {
		api.Get("/knowledge/topics", h.Knowledge.ListTopics)
		api.Get("/knowledge/topics/:topic", h.Knowledge.ListQuestions)
		api.Post("/knowledge/lookup", h.Knowledge.Lookup)
	}

	if h.Chat != nil {
		chat := api.Group("/chat/sessions")
		chat.Post("/", h.Chat.OpenSession)
		chat.Get("/:id", h.Chat.GetSession)
		chat.Delete("/:id", h.Chat.CloseSession)
		chat.Post("/:id/messages", h.Chat.SendMessage)
		if h.ChatSocket != nil {
			chat.Get("/:id/ws", h.ChatSocket.Upgrade, websocket.New(h.ChatSocket.HandleConnection))
		}
	}

	if h.Emergency != nil {
		api.Get("/emergency/contacts", h.Emergency.Contacts)
		api.Post("/emergency/reports", optionalAuth(h.Tokens), h.Emergency.Submit)
	}

	if h.Appointment != nil {
		api.Get("/doctors", h.Appointment.ListDoctors)
	}

	if h.Auth != nil {
		api.Post("/auth/register", h.Auth.Register)
		api.Post("/auth/login", h.Auth.Login)
	}

	if h.Tokens == nil {
		return app
	}
	protected := auth.Middleware(h.Tokens)

	if h.Auth != nil {
		api.Get("/auth/me", protected, h.Auth.Me)
	}

	if h.Appointment != nil {
		api.Post("/appointments", protected, h.Appointment.Book)
		api.Get("/appointments", protected, h.Appointment.List)
		api.Post("/appointments/:id/cancel", protected, h.Appointment.Cancel)
	}

	if h.Emergency != nil {
		api.Get("/emergency/reports", protected, h.Emergency.List)
	}

	if h.Documents != nil {
		api.Post("/reports", protected, h.Documents.UploadReport)
		api.Get("/reports", protected, h.Documents.ListReports)
	}

	if h.Query != nil {
		api.Post("/reports/query", protected, h.Query.HandleQuery)
		api.Get("/reports/query/history", protected, h.Query.GetQueryHistory)
	}

	return app
}

// optionalAuth records the caller when a valid token is present and lets anonymous requests through.
func optionalAuth(tokens *auth.Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokens == nil || c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return auth.Middleware(tokens)(c)
	}
}
