// Package webui serves the single-page chat client and the JSON API the
// page drives: session creation, message turns, settings, and the
// analytics panel.
package webui

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/remacdev/chatbot/pkg/chat"
	"github.com/remacdev/chatbot/pkg/config"
	"github.com/remacdev/chatbot/pkg/llm"
	"github.com/remacdev/chatbot/pkg/runlog"
	"github.com/remacdev/chatbot/pkg/tokens"
)

// Server owns the fiber app and the chat runner behind it.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	runner   *chat.Runner
	sessions *chat.Manager
	app      *fiber.App
}

// New creates a new Server and registers every route.
func New(cfg *config.Config, logger *zap.Logger) *Server {
	runner := chat.NewRunner(chat.RunnerConfig{
		Endpoint:  cfg.Endpoint,
		Model:     cfg.Model,
		MaxTokens: cfg.NPredict,
		Client:    llm.NewClient(llm.WithLogger(logger)),
		RunLog: runlog.New(runlog.Config{
			URL:     cfg.LangSmith.URL,
			APIKey:  cfg.LangSmith.APIKey,
			Project: cfg.LangSmith.Project,
			AppURL:  cfg.AppURL,
			Logger:  logger,
		}),
		Tokens: tokens.NewCounter(),
		Logger: logger,
	})

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		runner:   runner,
		sessions: chat.NewManager(cfg.DefaultSettings()),
		app:      app,
	}

	app.Use(requestID())
	app.Use(requestLogger(logger))

	app.Get("/", s.handleIndex)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/config", s.handleUIConfig)
	api.Post("/sessions", s.handleCreateSession)
	api.Get("/sessions/:id/messages", s.handleListMessages)
	api.Post("/sessions/:id/messages", s.handlePostMessage)
	api.Patch("/sessions/:id/settings", s.handleUpdateSettings)
	api.Get("/sessions/:id/analytics", s.handleAnalytics)
	api.Post("/sessions/:id/analytics/reset", s.handleResetAnalytics)

	return s
}

// Run starts serving on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting web UI",
		zap.String("listen", s.cfg.Listen),
		zap.String("endpoint", s.cfg.Endpoint),
		zap.String("model", s.cfg.Model),
	)
	if reason := s.cfg.ChatDisabledReason(); reason != "" {
		s.logger.Warn("chat disabled", zap.String("reason", reason))
	}
	return s.app.Listen(s.cfg.Listen)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
