// Package server is the HTTP surface of the matching service, built on
// Fiber. Handlers stay thin: request parsing, error mapping, and the calls
// into the domain packages.
package server

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"scholarswipe/internal/common/config"
	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/common/logger"
)

// Deps are the wired domain services the handlers call into.
type Deps struct {
	Matches  MatchService
	Sessions SessionService
	Search   SearchService
	Feedback FeedbackService
	Health   HealthChecker
}

type Server struct {
	App    *fiber.App
	cfg    *config.Config
	logger logger.Logger
}

func New(cfg *config.Config, deps Deps, log logger.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
		ErrorHandler: func(c fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			stdErr := errors.Normalize(err)
			return c.Status(stdErr.HTTPStatus()).JSON(fiber.Map{
				"error": stdErr.PublicMessage(),
			})
		},
	})

	app.Use(recover.New())

	if cfg.Server.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Split(cfg.Server.CORSOrigins, ","),
			AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		}))
	}

	if cfg.Server.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.Server.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Rate limit exceeded. Please try again later.",
				})
			},
		}))
	}

	s := &Server{
		App:    app,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "server"}),
	}
	s.registerRoutes(deps)

	return s
}

func (s *Server) registerRoutes(deps Deps) {
	h := newHandlers(deps, s.logger)

	api := s.App.Group("/api")
	api.Post("/matches", h.Matches)
	api.Post("/swipes", h.Swipe)
	api.Get("/session/:userId", h.GetSession)
	api.Delete("/session/:userId", h.DeleteSession)
	api.Get("/search", h.Search)
	api.Post("/feedback", h.Feedback)

	s.App.Get("/healthz", h.Healthz)
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"address": s.cfg.Server.Address,
	})
	return s.App.Listen(s.cfg.Server.Address)
}

func (s *Server) Shutdown() error {
	return s.App.Shutdown()
}
