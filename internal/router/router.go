package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/crisiscoach-go-api/internal/config"
	"github.com/noah-isme/crisiscoach-go-api/internal/handler"
	"github.com/noah-isme/crisiscoach-go-api/internal/middleware"
	"github.com/noah-isme/crisiscoach-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluateHandler *handler.EvaluateHandler
	CategoryHandler *handler.CategoryHandler
	QuizHandler     *handler.QuizHandler
	ProgressHandler *handler.ProgressHandler
	HealthChecks    map[string]handler.HealthCheckFunc
	JWTMiddleware   fiber.Handler
	// RateLimiter overrides the per-user limiter on answer submissions.
	RateLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.RateLimit("answers", cfg.RateLimitPerMinute, time.Minute)
	}

	if deps.EvaluateHandler != nil {
		deps.EvaluateHandler.Register(api, jwtMiddleware, limiter)
	}

	v2 := app.Group("/api/v2", jwtMiddleware)

	if deps.CategoryHandler != nil {
		deps.CategoryHandler.Register(v2.Group("/categories"))
	}

	if deps.QuizHandler != nil {
		deps.QuizHandler.Register(v2.Group("/quiz/sessions"), limiter)
	}

	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(v2)
	}
}
