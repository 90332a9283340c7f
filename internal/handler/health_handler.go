package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/crisiscoach-go-api/internal/config"
	"github.com/noah-isme/crisiscoach-go-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// HealthCheckFunc probes one dependency.
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck returns a handler that reports application health. Failing
// dependency checks mark the status degraded; the HTTP status stays 200.
func HealthCheck(cfg config.Config, checks map[string]HealthCheckFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if len(checks) > 0 {
			ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
			defer cancel()

			payload.Checks = make(map[string]string, len(checks))
			for name, check := range checks {
				if err := check(ctx); err != nil {
					payload.Checks[name] = "down"
					payload.Status = "degraded"
					continue
				}
				payload.Checks[name] = "up"
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
