package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type correlationIDKey struct{}

var correlationKey = correlationIDKey{}

const maxCorrelationIDLength = 128

// CorrelationID ensures every request carries a correlation identifier. An
// incoming X-Correlation-ID or X-Request-ID is reused when it is well formed.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := sanitizeCorrelationID(c.Get("X-Correlation-ID"))
		if incoming == "" {
			incoming = sanitizeCorrelationID(c.Get("X-Request-ID"))
		}
		if incoming == "" {
			incoming = uuid.NewString()
		}

		c.Locals("correlation_id", incoming)
		c.Set("X-Correlation-ID", incoming)
		c.SetUserContext(ContextWithCorrelation(c.UserContext(), incoming))

		return c.Next()
	}
}

func sanitizeCorrelationID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxCorrelationIDLength {
		return ""
	}
	for _, r := range value {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return value
}

// ContextWithCorrelation binds a correlation identifier to ctx. Empty ids leave ctx unchanged.
func ContextWithCorrelation(ctx context.Context, id string) context.Context {
	if id == "" || CorrelationIDFromContext(ctx) == id {
		return ctx
	}
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals("correlation_id").(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// RequestLogger derives a logger tagged with the request's correlation id.
func RequestLogger(base zerolog.Logger, c *fiber.Ctx) zerolog.Logger {
	if correlation := GetCorrelationID(c); correlation != "" {
		return base.With().Str("correlation_id", correlation).Logger()
	}
	return base
}
