package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crisiscoach-go-api/internal/catalog"
	"github.com/noah-isme/crisiscoach-go-api/internal/middleware"
	"github.com/noah-isme/crisiscoach-go-api/internal/quiz"
	"github.com/noah-isme/crisiscoach-go-api/internal/repository"
	"github.com/noah-isme/crisiscoach-go-api/internal/service"
	"github.com/noah-isme/crisiscoach-go-api/internal/utils"
)

func userIDFromContext(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}

func warningsMeta(warnings []string) fiber.Map {
	if len(warnings) == 0 {
		return nil
	}
	return fiber.Map{"warnings": warnings}
}

// sendDomainError maps domain errors onto HTTP statuses.
func sendDomainError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrInvalidMode), errors.Is(err, quiz.ErrInvalidOption):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrCategoryNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "category not found")
	case errors.Is(err, catalog.ErrScenarioOutOfRange):
		return utils.SendError(c, fiber.StatusNotFound, "scenario not found")
	case errors.Is(err, repository.ErrQuizSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "session not found")
	case errors.Is(err, quiz.ErrAlreadyAnswered),
		errors.Is(err, quiz.ErrFeedbackPending),
		errors.Is(err, quiz.ErrNotAnswered),
		errors.Is(err, quiz.ErrSessionCompleted),
		errors.Is(err, repository.ErrQuizSessionContended):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		reqLogger := middleware.RequestLogger(logger, c)
		reqLogger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
