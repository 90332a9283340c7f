package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crisiscoach-go-api/internal/dto"
	"github.com/noah-isme/crisiscoach-go-api/internal/service"
	"github.com/noah-isme/crisiscoach-go-api/internal/utils"
)

// EvaluateHandler exposes stand-alone answer coaching.
type EvaluateHandler struct {
	service   service.EvaluationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewEvaluateHandler constructs the evaluate-answer handler.
func NewEvaluateHandler(service service.EvaluationService, validate *validator.Validate, logger zerolog.Logger) *EvaluateHandler {
	return &EvaluateHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "evaluate_handler").Logger(),
	}
}

// Register binds the evaluate-answer route behind the given guards.
func (h *EvaluateHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, guards...), h.evaluate)
	router.Post("/evaluate-answer", handlers...)
}

func (h *EvaluateHandler) evaluate(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var payload dto.EvaluateAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	}

	category := strings.TrimSpace(payload.Category)
	if category == "" {
		category = "General"
	}

	result := h.service.Evaluate(requestContext(c), service.EvaluationRequest{
		UserID:        userID,
		Category:      category,
		Question:      payload.Question,
		UserAnswer:    payload.UserAnswer,
		CorrectAnswer: payload.CorrectAnswer,
		IsCorrect:     *payload.IsCorrect,
		Explanation:   payload.Explanation,
	})

	meta := fiber.Map{
		"source":    string(result.Source),
		"log_saved": result.LogSaved,
	}
	if !result.LogSaved {
		meta["warnings"] = []string{service.WarningDecisionLogNotSaved}
	}

	return utils.OK(c, dto.NewEvaluateAnswerResponse(result.Feedback), "answer evaluated", meta)
}
