package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crisiscoach-go-api/internal/dto"
	"github.com/noah-isme/crisiscoach-go-api/internal/middleware"
	"github.com/noah-isme/crisiscoach-go-api/internal/repository"
	"github.com/noah-isme/crisiscoach-go-api/internal/service"
	"github.com/noah-isme/crisiscoach-go-api/internal/utils"
)

const countdownFrameInterval = time.Second

// QuizHandler exposes quiz session endpoints and the countdown stream.
type QuizHandler struct {
	service service.QuizService
	logger  zerolog.Logger
}

// NewQuizHandler constructs the quiz handler.
func NewQuizHandler(service service.QuizService, logger zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		service: service,
		logger:  logger.With().Str("component", "quiz_handler").Logger(),
	}
}

// Register binds quiz session routes. answerLimiter, when given, guards the
// answer endpoint.
func (h *QuizHandler) Register(router fiber.Router, answerLimiter ...fiber.Handler) {
	router.Post("", h.start)
	router.Get("/:id", h.get)
	router.Post("/:id/answers", append(append([]fiber.Handler{}, answerLimiter...), h.answer)...)
	router.Post("/:id/advance", h.advance)
	router.Delete("/:id", h.abandon)
	router.Get("/:id/ws", h.upgrade, websocket.New(h.stream))
}

func (h *QuizHandler) start(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var payload dto.StartSessionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.Start(requestContext(c), userID, payload)
	if err != nil {
		return sendDomainError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session started", session)
}

func (h *QuizHandler) get(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	session, err := h.service.Get(requestContext(c), userID, c.Params("id"))
	if err != nil {
		return sendDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "session retrieved", session)
}

func (h *QuizHandler) answer(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var payload dto.AnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Answer(requestContext(c), userID, c.Params("id"), payload)
	if err != nil {
		return sendDomainError(c, h.logger, err)
	}

	return utils.OK(c, result, "answer recorded", warningsMeta(result.Warnings))
}

func (h *QuizHandler) advance(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	result, err := h.service.Advance(requestContext(c), userID, c.Params("id"))
	if err != nil {
		return sendDomainError(c, h.logger, err)
	}

	message := "next question"
	if result.Completed {
		message = "session completed"
	}
	return utils.OK(c, result, message, warningsMeta(result.Warnings))
}

func (h *QuizHandler) abandon(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.service.Abandon(requestContext(c), userID, c.Params("id")); err != nil {
		return sendDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "session abandoned", fiber.Map{"id": c.Params("id")})
}

func (h *QuizHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if userIDFromContext(c) == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}
	c.Locals("request_ctx", requestContext(c))
	return c.Next()
}

// stream pushes one countdown frame per second until the current question is
// answered, the session completes, or the client disconnects.
func (h *QuizHandler) stream(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	sessionID := conn.Params("id")

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(baseCtx))
	defer cancel()

	logger := h.logger.With().
		Str("user_id", userID).
		Str("session_id", sessionID).
		Str("correlation_id", middleware.CorrelationIDFromContext(baseCtx)).
		Logger()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Debug().Msg("countdown stream connected")
	defer logger.Debug().Msg("countdown stream closed")

	ticker := time.NewTicker(countdownFrameInterval)
	defer ticker.Stop()

	for {
		session, err := h.service.Get(ctx, userID, sessionID)
		if err != nil {
			code, reason := websocket.CloseInternalServerErr, "internal error"
			if errors.Is(err, repository.ErrQuizSessionNotFound) {
				code, reason = websocket.ClosePolicyViolation, "session not found"
			} else if !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("countdown stream failed")
			}
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
			return
		}

		frame := dto.NewCountdownFrame(session)
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
		if frame.Final {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "question closed"))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
