package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crisiscoach-go-api/internal/dto"
	"github.com/noah-isme/crisiscoach-go-api/internal/service"
	"github.com/noah-isme/crisiscoach-go-api/internal/utils"
)

// ProgressHandler serves the caller's durable progress and after-action report.
type ProgressHandler struct {
	progress service.ProgressService
	reports  service.ReportService
	logger   zerolog.Logger
}

// NewProgressHandler constructs the progress handler.
func NewProgressHandler(progress service.ProgressService, reports service.ReportService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
		reports:  reports,
		logger:   logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register binds progress and report routes.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Get("/progress", h.getProgress)
	router.Get("/reports/after-action", h.afterAction)
}

func (h *ProgressHandler) getProgress(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	progress, err := h.progress.Get(requestContext(c), userID)
	if err != nil {
		return sendDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "progress retrieved", dto.NewProgressResponse(progress))
}

func (h *ProgressHandler) afterAction(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	report, err := h.reports.AfterAction(requestContext(c), userID)
	if err != nil {
		return sendDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "after-action report retrieved", report)
}
