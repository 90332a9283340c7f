package handler

import (
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crisiscoach-go-api/internal/catalog"
	"github.com/noah-isme/crisiscoach-go-api/internal/dto"
	"github.com/noah-isme/crisiscoach-go-api/internal/service"
	"github.com/noah-isme/crisiscoach-go-api/internal/utils"
)

// CategoryHandler lists the scenario catalog, marking categories the caller completed.
type CategoryHandler struct {
	catalog  *catalog.Catalog
	progress service.ProgressService
	logger   zerolog.Logger
}

// NewCategoryHandler constructs the category handler.
func NewCategoryHandler(scenarios *catalog.Catalog, progress service.ProgressService, logger zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{
		catalog:  scenarios,
		progress: progress,
		logger:   logger.With().Str("component", "category_handler").Logger(),
	}
}

// Register binds category routes.
func (h *CategoryHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *CategoryHandler) completed(c *fiber.Ctx) ([]string, error) {
	userID := userIDFromContext(c)
	if userID == "" {
		return nil, nil
	}
	progress, err := h.progress.Get(requestContext(c), userID)
	if err != nil {
		return nil, err
	}
	return progress.CompletedCategories, nil
}

func (h *CategoryHandler) list(c *fiber.Ctx) error {
	completed, err := h.completed(c)
	if err != nil {
		return sendDomainError(c, h.logger, err)
	}

	categories := h.catalog.List()
	response := make([]dto.CategoryResponse, 0, len(categories))
	for _, category := range categories {
		response = append(response, dto.NewCategoryResponse(category, slices.Contains(completed, category.ID)))
	}

	return utils.SendSuccess(c, "categories retrieved", response)
}

func (h *CategoryHandler) get(c *fiber.Ctx) error {
	category, err := h.catalog.Get(c.Params("id"))
	if err != nil {
		return sendDomainError(c, h.logger, err)
	}

	completed, err := h.completed(c)
	if err != nil {
		return sendDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "category retrieved", dto.NewCategoryResponse(category, slices.Contains(completed, category.ID)))
}
