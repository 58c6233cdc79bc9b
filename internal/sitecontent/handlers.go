package sitecontent

import (
	"errors"

	"lexportal-backend/internal/models"
	"lexportal-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Latest GET /api/v1/content — public, feeds the site's rendered pages.
func (h *Handlers) Latest(c *fiber.Ctx) error {
	content, err := h.Service.Latest(c.Context())
	if err != nil {
		if errors.Is(err, ErrNoContent) {
			return response.Error(c, "No website content published", fiber.StatusNotFound, nil)
		}
		return response.Error(c, "Failed to fetch content", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Website content", content, nil)
}

// Publish POST /api/v1/content (admin only) — store a new content version.
func (h *Handlers) Publish(c *fiber.Ctx) error {
	var content models.WebsiteContent
	if err := c.BodyParser(&content); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	created, err := h.Service.PublishVersion(c.Context(), content)
	if err != nil {
		return response.Error(c, "Failed to publish content", fiber.StatusInternalServerError, nil)
	}
	return response.SuccessCreated(c, "Content published", created, nil)
}
