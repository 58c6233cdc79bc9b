package appointments

import (
	"errors"

	"lexportal-backend/internal/models"
	"lexportal-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers bundles the admin appointment operations. Routes are mounted
// behind RequireAdmin, so authorization is settled before these run.
type Handlers struct {
	Service *Service
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Cancel POST /api/v1/appointments/:id/cancel.
// Validation rejections come back as flash messages with HTTP 200, matching
// the original redirect-plus-message flow; only protocol-level problems
// (bad id, missing row) use error status codes.
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid appointment id", fiber.StatusBadRequest, nil)
	}
	var req cancelRequest
	_ = c.BodyParser(&req)

	res, err := h.Service.Cancel(c.Context(), id, req.Reason)
	if err != nil {
		return h.flashServiceError(c, err)
	}

	msgs := []response.FlashMessage{{Level: "success", Message: "Appointment cancelled."}}
	if res.External != nil {
		msgs = append(msgs, response.FlashMessage{Level: res.External.Level, Message: res.External.Message})
	}
	return response.Flash(c, res.Appointment, msgs...)
}

// UpdateStatus POST /api/v1/appointments/:id/status.
func (h *Handlers) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid appointment id", fiber.StatusBadRequest, nil)
	}
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	target, ok := models.ParseAppointmentStatus(req.Status)
	if !ok {
		return response.Flash(c, nil, response.FlashMessage{Level: "error", Message: "Unknown appointment status."})
	}

	res, err := h.Service.UpdateStatus(c.Context(), id, target, req.Reason)
	if err != nil {
		return h.flashServiceError(c, err)
	}

	if !res.Changed {
		return response.Flash(c, res.Appointment, response.FlashMessage{Level: "info", Message: "Status unchanged."})
	}

	var msgs []response.FlashMessage
	if res.Cancelled {
		msgs = append(msgs, response.FlashMessage{Level: "success", Message: "Status updated to cancelled."})
	} else {
		msgs = append(msgs, response.FlashMessage{Level: "success", Message: "Status updated."})
	}
	if res.External != nil {
		msgs = append(msgs, response.FlashMessage{Level: res.External.Level, Message: res.External.Message})
	}
	return response.Flash(c, res.Appointment, msgs...)
}

// List GET /api/v1/appointments — admin view of upcoming appointments.
func (h *Handlers) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 5)
	appts, err := h.Service.UpcomingAll(c.Context(), limit)
	if err != nil {
		return response.Error(c, "Failed to fetch appointments", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Upcoming appointments", appts, nil)
}

func (h *Handlers) flashServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return response.Error(c, "Appointment not found", fiber.StatusNotFound, nil)
	case errors.Is(err, ErrReasonRequired):
		return response.Flash(c, nil, response.FlashMessage{Level: "error", Message: "A cancellation reason is required."})
	case errors.Is(err, ErrNotCancellable):
		return response.Flash(c, nil, response.FlashMessage{Level: "error", Message: "Only pending or confirmed appointments can be cancelled."})
	case errors.Is(err, ErrTransitionNotAllowed):
		return response.Flash(c, nil, response.FlashMessage{Level: "error", Message: "That status change is not allowed."})
	default:
		return response.Error(c, "Failed to update appointment", fiber.StatusInternalServerError, nil)
	}
}
