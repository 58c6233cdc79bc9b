package finances

import (
	"lexportal-backend/internal/middleware"
	"lexportal-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

type createInvoiceRequest struct {
	UserID      string  `json:"user_id"`
	AmountCents int64   `json:"amount_cents"`
	Currency    string  `json:"currency"`
	Description *string `json:"description"`
}

// CreateInvoice POST /api/v1/invoices (admin only).
func (h *Handlers) CreateInvoice(c *fiber.Ctx) error {
	var req createInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return response.Error(c, "Invalid user_id", fiber.StatusBadRequest, nil)
	}
	if req.AmountCents <= 0 {
		return response.Error(c, "amount_cents must be positive", fiber.StatusBadRequest, nil)
	}

	inv, err := h.Service.CreateInvoice(c.Context(), CreateInvoiceInput{
		UserID:      userID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		return response.Error(c, "Failed to create invoice", fiber.StatusInternalServerError, nil)
	}
	return response.SuccessCreated(c, "Invoice created", inv, nil)
}

// MyInvoices GET /api/v1/invoices/mine — the logged-in client's invoices
// plus their outstanding balance.
func (h *Handlers) MyInvoices(c *fiber.Ctx) error {
	userID := sessionUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	invoices, err := h.Service.InvoicesForUser(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Failed to fetch invoices", fiber.StatusInternalServerError, nil)
	}
	balance, err := h.Service.UnpaidBalanceCents(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Failed to fetch balance", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Invoices", fiber.Map{
		"invoices":      invoices,
		"balance_cents": balance,
	}, nil)
}

func sessionUserID(c *fiber.Ctx) uuid.UUID {
	m, ok := middleware.GetUser(c).(map[string]interface{})
	if !ok {
		return uuid.Nil
	}
	s, _ := m["user_id"].(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
