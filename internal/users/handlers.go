package users

import (
	"errors"

	"lexportal-backend/internal/appointments"
	"lexportal-backend/internal/finances"
	"lexportal-backend/internal/middleware"
	"lexportal-backend/internal/models"
	"lexportal-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Dashboard limits match the original portal: clients see their next three
// appointments, admins the next five across all users.
const (
	clientUpcomingLimit = 3
	adminUpcomingLimit  = 5
)

type Handlers struct {
	Service      *Service
	Appointments *appointments.Service
	Finances     *finances.Service
}

type createUserRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	Password    string  `json:"password"`
	Role        string  `json:"role"`
}

// CreateUser POST /api/v1/users (admin only).
func (h *Handlers) CreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	user, err := h.Service.CreateUser(c.Context(), CreateUserInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		Role:        req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			return response.Error(c, "Invalid user input", fiber.StatusBadRequest, nil)
		case errors.Is(err, ErrEmailTaken):
			return response.Error(c, err.Error(), fiber.StatusConflict, nil)
		default:
			return response.Error(c, "Failed to create user", fiber.StatusInternalServerError, nil)
		}
	}
	return response.SuccessCreated(c, "User created", user, nil)
}

// ViewUser GET /api/v1/users/:id (admin only).
func (h *Handlers) ViewUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid user id", fiber.StatusBadRequest, nil)
	}
	user, err := h.Service.GetUser(c.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return response.Error(c, "User not found", fiber.StatusNotFound, nil)
		}
		return response.Error(c, "Failed to fetch user", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "User", user, nil)
}

// Dashboard GET /api/v1/users/dashboard — upcoming appointments plus the
// outstanding balance for the logged-in client; admins get the firm-wide
// upcoming list instead.
func (h *Handlers) Dashboard(c *fiber.Ctx) error {
	m, ok := middleware.GetUser(c).(map[string]interface{})
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	idStr, _ := m["user_id"].(string)
	userID, err := uuid.Parse(idStr)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	role, _ := m["role"].(string)

	if role == models.RoleAdmin {
		appts, err := h.Appointments.UpcomingAll(c.Context(), adminUpcomingLimit)
		if err != nil {
			return response.Error(c, "Failed to fetch dashboard", fiber.StatusInternalServerError, nil)
		}
		return response.Success(c, "Admin dashboard", fiber.Map{"upcoming_appointments": appts}, nil)
	}

	appts, err := h.Appointments.UpcomingForUser(c.Context(), userID, clientUpcomingLimit)
	if err != nil {
		return response.Error(c, "Failed to fetch dashboard", fiber.StatusInternalServerError, nil)
	}
	balance, err := h.Finances.UnpaidBalanceCents(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Failed to fetch dashboard", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Dashboard", fiber.Map{
		"upcoming_appointments": appts,
		"balance_cents":         balance,
	}, nil)
}
