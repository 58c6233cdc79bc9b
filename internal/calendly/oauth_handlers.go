package calendly

import (
	"lexportal-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const oauthStateSessionKey = "calendly_oauth_state"

// OAuthHandlers connect the firm's Calendly account: an admin starts the
// authorize flow and the callback stores the token for the cancel client.
type OAuthHandlers struct {
	Client *Client
	// BaseURL is the externally visible origin used to build the redirect URI.
	BaseURL string
}

func (h *OAuthHandlers) redirectURI() string {
	return h.BaseURL + "/api/v1/calendly/oauth/callback"
}

// Start GET /api/v1/calendly/oauth/start (admin only).
func (h *OAuthHandlers) Start(c *fiber.Ctx) error {
	state := uuid.New().String()
	if data, ok := c.Locals("session_data").(map[string]interface{}); ok {
		data[oauthStateSessionKey] = state
	}
	return c.Redirect(h.Client.AuthorizeURL(h.redirectURI(), state), fiber.StatusFound)
}

// Callback GET /api/v1/calendly/oauth/callback (admin only).
func (h *OAuthHandlers) Callback(c *fiber.Ctx) error {
	data, _ := c.Locals("session_data").(map[string]interface{})
	expected, _ := data[oauthStateSessionKey].(string)
	state := c.Query("state")
	if expected != "" && state != expected {
		return response.Flash(c, nil, response.FlashMessage{Level: "error", Message: "Calendly OAuth state mismatch."})
	}

	code := c.Query("code")
	if code == "" {
		return response.Flash(c, nil, response.FlashMessage{Level: "error", Message: "Missing Calendly OAuth code."})
	}

	tr, err := h.Client.ExchangeCode(c.Context(), code, h.redirectURI())
	if err != nil {
		log.Error().Err(err).Msg("Calendly OAuth code exchange failed")
		return response.Flash(c, nil, response.FlashMessage{Level: "error", Message: "Calendly OAuth failed. Check server logs."})
	}
	if err := h.Client.StoreToken(c.Context(), tr); err != nil {
		log.Error().Err(err).Msg("Failed to persist Calendly OAuth token")
		return response.Flash(c, nil, response.FlashMessage{Level: "error", Message: "Calendly OAuth failed. Check server logs."})
	}

	return response.Flash(c, nil, response.FlashMessage{Level: "success", Message: "Calendly connected (token stored)."})
}
