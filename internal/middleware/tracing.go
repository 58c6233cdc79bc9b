package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"
const requestIDLocal = "request_id"

// RequestID tags each request with an identifier for log correlation. An
// inbound X-Request-Id from the frontend proxy is kept; otherwise a fresh
// one is generated.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Locals(requestIDLocal, rid)
		c.Set(requestIDHeader, rid)
		return c.Next()
	}
}

// GetRequestID returns the request identifier from context.
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDLocal).(string); ok {
		return id
	}
	return ""
}
