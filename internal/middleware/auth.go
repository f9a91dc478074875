package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/dto"
)

// SessionRequired rejects JSON requests from sessions without a login.
func SessionRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentPrincipal(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: please sign in",
			})
		}
		return c.Next()
	}
}
