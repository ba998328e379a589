package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequireRole lets the request through when the caller holds any of roles
// (case-insensitive). It must run after AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		for _, held := range claims.Roles {
			for _, want := range roles {
				if strings.EqualFold(held, want) {
					return c.Next()
				}
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden: Insufficient permissions",
		})
	}
}
