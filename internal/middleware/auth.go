package middleware

import (
	"strings"

	"go-hrms/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware validates JWT tokens and injects user claims into context.
// Browsers cannot set headers on a WebSocket upgrade, so a ?token= query
// parameter is accepted as well.
func AuthMiddleware(skipAuth bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipAuth {
			// Inject dummy context for dev
			dummyClaims := &utils.UserClaims{
				UserID: c.Get("X-Dev-User", "dev-admin-id"),
				Roles:  []string{"admin"},
			}
			setClaims(c, dummyClaims)
			return c.Next()
		}

		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		setClaims(c, claims)
		return c.Next()
	}
}

// ClaimsFrom returns the claims stored by AuthMiddleware.
func ClaimsFrom(c *fiber.Ctx) (*utils.UserClaims, bool) {
	claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	return claims, ok && claims != nil
}

func setClaims(c *fiber.Ctx, claims *utils.UserClaims) {
	c.Locals(utils.UserClaimsKey, claims)
	c.Locals(utils.UserIDKey, claims.UserID)
	c.Locals(utils.RolesKey, claims.Roles)
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		// Extract token from "Bearer <token>"
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		return token, found && token != ""
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}
