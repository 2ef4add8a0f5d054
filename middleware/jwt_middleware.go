package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"salescadence/utils"
)

// Protected admits requests carrying a valid bearer token (or access_token
// cookie) and stores the caller in Locals "userID", "companyID" and "claims".
func Protected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Try to get token from Authorization header first
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid authorization format", nil)
			}
			token = tokenParts[1]
		} else {
			// Fall back to cookie if header not present
			token = c.Cookies("access_token")
			if token == "" {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization required", nil)
			}
		}

		claims, err := utils.ParseJWTToken(secret, token)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
		}

		c.Locals("claims", claims)
		c.Locals("userID", claims.UserID)
		c.Locals("companyID", claims.CompanyID)
		return c.Next()
	}
}

// Caller returns the ids stored by Protected. ok is false on routes it did
// not guard.
func Caller(c *fiber.Ctx) (userID, companyID uint, ok bool) {
	userID, ok1 := c.Locals("userID").(uint)
	companyID, ok2 := c.Locals("companyID").(uint)
	return userID, companyID, ok1 && ok2
}
