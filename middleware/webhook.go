package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"salescadence/utils"
)

// WebhookSecret admits requests whose X-Webhook-Secret header equals secret.
// An empty secret rejects everything.
func WebhookSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get("X-Webhook-Secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			utils.LogEvent("webhook_rejected", map[string]interface{}{
				"endpoint": c.Path(),
				"ip":       c.IP(),
			})
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid webhook secret", nil)
		}
		return c.Next()
	}
}
