package utils

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(companyID, userID uint, path string) string {
	return fmt.Sprintf("rl:%d:%d:%s", companyID, userID, path)
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// ErrorResponse creates a standardized error response
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	return c.Status(status).JSON(response)
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// ParseUint parses a positive id. Zero means absent or malformed.
func ParseUint(s string) uint {
	i, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint(i)
}

// ErrorHandler renders errors that escape handlers in the standard envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return ErrorResponse(c, fe.Code, fe.Message, nil)
	}
	LogError("unhandled_error", err, map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
	})
	return ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", nil)
}
