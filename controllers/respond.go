package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"salescadence/middleware"
	"salescadence/services"
	"salescadence/utils"
)

// respondError maps a service error onto the response envelope. Unexpected
// errors are logged and reported, and the client sees a generic message.
func respondError(c *fiber.Ctx, op string, err error) error {
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, validation.Error(), nil)
	case errors.Is(err, services.ErrValidation):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, services.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error(), nil)
	case errors.Is(err, services.ErrConflict):
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
	}

	userID, companyID, _ := middleware.Caller(c)
	utils.LogError(op, err, map[string]interface{}{
		"user_id":    userID,
		"company_id": companyID,
		"method":     c.Method(),
		"path":       c.Path(),
	})
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", nil)
}

// parseBody decodes and validates a JSON body into dst. The returned
// *fiber.Error is rendered by the app's error handler.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// idParam reads a positive numeric route parameter.
func idParam(c *fiber.Ctx, name, label string) (uint, error) {
	id := utils.ParseUint(c.Params(name))
	if id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+label)
	}
	return id, nil
}

// caller reads the authenticated ids set by middleware.Protected.
func caller(c *fiber.Ctx) (userID, companyID uint, err error) {
	userID, companyID, ok := middleware.Caller(c)
	if !ok {
		return 0, 0, fiber.NewError(fiber.StatusUnauthorized, "Authorization required")
	}
	return userID, companyID, nil
}
