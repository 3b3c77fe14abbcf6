package handlers

import (
	"errors"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/anjiri1684/marketplace_booking/payments"
	"github.com/anjiri1684/marketplace_booking/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respond renders a service error with the status callers can act on.
func respond(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		code = fiber.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		code = fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, services.ErrSlotUnavailable),
		errors.Is(err, services.ErrProposalNoLongerAvailable),
		errors.Is(err, models.ErrSlotConflict):
		code = fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidTransition):
		code = fiber.StatusUnprocessableEntity
	case errors.Is(err, payments.ErrGatewayNotConfigured):
		code = fiber.StatusServiceUnavailable
	}

	if code == fiber.StatusInternalServerError {
		deps.Logger.Error("request failed",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		return c.Status(code).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
