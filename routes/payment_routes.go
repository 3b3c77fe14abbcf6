package routes

import (
	"github.com/anjiri1684/marketplace_booking/handlers"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func PaymentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// The gateway authenticates with a body signature, not a JWT.
	api.Post("/payments/webhook", limiter.New(limiter.Config{Max: 120}), handlers.HandlePaymentWebhook)
}
