package routes

import (
	"github.com/anjiri1684/marketplace_booking/handlers"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func PublicRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/performers/:performerId/slots", handlers.GetPerformerSlots)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws", websocket.New(handlers.ServeWs))
}

// Register mounts every route group on app.
func Register(app *fiber.App) {
	PublicRoutes(app)
	BookingRoutes(app)
	PerformerRoutes(app)
	PaymentRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
}
