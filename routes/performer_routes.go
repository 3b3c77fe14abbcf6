package routes

import (
	"github.com/anjiri1684/marketplace_booking/handlers"
	"github.com/anjiri1684/marketplace_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func PerformerRoutes(app *fiber.App) {
	api := app.Group("/api/v1")
	performer := api.Group("/performer", middleware.Protected(), middleware.PerformerRequired())

	bookings := performer.Group("/bookings")
	bookings.Get("", handlers.GetPerformerBookings)
	bookings.Post("/:bookingId/confirm", handlers.ConfirmBooking)
	bookings.Post("/:bookingId/counter-propose", handlers.CounterPropose)
	bookings.Post("/:bookingId/reject", handlers.RejectBooking)
	bookings.Post("/:bookingId/complete", handlers.MarkBookingAsComplete)
	bookings.Post("/:bookingId/no-show", handlers.MarkBookingAsNoShow)
	bookings.Post("/:bookingId/cancel", handlers.PerformerCancelBooking)

	slots := performer.Group("/slots")
	slots.Get("", handlers.GetMySlots)
	slots.Post("", handlers.CreateSlot)
	slots.Post("/:slotId/block", handlers.BlockSlot)
	slots.Post("/:slotId/unblock", handlers.UnblockSlot)
}
