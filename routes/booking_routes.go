package routes

import (
	"github.com/anjiri1684/marketplace_booking/handlers"
	"github.com/anjiri1684/marketplace_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func BookingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected())
	booking.Get("/me", middleware.CustomerRequired(), handlers.GetMyBookings)
	booking.Post("", middleware.CustomerRequired(), handlers.CreateBooking)
	booking.Get("/:bookingId", handlers.GetBooking)
	booking.Get("/:bookingId/proposals", handlers.GetBookingProposals)
	booking.Post("/:bookingId/proposals/reject-all", middleware.CustomerRequired(), handlers.RejectAllProposals)
	booking.Post("/:bookingId/proposals/:proposalId/accept", middleware.CustomerRequired(), handlers.AcceptProposal)
	booking.Post("/:bookingId/cancel", middleware.CustomerRequired(), handlers.CancelMyBooking)
	booking.Post("/:bookingId/pay", middleware.CustomerRequired(), handlers.PayBooking)
}
