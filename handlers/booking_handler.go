package handlers

import (
	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/anjiri1684/marketplace_booking/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	SlotID      string `json:"slot_id" validate:"required,uuid"`
	PerformerID string `json:"performer_id" validate:"required,uuid"`
	Price       *int64 `json:"price,omitempty" validate:"omitempty,gt=0"`
}

func CreateBooking(c *fiber.Ctx) error {
	customerID, err := currentUserID(c)
	if err != nil {
		return respond(c, err)
	}
	var req CreateBookingRequest
	if err := parseBody(c, &req); err != nil {
		return respond(c, err)
	}

	booking, err := deps.Bookings.CreateBooking(c.UserContext(), services.CreateBookingInput{
		CustomerID:  customerID,
		PerformerID: uuid.MustParse(req.PerformerID),
		SlotID:      uuid.MustParse(req.SlotID),
		Price:       req.Price,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Booking request sent to the performer.",
		"booking": booking,
	})
}

func GetMyBookings(c *fiber.Ctx) error {
	customerID, err := currentUserID(c)
	if err != nil {
		return respond(c, err)
	}
	bookings, err := deps.Bookings.ListForCustomer(c.UserContext(), customerID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(bookings)
}

func GetBooking(c *fiber.Ctx) error {
	booking, err := ownBooking(c)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(booking)
}

// ownBooking loads the :bookingId booking if the caller is one of its parties.
func ownBooking(c *fiber.Ctx) (*models.Booking, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	bookingID, err := uuidParam(c, "bookingId")
	if err != nil {
		return nil, err
	}
	booking, err := deps.Bookings.Get(c.UserContext(), bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != userID && booking.PerformerID != userID {
		return nil, services.ErrForbidden
	}
	return booking, nil
}

func GetBookingProposals(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respond(c, err)
	}
	bookingID, err := uuidParam(c, "bookingId")
	if err != nil {
		return respond(c, err)
	}
	proposals, err := deps.Bookings.ListProposals(c.UserContext(), userID, bookingID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(proposals)
}

func AcceptProposal(c *fiber.Ctx) error {
	customerID, err := currentUserID(c)
	if err != nil {
		return respond(c, err)
	}
	bookingID, err := uuidParam(c, "bookingId")
	if err != nil {
		return respond(c, err)
	}
	proposalID, err := uuidParam(c, "proposalId")
	if err != nil {
		return respond(c, err)
	}

	booking, err := deps.Bookings.CustomerAcceptProposal(c.UserContext(), customerID, bookingID, proposalID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Proposal accepted.", "booking": booking})
}

func RejectAllProposals(c *fiber.Ctx) error {
	customerID, err := currentUserID(c)
	if err != nil {
		return respond(c, err)
	}
	bookingID, err := uuidParam(c, "bookingId")
	if err != nil {
		return respond(c, err)
	}

	booking, err := deps.Bookings.CustomerRejectAll(c.UserContext(), customerID, bookingID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Proposals rejected, booking cancelled.", "booking": booking})
}

func CancelMyBooking(c *fiber.Ctx) error {
	return cancelAs(c, models.ActorCustomer)
}

func cancelAs(c *fiber.Ctx, actor models.Actor) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respond(c, err)
	}
	bookingID, err := uuidParam(c, "bookingId")
	if err != nil {
		return respond(c, err)
	}
	reason, err := optionalReason(c)
	if err != nil {
		return respond(c, err)
	}

	booking, err := deps.Bookings.Cancel(c.UserContext(), actor, userID, bookingID, reason)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Booking cancelled.", "booking": booking})
}
