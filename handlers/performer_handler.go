package handlers

import (
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/anjiri1684/marketplace_booking/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ProposalRequest struct {
	Date   string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time   string  `json:"time" validate:"omitempty,datetime=15:04"`
	Price  *int64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	SlotID *string `json:"slot_id,omitempty" validate:"omitempty,uuid"`
}

type CounterProposeRequest struct {
	Proposals []ProposalRequest `json:"proposals" validate:"required,min=1,dive"`
}

func GetPerformerBookings(c *fiber.Ctx) error {
	performerID, err := currentUserID(c)
	if err != nil {
		return respond(c, err)
	}
	bookings, err := deps.Bookings.ListForPerformer(c.UserContext(), performerID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(bookings)
}

func ConfirmBooking(c *fiber.Ctx) error {
	performerID, bookingID, err := performerAndBooking(c)
	if err != nil {
		return respond(c, err)
	}
	booking, err := deps.Bookings.PerformerConfirm(c.UserContext(), performerID, bookingID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Booking confirmed.", "booking": booking})
}

func CounterPropose(c *fiber.Ctx) error {
	performerID, bookingID, err := performerAndBooking(c)
	if err != nil {
		return respond(c, err)
	}
	var req CounterProposeRequest
	if err := parseBody(c, &req); err != nil {
		return respond(c, err)
	}

	inputs := make([]services.ProposalInput, 0, len(req.Proposals))
	for _, p := range req.Proposals {
		in := services.ProposalInput{Time: p.Time, Price: p.Price}
		if p.Date != "" {
			in.Date, _ = time.ParseInLocation("2006-01-02", p.Date, deps.Location)
		}
		if p.SlotID != nil {
			id := uuid.MustParse(*p.SlotID)
			in.SlotID = &id
		}
		inputs = append(inputs, in)
	}

	proposals, err := deps.Bookings.PerformerCounterPropose(c.UserContext(), performerID, bookingID, inputs)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Alternative times sent to the customer.",
		"proposals": proposals,
	})
}

func RejectBooking(c *fiber.Ctx) error {
	performerID, bookingID, err := performerAndBooking(c)
	if err != nil {
		return respond(c, err)
	}
	reason, err := optionalReason(c)
	if err != nil {
		return respond(c, err)
	}
	booking, err := deps.Bookings.PerformerReject(c.UserContext(), performerID, bookingID, reason)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Booking rejected.", "booking": booking})
}

func MarkBookingAsComplete(c *fiber.Ctx) error {
	performerID, bookingID, err := performerAndBooking(c)
	if err != nil {
		return respond(c, err)
	}
	booking, err := deps.Bookings.MarkCompleted(c.UserContext(), performerID, bookingID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Booking marked as completed.", "booking": booking})
}

func MarkBookingAsNoShow(c *fiber.Ctx) error {
	performerID, bookingID, err := performerAndBooking(c)
	if err != nil {
		return respond(c, err)
	}
	booking, err := deps.Bookings.MarkNoShow(c.UserContext(), performerID, bookingID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Booking marked as no-show.", "booking": booking})
}

func PerformerCancelBooking(c *fiber.Ctx) error {
	return cancelAs(c, models.ActorPerformer)
}

func performerAndBooking(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	performerID, err := currentUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	bookingID, err := uuidParam(c, "bookingId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return performerID, bookingID, nil
}
