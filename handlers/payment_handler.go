package handlers

import (
	"encoding/json"
	"errors"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/anjiri1684/marketplace_booking/payments"
	"github.com/anjiri1684/marketplace_booking/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PayBooking starts checkout for what the customer owes next: the prepayment
// on an unpaid booking, the remainder on a prepaid one.
func PayBooking(c *fiber.Ctx) error {
	booking, err := ownBooking(c)
	if err != nil {
		return respond(c, err)
	}
	userID, _ := currentUserID(c)
	if booking.CustomerID != userID {
		return respond(c, services.ErrForbidden)
	}
	if booking.Status.Terminal() {
		return respond(c, &services.TransitionError{BookingID: booking.ID, From: booking.Status, Action: "pay"})
	}

	var amount int64
	switch booking.PaymentStatus {
	case models.PaymentNotPaid:
		amount = booking.PrepaymentAmount
	case models.PaymentPrepaid:
		amount = booking.PriceTotal - booking.PrepaymentAmount
	}
	if amount <= 0 {
		return respond(c, fiber.NewError(fiber.StatusConflict, "Nothing left to pay for this booking"))
	}

	url, err := deps.Gateway.InitiatePayment(c.UserContext(), booking.ID, amount)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"checkout_url": url, "amount": amount})
}

// HandlePaymentWebhook applies the gateway's payment-confirmed event. Events
// for bookings that already ended are acknowledged so the gateway stops
// retrying them.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	body := c.Body()
	if err := payments.VerifySignature(deps.WebhookSecret, body, c.Get(payments.SignatureHeader)); err != nil {
		deps.Logger.Warn("webhook rejected", zap.Error(err), zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid signature"})
	}

	var payload payments.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}
	if err := validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	booking, err := deps.Bookings.RecordPayment(c.UserContext(), services.PaymentSignal{
		EventID:   payload.EventID,
		BookingID: payload.BookingID,
		Amount:    payload.Amount,
	})
	if errors.Is(err, services.ErrInvalidTransition) {
		deps.Logger.Warn("payment for closed booking ignored",
			zap.String("event_id", payload.EventID), zap.Stringer("booking_id", payload.BookingID))
		return c.JSON(fiber.Map{"message": "Booking is closed, payment not applied"})
	}
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{
		"message":        "Webhook processed successfully",
		"payment_status": booking.PaymentStatus,
	})
}
