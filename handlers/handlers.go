package handlers

import (
	"time"

	"github.com/anjiri1684/marketplace_booking/payments"
	"github.com/anjiri1684/marketplace_booking/services"
	"github.com/anjiri1684/marketplace_booking/utils"
	"github.com/anjiri1684/marketplace_booking/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var validate = validator.New()

// Deps is everything the HTTP handlers call into.
type Deps struct {
	Bookings      *services.BookingService
	Slots         services.SlotStore
	Gateway       payments.Gateway
	Hub           *websocket.Hub
	WebhookSecret string
	Clock         utils.Clock
	Location      *time.Location
	Logger        *zap.Logger
}

var deps Deps

// Init sets the handler dependencies. It must run before routes are served.
func Init(d Deps) {
	if d.Clock == nil {
		d.Clock = utils.RealClock()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	deps = d
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	sub, _ := claims["user_id"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid user ID in token")
	}
	return id, nil
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

// parseBody decodes and validates a JSON request body.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot parse JSON")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// optionalReason reads {"reason": "..."} when a body was sent.
func optionalReason(c *fiber.Ctx) (string, error) {
	var req reasonRequest
	if len(c.Body()) == 0 {
		return "", nil
	}
	if err := parseBody(c, &req); err != nil {
		return "", err
	}
	return req.Reason, nil
}
