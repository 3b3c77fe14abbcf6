package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultSlotWindow = 30 * 24 * time.Hour

type CreateSlotRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	Price     *int64    `json:"price,omitempty" validate:"omitempty,gte=0"`
}

// GetPerformerSlots is the public view of a performer's free hours.
func GetPerformerSlots(c *fiber.Ctx) error {
	performerID, err := uuidParam(c, "performerId")
	if err != nil {
		return respond(c, err)
	}
	from, to, err := slotWindow(c)
	if err != nil {
		return respond(c, err)
	}

	slots, err := deps.Slots.ListByPerformer(c.UserContext(), performerID, from, to)
	if err != nil {
		return respond(c, err)
	}
	free := make([]models.AvailabilitySlot, 0, len(slots))
	for _, s := range slots {
		if s.Status == models.SlotFree {
			free = append(free, s)
		}
	}
	return c.JSON(free)
}

func GetMySlots(c *fiber.Ctx) error {
	performerID, err := currentUserID(c)
	if err != nil {
		return respond(c, err)
	}
	from, to, err := slotWindow(c)
	if err != nil {
		return respond(c, err)
	}
	slots, err := deps.Slots.ListByPerformer(c.UserContext(), performerID, from, to)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(slots)
}

func CreateSlot(c *fiber.Ctx) error {
	performerID, err := currentUserID(c)
	if err != nil {
		return respond(c, err)
	}
	var req CreateSlotRequest
	if err := parseBody(c, &req); err != nil {
		return respond(c, err)
	}

	start := req.StartTime.In(deps.Location)
	if start.Minute() != 0 || start.Second() != 0 || start.Nanosecond() != 0 {
		return respond(c, fiber.NewError(fiber.StatusBadRequest, "Slots start on the hour"))
	}
	if !start.After(deps.Clock.Now()) {
		return respond(c, fiber.NewError(fiber.StatusBadRequest, "Slot must be in the future"))
	}

	slot := &models.AvailabilitySlot{
		PerformerID: performerID,
		Date:        models.DateOnly(start, deps.Location),
		StartTime:   start.UTC(),
		EndTime:     start.Add(time.Hour).UTC(),
		Price:       req.Price,
	}
	if err := deps.Slots.Create(c.UserContext(), slot); err != nil {
		if errors.Is(err, models.ErrSlotConflict) {
			return respond(c, fiber.NewError(fiber.StatusConflict, "You already have a slot at this time"))
		}
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(slot)
}

func BlockSlot(c *fiber.Ctx) error {
	return toggleSlot(c, deps.Slots.Block, "Slot blocked.")
}

func UnblockSlot(c *fiber.Ctx) error {
	return toggleSlot(c, deps.Slots.Unblock, "Slot unblocked.")
}

func toggleSlot(c *fiber.Ctx, op func(context.Context, uuid.UUID) error, message string) error {
	performerID, err := currentUserID(c)
	if err != nil {
		return respond(c, err)
	}
	slotID, err := uuidParam(c, "slotId")
	if err != nil {
		return respond(c, err)
	}

	slot, err := deps.Slots.Get(c.UserContext(), slotID)
	if err != nil {
		return respond(c, err)
	}
	if slot.PerformerID != performerID {
		return respond(c, fiber.NewError(fiber.StatusForbidden, "Slot belongs to another performer"))
	}
	if err := op(c.UserContext(), slotID); err != nil {
		if errors.Is(err, models.ErrSlotConflict) {
			return respond(c, fiber.NewError(fiber.StatusConflict, "Slot is "+string(slot.Status)))
		}
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": message})
}

func slotWindow(c *fiber.Ctx) (time.Time, time.Time, error) {
	from := deps.Clock.Now().In(deps.Location)
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, deps.Location)
	if v := c.Query("from"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, deps.Location)
		if err != nil {
			return from, from, fiber.NewError(fiber.StatusBadRequest, "from must be YYYY-MM-DD")
		}
		from = t
	}
	to := from.Add(defaultSlotWindow)
	if v := c.Query("to"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, deps.Location)
		if err != nil {
			return from, from, fiber.NewError(fiber.StatusBadRequest, "to must be YYYY-MM-DD")
		}
		to = t.AddDate(0, 0, 1)
	}
	if !to.After(from) {
		return from, to, fiber.NewError(fiber.StatusBadRequest, "to must not be before from")
	}
	return from, to, nil
}
