package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
)

// Message is a rendered notification ready for any channel.
type Message struct {
	Kind      models.NotificationKind `json:"kind"`
	BookingID uuid.UUID               `json:"booking_id"`
	Subject   string                  `json:"subject"`
	HTML      string                  `json:"-"`
	Text      string                  `json:"text"`
}

// Deliverer sends a message to a user over some transport. It may fail.
type Deliverer interface {
	Deliver(ctx context.Context, userID uuid.UUID, msg Message) error
}

type DelivererFunc func(ctx context.Context, userID uuid.UUID, msg Message) error

func (f DelivererFunc) Deliver(ctx context.Context, userID uuid.UUID, msg Message) error {
	return f(ctx, userID, msg)
}

// ContactBook resolves a user id to an addressable contact.
type ContactBook interface {
	Contact(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// Fanout delivers through every channel and succeeds if at least one did.
type Fanout []Deliverer

func (f Fanout) Deliver(ctx context.Context, userID uuid.UUID, msg Message) error {
	if len(f) == 0 {
		return errors.New("no delivery channels configured")
	}
	var errs []error
	for _, d := range f {
		if err := d.Deliver(ctx, userID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) < len(f) {
		return nil
	}
	return fmt.Errorf("all %d channels failed: %w", len(f), errors.Join(errs...))
}
