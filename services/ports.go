package services

import (
	"context"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
)

// SlotStore owns slot allocation. Every status change except Release is a
// compare-and-set.
type SlotStore interface {
	Create(ctx context.Context, slot *models.AvailabilitySlot) error
	Get(ctx context.Context, id uuid.UUID) (*models.AvailabilitySlot, error)
	ListByPerformer(ctx context.Context, performerID uuid.UUID, from, to time.Time) ([]models.AvailabilitySlot, error)

	// Reserve moves a free slot to booked for bookingID. It returns
	// models.ErrSlotConflict when the slot is not free.
	Reserve(ctx context.Context, slotID, bookingID uuid.UUID) error
	// Release frees a booked slot. Unknown slots and slots that are not
	// booked are left alone.
	Release(ctx context.Context, slotID uuid.UUID) error
	// Reassign atomically frees oldSlotID and reserves newSlotID. On conflict
	// the old reservation is left in place.
	Reassign(ctx context.Context, oldSlotID, newSlotID, bookingID uuid.UUID) error

	Block(ctx context.Context, slotID uuid.UUID) error
	Unblock(ctx context.Context, slotID uuid.UUID) error
}

type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Booking, error)
	ListByPerformer(ctx context.Context, performerID uuid.UUID) ([]models.Booking, error)

	// Transition applies t only if its guards still hold and reports whether
	// it did.
	Transition(ctx context.Context, id uuid.UUID, t models.BookingTransition) (bool, error)
	// SetPaymentStatus moves payment_status from one of from to to on a
	// non-terminal booking and reports whether it did.
	SetPaymentStatus(ctx context.Context, id uuid.UUID, from []models.PaymentStatus, to models.PaymentStatus) (bool, error)
}

type ProposalStore interface {
	// ReplacePending discards the booking's pending proposals and stores the
	// new set.
	ReplacePending(ctx context.Context, bookingID uuid.UUID, proposals []models.Proposal) error
	Get(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Proposal, error)
	// Resolve marks acceptedID accepted and every other pending proposal of
	// the booking rejected. uuid.Nil rejects them all.
	Resolve(ctx context.Context, bookingID, acceptedID uuid.UUID) error
}

// NotificationQueue is the persisted deadline/notification queue.
type NotificationQueue interface {
	Enqueue(ctx context.Context, rows []models.ScheduledNotification) error
	// Due lists unsent rows scheduled at or before now whose claim is absent
	// or older than staleBefore.
	Due(ctx context.Context, now, staleBefore time.Time, limit int) ([]models.ScheduledNotification, error)
	// Claim stamps claimed_at=now if the row is unsent and unclaimed (or its
	// claim is older than staleBefore). Only one concurrent caller wins.
	Claim(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error)
	// MarkSent sets sent_at once.
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, lastError *string) (bool, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.ScheduledNotification, error)
}

type PaymentLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	PaidTotal(ctx context.Context, bookingID uuid.UUID) (int64, error)
	// Record stores the event and reports false if it was already present.
	Record(ctx context.Context, ev *models.PaymentEvent) (bool, error)
}

// Scheduler derives queue rows from booking lifecycle events.
type Scheduler interface {
	OnConfirmed(ctx context.Context, b *models.Booking) error
	OnAutoCancelled(ctx context.Context, b *models.Booking) error
	// HasDeadline reports whether the booking's payment deadline row exists.
	HasDeadline(ctx context.Context, bookingID uuid.UUID) (bool, error)
}
