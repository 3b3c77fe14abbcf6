package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const TimeOfDayLayout = "15:04"

type Booking struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Reference   string     `gorm:"size:16;uniqueIndex" json:"reference"`
	CustomerID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	PerformerID uuid.UUID  `gorm:"type:uuid;not null;index" json:"performer_id"`
	SlotID      *uuid.UUID `gorm:"type:uuid" json:"slot_id,omitempty"`

	Status        BookingStatus `gorm:"size:20;not null;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"size:20;not null" json:"payment_status"`

	BookingDate time.Time `gorm:"type:date;not null" json:"booking_date"`
	BookingTime string    `gorm:"size:5;not null" json:"booking_time"`

	// Money is kept in minor currency units.
	PriceTotal       int64 `gorm:"not null" json:"price_total"`
	PrepaymentAmount int64 `gorm:"not null" json:"prepayment_amount"`

	PaymentDeadline    *time.Time `json:"payment_deadline,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancellationReason *string    `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancelledBy        *Actor     `gorm:"size:20" json:"cancelled_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// VisitAt combines BookingDate and BookingTime into an instant in loc.
func (b *Booking) VisitAt(loc *time.Location) (time.Time, error) {
	tod, err := time.Parse(TimeOfDayLayout, b.BookingTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("booking %s: bad booking_time %q: %w", b.ID, b.BookingTime, err)
	}
	y, m, d := b.BookingDate.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, loc), nil
}

// DateOnly truncates t to midnight UTC of its calendar day in loc.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Reschedule moves a booking to a new date, time and optionally price and
// slot. A nil SlotID takes the booking off the slot grid.
type Reschedule struct {
	Date       time.Time
	Time       string
	Price      *int64
	Prepayment *int64
	SlotID     *uuid.UUID
}

// BookingTransition is a guarded status change: it applies only while the
// stored status is one of From (and, when set, the payment status is one of
// PaymentIn). With CheckSlot it also requires slot_id to equal HeldSlot, nil
// meaning no slot.
type BookingTransition struct {
	From      []BookingStatus
	To        BookingStatus
	PaymentIn []PaymentStatus
	CheckSlot bool
	HeldSlot  *uuid.UUID

	ConfirmedAt        *time.Time
	PaymentDeadline    *time.Time
	CancellationReason *string
	CancelledBy        *Actor
	Reschedule         *Reschedule
}

// Permits reports whether the transition would apply to b.
func (t BookingTransition) Permits(b *Booking) bool {
	if !containsStatus(t.From, b.Status) {
		return false
	}
	if t.CheckSlot && !sameSlot(t.HeldSlot, b.SlotID) {
		return false
	}
	if len(t.PaymentIn) == 0 {
		return true
	}
	for _, p := range t.PaymentIn {
		if p == b.PaymentStatus {
			return true
		}
	}
	return false
}

// Apply copies the transition's changes onto b.
func (t BookingTransition) Apply(b *Booking) {
	b.Status = t.To
	if t.ConfirmedAt != nil {
		at := *t.ConfirmedAt
		b.ConfirmedAt = &at
	}
	if t.PaymentDeadline != nil {
		dl := *t.PaymentDeadline
		b.PaymentDeadline = &dl
	}
	if t.CancellationReason != nil {
		reason := *t.CancellationReason
		b.CancellationReason = &reason
	}
	if t.CancelledBy != nil {
		by := *t.CancelledBy
		b.CancelledBy = &by
	}
	if r := t.Reschedule; r != nil {
		b.BookingDate = r.Date
		b.BookingTime = r.Time
		if r.Price != nil {
			b.PriceTotal = *r.Price
		}
		if r.Prepayment != nil {
			b.PrepaymentAmount = *r.Prepayment
		}
		if r.SlotID != nil {
			id := *r.SlotID
			b.SlotID = &id
		} else {
			b.SlotID = nil
		}
	}
}

func sameSlot(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func containsStatus(list []BookingStatus, s BookingStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
