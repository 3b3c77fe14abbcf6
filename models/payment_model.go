package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEvent is the ledger of processed gateway confirmations. The gateway
// event id is the primary key, so a replayed webhook inserts nothing. Status
// is the booking's payment status when the event arrived.
type PaymentEvent struct {
	EventID     string        `gorm:"size:255;primary_key" json:"event_id"`
	BookingID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"booking_id"`
	Amount      int64         `gorm:"not null" json:"amount"`
	Status      PaymentStatus `gorm:"size:20;not null" json:"status"`
	ProcessedAt time.Time     `gorm:"not null" json:"processed_at"`
}
