package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AvailabilitySlot is one bookable performer-day-hour.
type AvailabilitySlot struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	PerformerID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_slot_performer_start" json:"performer_id"`
	Date        time.Time  `gorm:"type:date;not null" json:"date"`
	StartTime   time.Time  `gorm:"not null;uniqueIndex:idx_slot_performer_start" json:"start_time"`
	EndTime     time.Time  `gorm:"not null" json:"end_time"`
	Status      SlotStatus `gorm:"size:20;not null;index" json:"status"`
	Price       *int64     `json:"price,omitempty"`
	BookingID   *uuid.UUID `gorm:"type:uuid" json:"booking_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *AvailabilitySlot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SlotFree
	}
	return nil
}
