package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Proposal is one alternative date/time a performer offers instead of the
// requested one.
type Proposal struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	BookingID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"booking_id"`
	ProposedDate  time.Time      `gorm:"type:date;not null" json:"proposed_date"`
	ProposedTime  string         `gorm:"size:5;not null" json:"proposed_time"`
	ProposedPrice *int64         `json:"proposed_price,omitempty"`
	SlotID        *uuid.UUID     `gorm:"type:uuid" json:"slot_id,omitempty"`
	Status        ProposalStatus `gorm:"size:20;not null" json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

func (Proposal) TableName() string { return "booking_proposals" }

func (p *Proposal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
