package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduledNotification is a row in the deadline/notification queue. Rows are
// never deleted; SentAt is set at most once.
type ScheduledNotification struct {
	ID           uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	UserID       uuid.UUID        `gorm:"type:uuid;not null" json:"user_id"`
	BookingID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"booking_id"`
	Kind         NotificationKind `gorm:"size:40;not null" json:"kind"`
	ScheduledFor time.Time        `gorm:"not null;index:idx_queue_due,priority:2" json:"scheduled_for"`
	ClaimedAt    *time.Time       `json:"claimed_at,omitempty"`
	SentAt       *time.Time       `gorm:"index:idx_queue_due,priority:1" json:"sent_at,omitempty"`
	LastError    *string          `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (ScheduledNotification) TableName() string { return "notification_queue" }

func (n *ScheduledNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
