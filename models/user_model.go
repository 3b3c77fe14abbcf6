package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of the profile directory this service reads to address
// notifications. Profiles are owned elsewhere.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	FullName string    `gorm:"size:255;not null" json:"full_name"`
	Email    string    `gorm:"size:255;not null;unique" json:"email"`
	Phone    *string   `gorm:"size:32" json:"phone,omitempty"`
	Role     string    `gorm:"size:20;not null" json:"role"`
	TimeZone *string   `gorm:"size:100" json:"time_zone,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
