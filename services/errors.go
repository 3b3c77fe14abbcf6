package services

import (
	"errors"
	"fmt"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound aliases the store sentinel so callers only import services.
	ErrNotFound = models.ErrNotFound

	ErrSlotUnavailable           = errors.New("this time slot was just taken")
	ErrInvalidTransition         = errors.New("invalid booking transition")
	ErrProposalNoLongerAvailable = errors.New("proposed time is no longer available")
	ErrForbidden                 = errors.New("booking belongs to another user")
	ErrValidation                = errors.New("validation failed")
)

// TransitionError reports an operation attempted from a status that does not
// allow it.
type TransitionError struct {
	BookingID uuid.UUID
	From      models.BookingStatus
	Action    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s booking %s in status %s", e.Action, e.BookingID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}
