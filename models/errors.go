package models

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrSlotConflict is returned by a slot store when a compare-and-set on
	// slot status finds the slot no longer in the expected state.
	ErrSlotConflict = errors.New("slot is no longer free")
)
