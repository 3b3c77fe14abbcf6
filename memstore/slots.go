// Package memstore holds in-process implementations of the booking stores.
// They honour the same compare-and-set contracts as the gorm repositories and
// back the unit tests and local runs without Postgres.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
)

type Slots struct {
	mu    sync.Mutex
	slots map[uuid.UUID]models.AvailabilitySlot
}

func NewSlots() *Slots {
	return &Slots{slots: make(map[uuid.UUID]models.AvailabilitySlot)}
}

func (s *Slots) Create(_ context.Context, slot *models.AvailabilitySlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	if slot.Status == "" {
		slot.Status = models.SlotFree
	}
	for _, existing := range s.slots {
		if existing.PerformerID == slot.PerformerID && existing.StartTime.Equal(slot.StartTime) {
			return models.ErrSlotConflict
		}
	}
	s.slots[slot.ID] = *slot
	return nil
}

func (s *Slots) Get(_ context.Context, id uuid.UUID) (*models.AvailabilitySlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &slot, nil
}

func (s *Slots) ListByPerformer(_ context.Context, performerID uuid.UUID, from, to time.Time) ([]models.AvailabilitySlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.AvailabilitySlot
	for _, slot := range s.slots {
		if slot.PerformerID != performerID {
			continue
		}
		if slot.StartTime.Before(from) || !slot.StartTime.Before(to) {
			continue
		}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Slots) Reserve(_ context.Context, slotID, bookingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserveLocked(slotID, bookingID)
}

func (s *Slots) reserveLocked(slotID, bookingID uuid.UUID) error {
	slot, ok := s.slots[slotID]
	if !ok {
		return models.ErrNotFound
	}
	if slot.Status != models.SlotFree {
		return models.ErrSlotConflict
	}
	slot.Status = models.SlotBooked
	slot.BookingID = &bookingID
	s.slots[slotID] = slot
	return nil
}

func (s *Slots) Release(_ context.Context, slotID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[slotID]
	if !ok || slot.Status != models.SlotBooked {
		return nil
	}
	slot.Status = models.SlotFree
	slot.BookingID = nil
	s.slots[slotID] = slot
	return nil
}

func (s *Slots) Reassign(_ context.Context, oldSlotID, newSlotID, bookingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.slots[oldSlotID]
	if !ok {
		return models.ErrNotFound
	}
	if old.Status != models.SlotBooked || old.BookingID == nil || *old.BookingID != bookingID {
		return models.ErrSlotConflict
	}
	if err := s.reserveLocked(newSlotID, bookingID); err != nil {
		return err
	}
	old.Status = models.SlotFree
	old.BookingID = nil
	s.slots[oldSlotID] = old
	return nil
}

func (s *Slots) Block(_ context.Context, slotID uuid.UUID) error {
	return s.swap(slotID, models.SlotFree, models.SlotBlocked)
}

func (s *Slots) Unblock(_ context.Context, slotID uuid.UUID) error {
	return s.swap(slotID, models.SlotBlocked, models.SlotFree)
}

func (s *Slots) swap(slotID uuid.UUID, from, to models.SlotStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[slotID]
	if !ok {
		return models.ErrNotFound
	}
	if slot.Status != from {
		return models.ErrSlotConflict
	}
	slot.Status = to
	s.slots[slotID] = slot
	return nil
}
