package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
)

type Bookings struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]models.Booking
}

func NewBookings() *Bookings {
	return &Bookings{bookings: make(map[uuid.UUID]models.Booking)}
}

func (s *Bookings) Create(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if _, exists := s.bookings[b.ID]; exists {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *Bookings) Get(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &b, nil
}

func (s *Bookings) ReferenceExists(_ context.Context, reference string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bookings {
		if b.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (s *Bookings) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]models.Booking, error) {
	return s.filter(func(b models.Booking) bool { return b.CustomerID == customerID }), nil
}

func (s *Bookings) ListByPerformer(_ context.Context, performerID uuid.UUID) ([]models.Booking, error) {
	return s.filter(func(b models.Booking) bool { return b.PerformerID == performerID }), nil
}

func (s *Bookings) filter(keep func(models.Booking) bool) []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Booking
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Bookings) Transition(_ context.Context, id uuid.UUID, t models.BookingTransition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return false, nil
	}
	if !t.Permits(&b) {
		return false, nil
	}
	t.Apply(&b)
	s.bookings[id] = b
	return true, nil
}

func (s *Bookings) SetPaymentStatus(_ context.Context, id uuid.UUID, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok || b.Status.Terminal() {
		return false, nil
	}
	for _, p := range from {
		if b.PaymentStatus == p {
			b.PaymentStatus = to
			s.bookings[id] = b
			return true, nil
		}
	}
	return false, nil
}
