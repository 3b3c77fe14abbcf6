package memstore

import (
	"context"
	"sync"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
)

type Payments struct {
	mu     sync.Mutex
	events map[string]models.PaymentEvent
}

func NewPayments() *Payments {
	return &Payments{events: make(map[string]models.PaymentEvent)}
}

func (p *Payments) Seen(_ context.Context, eventID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.events[eventID]
	return ok, nil
}

func (p *Payments) PaidTotal(_ context.Context, bookingID uuid.UUID) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var total int64
	for _, ev := range p.events {
		if ev.BookingID == bookingID {
			total += ev.Amount
		}
	}
	return total, nil
}

func (p *Payments) Record(_ context.Context, ev *models.PaymentEvent) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.events[ev.EventID]; ok {
		return false, nil
	}
	p.events[ev.EventID] = *ev
	return true, nil
}

// Contacts is an in-memory user directory.
type Contacts struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func NewContacts(users ...models.User) *Contacts {
	c := &Contacts{users: make(map[uuid.UUID]models.User)}
	for _, u := range users {
		c.users[u.ID] = u
	}
	return c
}

func (c *Contacts) Contact(_ context.Context, userID uuid.UUID) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}
