package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
)

type Proposals struct {
	mu        sync.Mutex
	proposals map[uuid.UUID]models.Proposal
	seq       map[uuid.UUID]int
	next      int
}

func NewProposals() *Proposals {
	return &Proposals{
		proposals: make(map[uuid.UUID]models.Proposal),
		seq:       make(map[uuid.UUID]int),
	}
}

func (s *Proposals) ReplacePending(_ context.Context, bookingID uuid.UUID, proposals []models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.proposals {
		if p.BookingID == bookingID && p.Status == models.ProposalPending {
			delete(s.proposals, id)
			delete(s.seq, id)
		}
	}
	for _, p := range proposals {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.BookingID = bookingID
		if p.Status == "" {
			p.Status = models.ProposalPending
		}
		s.proposals[p.ID] = p
		s.next++
		s.seq[p.ID] = s.next
	}
	return nil
}

func (s *Proposals) Get(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (s *Proposals) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Proposal
	for _, p := range s.proposals {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] < s.seq[out[j].ID] })
	return out, nil
}

func (s *Proposals) Resolve(_ context.Context, bookingID, acceptedID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.proposals {
		if p.BookingID != bookingID || p.Status != models.ProposalPending {
			continue
		}
		if id == acceptedID {
			p.Status = models.ProposalAccepted
		} else {
			p.Status = models.ProposalRejected
		}
		s.proposals[id] = p
	}
	return nil
}
