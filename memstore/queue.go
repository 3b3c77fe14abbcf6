package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
)

// Queue keeps notification rows ordered by scheduled_for.
type Queue struct {
	mu   sync.Mutex
	rows []*models.ScheduledNotification
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(_ context.Context, rows []models.ScheduledNotification) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range rows {
		row := rows[i]
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		at := sort.Search(len(q.rows), func(j int) bool {
			return q.rows[j].ScheduledFor.After(row.ScheduledFor)
		})
		q.rows = append(q.rows, nil)
		copy(q.rows[at+1:], q.rows[at:])
		q.rows[at] = &row
	}
	return nil
}

func claimable(row *models.ScheduledNotification, staleBefore time.Time) bool {
	return row.SentAt == nil && (row.ClaimedAt == nil || row.ClaimedAt.Before(staleBefore))
}

func (q *Queue) Due(_ context.Context, now, staleBefore time.Time, limit int) ([]models.ScheduledNotification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []models.ScheduledNotification
	for _, row := range q.rows {
		if row.ScheduledFor.After(now) {
			break
		}
		if !claimable(row, staleBefore) {
			continue
		}
		out = append(out, *row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (q *Queue) find(id uuid.UUID) *models.ScheduledNotification {
	for _, row := range q.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (q *Queue) Claim(_ context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	row := q.find(id)
	if row == nil || !claimable(row, staleBefore) {
		return false, nil
	}
	at := now
	row.ClaimedAt = &at
	return true, nil
}

func (q *Queue) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time, lastError *string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	row := q.find(id)
	if row == nil || row.SentAt != nil {
		return false, nil
	}
	at := sentAt
	row.SentAt = &at
	row.LastError = lastError
	return true, nil
}

func (q *Queue) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]models.ScheduledNotification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []models.ScheduledNotification
	for _, row := range q.rows {
		if row.BookingID == bookingID {
			out = append(out, *row)
		}
	}
	return out, nil
}
