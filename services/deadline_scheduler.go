package services

import (
	"context"
	"fmt"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/anjiri1684/marketplace_booking/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var visitReminders = []struct {
	kind   models.NotificationKind
	before time.Duration
}{
	{models.KindVisitReminder3d, 72 * time.Hour},
	{models.KindVisitReminder1d, 24 * time.Hour},
	{models.KindVisitReminder5h, 5 * time.Hour},
}

// DeadlineScheduler turns booking lifecycle events into queue rows.
type DeadlineScheduler struct {
	queue NotificationQueue
	clock utils.Clock
	loc   *time.Location
	log   *zap.Logger
}

func NewDeadlineScheduler(queue NotificationQueue, clock utils.Clock, loc *time.Location, log *zap.Logger) *DeadlineScheduler {
	if clock == nil {
		clock = utils.RealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DeadlineScheduler{queue: queue, clock: clock, loc: loc, log: log}
}

// Plan computes the rows for a freshly confirmed booking. Reminders that would
// already be in the past are dropped; the deadline row never is.
func (d *DeadlineScheduler) Plan(b *models.Booking, now time.Time) ([]models.ScheduledNotification, error) {
	var rows []models.ScheduledNotification
	add := func(user uuid.UUID, kind models.NotificationKind, at time.Time) {
		rows = append(rows, models.ScheduledNotification{
			ID:           uuid.New(),
			UserID:       user,
			BookingID:    b.ID,
			Kind:         kind,
			ScheduledFor: at.UTC(),
		})
	}

	if dl := b.PaymentDeadline; dl != nil {
		if at := dl.Add(-time.Hour); at.After(now) {
			add(b.CustomerID, models.KindPaymentReminder1h, at)
		}
		if at := dl.Add(-10 * time.Minute); at.After(now) {
			add(b.CustomerID, models.KindPaymentReminder10m, at)
		}
		add(b.CustomerID, models.KindPaymentDeadlineExpired, *dl)
	}

	visit, err := b.VisitAt(d.loc)
	if err != nil {
		return nil, err
	}
	for _, r := range visitReminders {
		at := visit.Add(-r.before)
		if !at.After(now) {
			continue
		}
		add(b.CustomerID, r.kind, at)
		add(b.PerformerID, r.kind, at)
	}
	return rows, nil
}

func (d *DeadlineScheduler) OnConfirmed(ctx context.Context, b *models.Booking) error {
	rows, err := d.Plan(b, d.clock.Now())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if err := d.queue.Enqueue(ctx, rows); err != nil {
		return fmt.Errorf("enqueue %d rows: %w", len(rows), err)
	}
	d.log.Debug("deadlines scheduled", zap.Stringer("booking_id", b.ID), zap.Int("rows", len(rows)))
	return nil
}

// OnAutoCancelled queues an immediate notice to both parties.
func (d *DeadlineScheduler) OnAutoCancelled(ctx context.Context, b *models.Booking) error {
	now := d.clock.Now().UTC()
	rows := []models.ScheduledNotification{
		{ID: uuid.New(), UserID: b.CustomerID, BookingID: b.ID, Kind: models.KindAutoCancelledNotice, ScheduledFor: now},
		{ID: uuid.New(), UserID: b.PerformerID, BookingID: b.ID, Kind: models.KindAutoCancelledNotice, ScheduledFor: now},
	}
	return d.queue.Enqueue(ctx, rows)
}

func (d *DeadlineScheduler) HasDeadline(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	rows, err := d.queue.ListByBooking(ctx, bookingID)
	if err != nil {
		return false, fmt.Errorf("list queue rows: %w", err)
	}
	for _, r := range rows {
		if r.Kind == models.KindPaymentDeadlineExpired {
			return true, nil
		}
	}
	return false, nil
}
