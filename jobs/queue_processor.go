package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/anjiri1684/marketplace_booking/notifications"
	"github.com/anjiri1684/marketplace_booking/services"
	"github.com/anjiri1684/marketplace_booking/utils"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	tickLeaseKey      = "booking:queue-processor:tick"
	deadlineReason    = "payment deadline expired"
	defaultBatchSize  = 100
	defaultClaimAfter = 5 * time.Minute
)

type BookingReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

type Canceller interface {
	AutoCancel(ctx context.Context, bookingID uuid.UUID, reason string) (bool, error)
}

type Deps struct {
	Queue     services.NotificationQueue
	Bookings  BookingReader
	Canceller Canceller
	Deliverer notifications.Deliverer
	Lease     Lease
	Clock     utils.Clock
	Logger    *zap.Logger
}

type Options struct {
	Schedule     string
	BatchSize    int
	Concurrency  int
	ClaimTimeout time.Duration
	// RatePerSec paces outbound deliveries; zero means unlimited.
	RatePerSec float64
	LeaseTTL   time.Duration
	Location   *time.Location
}

// Stats summarises one RunOnce pass.
type Stats struct {
	Due           int
	Claimed       int
	Lost          int
	Delivered     int
	Failed        int
	Skipped       int
	AutoCancelled int
}

type tally struct {
	claimed, lost, delivered, failed, skipped, autoCancelled atomic.Int64
}

func (t *tally) stats(due int) Stats {
	return Stats{
		Due:           due,
		Claimed:       int(t.claimed.Load()),
		Lost:          int(t.lost.Load()),
		Delivered:     int(t.delivered.Load()),
		Failed:        int(t.failed.Load()),
		Skipped:       int(t.skipped.Load()),
		AutoCancelled: int(t.autoCancelled.Load()),
	}
}

// QueueProcessor drains due rows from the notification queue. Several
// processors may run at once; the claim compare-and-set keeps each row with
// one of them.
type QueueProcessor struct {
	queue     services.NotificationQueue
	bookings  BookingReader
	canceller Canceller
	deliverer notifications.Deliverer
	lease     Lease
	clock     utils.Clock
	log       *zap.Logger
	limiter   *rate.Limiter
	opts      Options
}

func NewQueueProcessor(d Deps, opts Options) *QueueProcessor {
	if opts.Schedule == "" {
		opts.Schedule = "@every 1m"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ClaimTimeout <= 0 {
		opts.ClaimTimeout = defaultClaimAfter
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	p := &QueueProcessor{
		queue:     d.Queue,
		bookings:  d.Bookings,
		canceller: d.Canceller,
		deliverer: d.Deliverer,
		lease:     d.Lease,
		clock:     d.Clock,
		log:       d.Logger,
		opts:      opts,
	}
	if p.clock == nil {
		p.clock = utils.RealClock()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if opts.RatePerSec > 0 {
		burst := int(opts.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	return p
}

// Start runs Tick on the configured cron schedule until ctx is done.
// Overlapping ticks are allowed.
func (p *QueueProcessor) Start(ctx context.Context) (*cron.Cron, error) {
	cronLog := cron.PrintfLogger(zap.NewStdLog(p.log.Named("cron")))
	c := cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog)))

	if _, err := c.AddFunc(p.opts.Schedule, func() { p.Tick(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule queue processor %q: %w", p.opts.Schedule, err)
	}
	c.Start()
	p.log.Info("✅ Queue processor scheduled", zap.String("schedule", p.opts.Schedule))

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}

// Tick is one scheduled run. When a lease is configured and another worker
// holds it, the tick is skipped.
func (p *QueueProcessor) Tick(ctx context.Context) {
	if p.lease != nil {
		ok, err := p.lease.Acquire(ctx, tickLeaseKey, p.opts.LeaseTTL)
		switch {
		case err != nil:
			p.log.Warn("tick lease unavailable, processing anyway", zap.Error(err))
		case !ok:
			p.log.Debug("tick lease held elsewhere, skipping")
			return
		}
	}

	stats, err := p.RunOnce(ctx)
	if err != nil {
		p.log.Error("queue pass failed", zap.Error(err), zap.Any("stats", stats))
		return
	}
	if stats.Due > 0 {
		p.log.Info("queue pass done", zap.Any("stats", stats))
	}
}

// RunOnce claims and dispatches one batch of due rows.
func (p *QueueProcessor) RunOnce(ctx context.Context) (Stats, error) {
	now := p.clock.Now()
	staleBefore := now.Add(-p.opts.ClaimTimeout)

	rows, err := p.queue.Due(ctx, now, staleBefore, p.opts.BatchSize)
	if err != nil {
		return Stats{}, fmt.Errorf("load due rows: %w", err)
	}

	var t tally
	g := new(errgroup.Group)
	g.SetLimit(p.opts.Concurrency)
	for i := range rows {
		row := rows[i]
		g.Go(func() error {
			return p.process(ctx, row, now, staleBefore, &t)
		})
	}
	err = g.Wait()
	return t.stats(len(rows)), err
}

func (p *QueueProcessor) process(ctx context.Context, row models.ScheduledNotification, now, staleBefore time.Time, t *tally) error {
	log := p.log.With(
		zap.Stringer("notification_id", row.ID),
		zap.Stringer("booking_id", row.BookingID),
		zap.String("kind", string(row.Kind)),
	)

	claimed, err := p.queue.Claim(ctx, row.ID, now, staleBefore)
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		return fmt.Errorf("claim %s: %w", row.ID, err)
	}
	if !claimed {
		t.lost.Add(1)
		return nil
	}
	t.claimed.Add(1)

	lastErr, err := p.dispatch(ctx, row, log, t)
	if err != nil {
		// Left claimed; the row is retried once the claim goes stale.
		log.Error("dispatch failed", zap.Error(err))
		return fmt.Errorf("dispatch %s: %w", row.ID, err)
	}

	sent, err := p.queue.MarkSent(ctx, row.ID, p.clock.Now(), lastErr)
	if err != nil {
		log.Error("mark sent failed", zap.Error(err))
		return fmt.Errorf("mark sent %s: %w", row.ID, err)
	}
	if !sent {
		log.Warn("row was already marked sent")
	}
	return nil
}

// dispatch acts on one claimed row. A non-nil error leaves the row unsent;
// a non-nil *string is a delivery failure recorded on the row.
func (p *QueueProcessor) dispatch(ctx context.Context, row models.ScheduledNotification, log *zap.Logger, t *tally) (*string, error) {
	b, err := p.bookings.Get(ctx, row.BookingID)
	if errors.Is(err, models.ErrNotFound) {
		t.skipped.Add(1)
		msg := "booking not found"
		log.Warn(msg)
		return &msg, nil
	}
	if err != nil {
		return nil, err
	}

	switch {
	case row.Kind == models.KindPaymentDeadlineExpired:
		changed, err := p.canceller.AutoCancel(ctx, b.ID, deadlineReason)
		if err != nil {
			return nil, err
		}
		if changed {
			t.autoCancelled.Add(1)
		} else {
			t.skipped.Add(1)
		}
		return nil, nil
	case row.Kind.IsPaymentReminder() && !paymentStillDue(b):
		t.skipped.Add(1)
		return nil, nil
	case row.Kind.IsVisitReminder() && b.Status != models.BookingConfirmed:
		t.skipped.Add(1)
		return nil, nil
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	msg := notifications.Compose(row.Kind, b, p.opts.Location)
	if err := p.deliverer.Deliver(ctx, row.UserID, msg); err != nil {
		t.failed.Add(1)
		log.Warn("notification delivery failed", zap.Stringer("user_id", row.UserID), zap.Error(err))
		reason := err.Error()
		return &reason, nil
	}
	t.delivered.Add(1)
	return nil, nil
}

func paymentStillDue(b *models.Booking) bool {
	if b.PaymentStatus != models.PaymentNotPaid {
		return false
	}
	return b.Status == models.BookingConfirmed || b.Status == models.BookingCustomerAccepted
}
