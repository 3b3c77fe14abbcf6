package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anjiri1684/marketplace_booking/memstore"
	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/anjiri1684/marketplace_booking/notifications"
	"github.com/anjiri1684/marketplace_booking/services"
	"github.com/anjiri1684/marketplace_booking/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testNow = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

type delivery struct {
	userID uuid.UUID
	msg    notifications.Message
}

type recorder struct {
	mu    sync.Mutex
	calls []delivery
	err   error
}

func (r *recorder) Deliver(_ context.Context, userID uuid.UUID, msg notifications.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, delivery{userID: userID, msg: msg})
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type world struct {
	clock    *utils.FakeClock
	slots    *memstore.Slots
	bookings *memstore.Bookings
	queue    *memstore.Queue
	svc      *services.BookingService
	out      *recorder

	customer  uuid.UUID
	performer uuid.UUID
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		clock:     utils.NewFakeClock(testNow),
		slots:     memstore.NewSlots(),
		bookings:  memstore.NewBookings(),
		queue:     memstore.NewQueue(),
		out:       &recorder{},
		customer:  uuid.New(),
		performer: uuid.New(),
	}
	w.svc = services.NewBookingService(services.BookingDeps{
		Slots:             w.slots,
		Bookings:          w.bookings,
		Proposals:         memstore.NewProposals(),
		Payments:          memstore.NewPayments(),
		Scheduler:         services.NewDeadlineScheduler(w.queue, w.clock, time.UTC, nil),
		Clock:             w.clock,
		PaymentDeadline:   2 * time.Hour,
		PrepaymentPercent: 20,
		Location:          time.UTC,
	})
	return w
}

func (w *world) processor(q services.NotificationQueue, log *zap.Logger, lease Lease) *QueueProcessor {
	return NewQueueProcessor(Deps{
		Queue:     q,
		Bookings:  w.svc,
		Canceller: w.svc,
		Deliverer: w.out,
		Lease:     lease,
		Clock:     w.clock,
		Logger:    log,
	}, Options{Concurrency: 4, ClaimTimeout: 5 * time.Minute})
}

// confirmedBooking books the 14:00 slot two days out and confirms it at testNow.
func (w *world) confirmedBooking(t *testing.T) (*models.Booking, *models.AvailabilitySlot) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2025, 5, 12, 14, 0, 0, 0, time.UTC)
	price := int64(10000)
	slot := &models.AvailabilitySlot{
		PerformerID: w.performer,
		Date:        models.DateOnly(start, time.UTC),
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Price:       &price,
	}
	if err := w.slots.Create(ctx, slot); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	b, err := w.svc.CreateBooking(ctx, services.CreateBookingInput{
		CustomerID:  w.customer,
		PerformerID: w.performer,
		SlotID:      slot.ID,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b, err = w.svc.PerformerConfirm(ctx, w.performer, b.ID); err != nil {
		t.Fatalf("PerformerConfirm: %v", err)
	}
	return b, slot
}

func (w *world) row(t *testing.T, bookingID uuid.UUID, kind models.NotificationKind) models.ScheduledNotification {
	t.Helper()
	rows, err := w.queue.ListByBooking(context.Background(), bookingID)
	if err != nil {
		t.Fatalf("ListByBooking: %v", err)
	}
	for _, r := range rows {
		if r.Kind == kind {
			return r
		}
	}
	t.Fatalf("no %s row for booking %s", kind, bookingID)
	return models.ScheduledNotification{}
}

func runOnce(t *testing.T, p *QueueProcessor) Stats {
	t.Helper()
	stats, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	return stats
}

func TestUnpaidBookingIsRemindedThenAutoCancelled(t *testing.T) {
	w := newWorld(t)
	b, slot := w.confirmedBooking(t)
	p := w.processor(w.queue, nil, nil)

	w.clock.Advance(time.Hour)
	if s := runOnce(t, p); s.Delivered != 1 {
		t.Fatalf("T+1h stats = %+v, want one reminder", s)
	}
	if got := w.out.calls[0]; got.userID != w.customer || got.msg.Kind != models.KindPaymentReminder1h {
		t.Fatalf("first delivery = %+v", got)
	}

	w.clock.Advance(50 * time.Minute)
	if s := runOnce(t, p); s.Delivered != 1 {
		t.Fatalf("T+1h50m stats = %+v, want one reminder", s)
	}

	w.clock.Advance(10 * time.Minute)
	if s := runOnce(t, p); s.AutoCancelled != 1 {
		t.Fatalf("T+2h stats = %+v, want one auto-cancel", s)
	}

	got, err := w.svc.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.BookingCancelled || got.CancelledBy == nil || *got.CancelledBy != models.ActorSystem {
		t.Fatalf("booking = %s by %v, want cancelled by system", got.Status, got.CancelledBy)
	}
	s, _ := w.slots.Get(context.Background(), slot.ID)
	if s.Status != models.SlotFree || s.BookingID != nil {
		t.Fatalf("slot = %s held by %v, want free", s.Status, s.BookingID)
	}
	if r := w.row(t, b.ID, models.KindPaymentDeadlineExpired); r.SentAt == nil {
		t.Fatalf("deadline row not marked sent")
	}

	// The cancellation notices were queued for now.
	if s := runOnce(t, p); s.Delivered != 2 {
		t.Fatalf("notice stats = %+v, want two notices", s)
	}
	if s := runOnce(t, p); s.Due != 0 {
		t.Fatalf("re-run stats = %+v, want nothing due", s)
	}

	// Visit reminders for the cancelled booking are dropped.
	w.clock.Set(time.Date(2025, 5, 11, 14, 0, 0, 0, time.UTC))
	if s := runOnce(t, p); s.Skipped != 2 || s.Delivered != 0 {
		t.Fatalf("visit reminder stats = %+v, want two skipped", s)
	}
}

func TestPaidBookingGetsNoPaymentReminders(t *testing.T) {
	w := newWorld(t)
	b, _ := w.confirmedBooking(t)
	p := w.processor(w.queue, nil, nil)

	if _, err := w.svc.RecordPayment(context.Background(), services.PaymentSignal{
		EventID: "evt-1", BookingID: b.ID, Amount: b.PrepaymentAmount,
	}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	w.clock.Advance(time.Hour)
	if s := runOnce(t, p); s.Skipped != 1 || w.out.count() != 0 {
		t.Fatalf("stats = %+v deliveries = %d, want reminder skipped", s, w.out.count())
	}
	if r := w.row(t, b.ID, models.KindPaymentReminder1h); r.SentAt == nil {
		t.Fatalf("skipped reminder should still be marked sent")
	}

	w.clock.Advance(time.Hour)
	runOnce(t, p)
	got, _ := w.svc.Get(context.Background(), b.ID)
	if got.Status != models.BookingConfirmed {
		t.Fatalf("prepaid booking status = %s, want confirmed", got.Status)
	}
}

func TestConcurrentProcessorsDeliverEachRowOnce(t *testing.T) {
	w := newWorld(t)
	b, _ := w.confirmedBooking(t)

	rows := make([]models.ScheduledNotification, 40)
	for i := range rows {
		rows[i] = models.ScheduledNotification{
			ID:           uuid.New(),
			UserID:       w.customer,
			BookingID:    b.ID,
			Kind:         models.KindVisitReminder1d,
			ScheduledFor: testNow,
		}
	}
	if err := w.queue.Enqueue(context.Background(), rows); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	a, c := w.processor(w.queue, nil, nil), w.processor(w.queue, nil, nil)
	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, p := range []*QueueProcessor{a, c} {
		wg.Add(1)
		go func(p *QueueProcessor) {
			defer wg.Done()
			s, err := p.RunOnce(context.Background())
			if err != nil {
				t.Errorf("RunOnce: %v", err)
			}
			delivered.Add(int64(s.Delivered))
		}(p)
	}
	wg.Wait()

	if delivered.Load() != 40 || w.out.count() != 40 {
		t.Fatalf("delivered = %d, calls = %d, want 40 each", delivered.Load(), w.out.count())
	}
}

func TestDeliveryFailureIsLoggedAndRecorded(t *testing.T) {
	w := newWorld(t)
	b, _ := w.confirmedBooking(t)
	w.out.err = errors.New("smtp down")

	core, logs := observer.New(zap.InfoLevel)
	p := w.processor(w.queue, zap.New(core), nil)

	w.clock.Advance(time.Hour)
	if s := runOnce(t, p); s.Failed != 1 {
		t.Fatalf("stats = %+v, want one failure", s)
	}
	r := w.row(t, b.ID, models.KindPaymentReminder1h)
	if r.SentAt == nil || r.LastError == nil || !strings.Contains(*r.LastError, "smtp down") {
		t.Fatalf("row = %+v, want sent with last_error", r)
	}
	if n := logs.FilterMessage("notification delivery failed").Len(); n != 1 {
		t.Fatalf("failure log entries = %d, want 1", n)
	}
}

type flakyQueue struct {
	*memstore.Queue
	failures atomic.Int32
}

func (q *flakyQueue) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, lastError *string) (bool, error) {
	if q.failures.Add(-1) >= 0 {
		return false, errors.New("connection reset")
	}
	return q.Queue.MarkSent(ctx, id, sentAt, lastError)
}

func TestStaleClaimIsRetried(t *testing.T) {
	w := newWorld(t)
	b, _ := w.confirmedBooking(t)
	q := &flakyQueue{Queue: w.queue}
	q.failures.Store(1)
	p := w.processor(q, nil, nil)

	w.clock.Advance(time.Hour)
	if _, err := p.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected mark-sent failure")
	}
	if s := runOnce(t, p); s.Due != 0 {
		t.Fatalf("freshly claimed row was due again: %+v", s)
	}

	w.clock.Advance(5*time.Minute + time.Second)
	if s := runOnce(t, p); s.Delivered != 1 {
		t.Fatalf("stats = %+v, want the stale row retried", s)
	}
	if w.out.count() != 2 {
		t.Fatalf("deliveries = %d, want 2", w.out.count())
	}
	if r := w.row(t, b.ID, models.KindPaymentReminder1h); r.SentAt == nil {
		t.Fatalf("retried row not marked sent")
	}
}

func TestRowForMissingBookingIsClosed(t *testing.T) {
	w := newWorld(t)
	orphan := models.ScheduledNotification{
		ID:           uuid.New(),
		UserID:       w.customer,
		BookingID:    uuid.New(),
		Kind:         models.KindVisitReminder5h,
		ScheduledFor: testNow,
	}
	if err := w.queue.Enqueue(context.Background(), []models.ScheduledNotification{orphan}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if s := runOnce(t, w.processor(w.queue, nil, nil)); s.Skipped != 1 {
		t.Fatalf("stats = %+v, want skipped", s)
	}
	r := w.row(t, orphan.BookingID, models.KindVisitReminder5h)
	if r.SentAt == nil || r.LastError == nil {
		t.Fatalf("orphan row = %+v, want closed with last_error", r)
	}
}

type fakeLease struct{ free bool }

func (l *fakeLease) Acquire(context.Context, string, time.Duration) (bool, error) {
	return l.free, nil
}

func TestTickRespectsLease(t *testing.T) {
	w := newWorld(t)
	b, _ := w.confirmedBooking(t)
	lease := &fakeLease{}
	p := w.processor(w.queue, nil, lease)

	w.clock.Advance(time.Hour)
	p.Tick(context.Background())
	if r := w.row(t, b.ID, models.KindPaymentReminder1h); r.SentAt != nil || w.out.count() != 0 {
		t.Fatalf("tick ran without the lease")
	}

	lease.free = true
	p.Tick(context.Background())
	if w.out.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", w.out.count())
	}
}
