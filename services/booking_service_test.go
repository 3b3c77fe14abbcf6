package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/marketplace_booking/memstore"
	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/anjiri1684/marketplace_booking/utils"
	"github.com/google/uuid"
)

var testNow = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock     *utils.FakeClock
	slots     *memstore.Slots
	bookings  *memstore.Bookings
	proposals *memstore.Proposals
	queue     *memstore.Queue
	payments  *memstore.Payments
	scheduler *DeadlineScheduler
	deps      BookingDeps
	svc       *BookingService

	customer  uuid.UUID
	performer uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:     utils.NewFakeClock(testNow),
		slots:     memstore.NewSlots(),
		bookings:  memstore.NewBookings(),
		proposals: memstore.NewProposals(),
		queue:     memstore.NewQueue(),
		payments:  memstore.NewPayments(),
		customer:  uuid.New(),
		performer: uuid.New(),
	}
	f.scheduler = NewDeadlineScheduler(f.queue, f.clock, time.UTC, nil)
	f.deps = BookingDeps{
		Slots:             f.slots,
		Bookings:          f.bookings,
		Proposals:         f.proposals,
		Payments:          f.payments,
		Scheduler:         f.scheduler,
		Clock:             f.clock,
		PaymentDeadline:   2 * time.Hour,
		PrepaymentPercent: 20,
		Location:          time.UTC,
	}
	f.svc = NewBookingService(f.deps)
	return f
}

// with builds a second service over the same stores with some of them
// wrapped.
func (f *fixture) with(wrap func(d *BookingDeps)) *BookingService {
	d := f.deps
	wrap(&d)
	return NewBookingService(d)
}

func (f *fixture) slot(t *testing.T, start time.Time) *models.AvailabilitySlot {
	t.Helper()
	price := int64(10000)
	s := &models.AvailabilitySlot{
		PerformerID: f.performer,
		Date:        models.DateOnly(start, time.UTC),
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Price:       &price,
	}
	if err := f.slots.Create(context.Background(), s); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return s
}

func (f *fixture) book(t *testing.T, slot *models.AvailabilitySlot) *models.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), CreateBookingInput{
		CustomerID:  f.customer,
		PerformerID: f.performer,
		SlotID:      slot.ID,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

func (f *fixture) slotState(t *testing.T, id uuid.UUID) *models.AvailabilitySlot {
	t.Helper()
	s, err := f.slots.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	return s
}

func (f *fixture) booking(t *testing.T, id uuid.UUID) *models.Booking {
	t.Helper()
	b, err := f.bookings.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	return b
}

func assertHeldBy(t *testing.T, s *models.AvailabilitySlot, bookingID uuid.UUID) {
	t.Helper()
	if s.Status != models.SlotBooked || s.BookingID == nil || *s.BookingID != bookingID {
		t.Fatalf("slot %s: status=%s booking=%v, want booked by %s", s.ID, s.Status, s.BookingID, bookingID)
	}
}

func assertFree(t *testing.T, s *models.AvailabilitySlot) {
	t.Helper()
	if s.Status != models.SlotFree || s.BookingID != nil {
		t.Fatalf("slot %s: status=%s booking=%v, want free", s.ID, s.Status, s.BookingID)
	}
}

func TestCreateBookingReservesSlot(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(t, testNow.Add(72*time.Hour))

	b := f.book(t, slot)

	if b.Status != models.BookingPending || b.PaymentStatus != models.PaymentNotPaid {
		t.Fatalf("status=%s payment=%s", b.Status, b.PaymentStatus)
	}
	if b.PriceTotal != 10000 || b.PrepaymentAmount != 2000 {
		t.Errorf("price=%d prepayment=%d", b.PriceTotal, b.PrepaymentAmount)
	}
	if b.BookingTime != "09:00" || !b.BookingDate.Equal(time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date=%s time=%s", b.BookingDate, b.BookingTime)
	}
	if b.Reference == "" {
		t.Errorf("expected a booking reference")
	}
	assertHeldBy(t, f.slotState(t, slot.ID), b.ID)
}

func TestCreateBookingRejectsTakenAndForeignSlots(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(t, testNow.Add(24*time.Hour))
	f.book(t, slot)

	_, err := f.svc.CreateBooking(context.Background(), CreateBookingInput{
		CustomerID: uuid.New(), PerformerID: f.performer, SlotID: slot.ID,
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}

	other := f.slot(t, testNow.Add(48*time.Hour))
	_, err = f.svc.CreateBooking(context.Background(), CreateBookingInput{
		CustomerID: f.customer, PerformerID: uuid.New(), SlotID: other.ID,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	_, err = f.svc.CreateBooking(context.Background(), CreateBookingInput{
		CustomerID: f.customer, PerformerID: f.performer, SlotID: uuid.New(),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentCreateBookingAllowsOneWinner(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(t, testNow.Add(24*time.Hour))

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []uuid.UUID
		unavail  int
		otherErr error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := f.svc.CreateBooking(context.Background(), CreateBookingInput{
				CustomerID: uuid.New(), PerformerID: f.performer, SlotID: slot.ID,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, b.ID)
			case errors.Is(err, ErrSlotUnavailable):
				unavail++
			default:
				otherErr = err
			}
		}()
	}
	wg.Wait()

	if otherErr != nil {
		t.Fatalf("unexpected error: %v", otherErr)
	}
	if len(winners) != 1 || unavail != n-1 {
		t.Fatalf("winners=%d unavailable=%d", len(winners), unavail)
	}
	assertHeldBy(t, f.slotState(t, slot.ID), winners[0])
}

func TestPerformerConfirmSchedulesPaymentDeadline(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(t, testNow.Add(96*time.Hour))
	b := f.book(t, slot)

	confirmed, err := f.svc.PerformerConfirm(context.Background(), f.performer, b.ID)
	if err != nil {
		t.Fatalf("PerformerConfirm: %v", err)
	}
	if confirmed.Status != models.BookingConfirmed {
		t.Fatalf("status = %s", confirmed.Status)
	}
	if confirmed.PaymentDeadline == nil || !confirmed.PaymentDeadline.Equal(testNow.Add(2*time.Hour)) {
		t.Fatalf("payment deadline = %v", confirmed.PaymentDeadline)
	}

	rows, _ := f.queue.ListByBooking(context.Background(), b.ID)
	want := map[models.NotificationKind]time.Time{
		models.KindPaymentReminder1h:      testNow.Add(time.Hour),
		models.KindPaymentReminder10m:     testNow.Add(110 * time.Minute),
		models.KindPaymentDeadlineExpired: testNow.Add(2 * time.Hour),
	}
	visits := 0
	for _, r := range rows {
		if r.Kind.IsVisitReminder() {
			visits++
			continue
		}
		at, ok := want[r.Kind]
		if !ok {
			t.Errorf("unexpected row kind %s", r.Kind)
			continue
		}
		if !r.ScheduledFor.Equal(at) {
			t.Errorf("%s scheduled for %s, want %s", r.Kind, r.ScheduledFor, at)
		}
		if r.UserID != f.customer {
			t.Errorf("%s addressed to %s, want customer", r.Kind, r.UserID)
		}
		delete(want, r.Kind)
	}
	if len(want) != 0 {
		t.Errorf("missing rows: %v", want)
	}
	if visits != 6 {
		t.Errorf("visit reminders = %d, want 6", visits)
	}

	_, err = f.svc.PerformerConfirm(context.Background(), f.performer, b.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second confirm err = %v, want ErrInvalidTransition", err)
	}
	again, _ := f.queue.ListByBooking(context.Background(), b.ID)
	if len(again) != len(rows) {
		t.Fatalf("second confirm scheduled %d extra rows", len(again)-len(rows))
	}
}

func TestPerformerConfirmChecksOwnership(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.slot(t, testNow.Add(24*time.Hour)))

	if _, err := f.svc.PerformerConfirm(context.Background(), uuid.New(), b.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.PerformerConfirm(context.Background(), f.performer, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCounterProposalRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s1 := f.slot(t, testNow.Add(24*time.Hour))
	s2 := f.slot(t, testNow.Add(26*time.Hour))
	s3 := f.slot(t, testNow.Add(28*time.Hour))
	b := f.book(t, s1)

	props, err := f.svc.PerformerCounterPropose(ctx, f.performer, b.ID, []ProposalInput{
		{SlotID: &s2.ID},
		{SlotID: &s3.ID},
	})
	if err != nil {
		t.Fatalf("PerformerCounterPropose: %v", err)
	}
	if got := f.booking(t, b.ID).Status; got != models.BookingCounterProposed {
		t.Fatalf("status = %s", got)
	}
	assertFree(t, f.slotState(t, s2.ID))

	// Someone else takes s2 before the customer answers.
	other, err := f.svc.CreateBooking(ctx, CreateBookingInput{CustomerID: uuid.New(), PerformerID: f.performer, SlotID: s2.ID})
	if err != nil {
		t.Fatalf("competing booking: %v", err)
	}

	_, err = f.svc.CustomerAcceptProposal(ctx, f.customer, b.ID, props[0].ID)
	if !errors.Is(err, ErrProposalNoLongerAvailable) {
		t.Fatalf("err = %v, want ErrProposalNoLongerAvailable", err)
	}
	if got := f.booking(t, b.ID); got.Status != models.BookingCounterProposed || *got.SlotID != s1.ID {
		t.Fatalf("booking changed after failed accept: %+v", got)
	}
	assertHeldBy(t, f.slotState(t, s1.ID), b.ID)
	assertHeldBy(t, f.slotState(t, s2.ID), other.ID)

	accepted, err := f.svc.CustomerAcceptProposal(ctx, f.customer, b.ID, props[1].ID)
	if err != nil {
		t.Fatalf("accept second proposal: %v", err)
	}
	if accepted.Status != models.BookingCustomerAccepted || *accepted.SlotID != s3.ID {
		t.Fatalf("accepted booking: %+v", accepted)
	}
	if accepted.BookingTime != "13:00" {
		t.Errorf("booking time = %s, want 13:00", accepted.BookingTime)
	}
	assertFree(t, f.slotState(t, s1.ID))
	assertHeldBy(t, f.slotState(t, s3.ID), b.ID)

	list, _ := f.proposals.ListByBooking(ctx, b.ID)
	statuses := map[uuid.UUID]models.ProposalStatus{}
	for _, p := range list {
		statuses[p.ID] = p.Status
	}
	if statuses[props[0].ID] != models.ProposalRejected || statuses[props[1].ID] != models.ProposalAccepted {
		t.Fatalf("proposal statuses: %v", statuses)
	}

	confirmed, err := f.svc.PerformerConfirm(ctx, f.performer, b.ID)
	if err != nil || confirmed.Status != models.BookingConfirmed {
		t.Fatalf("confirm after accept: %v %+v", err, confirmed)
	}
}

func TestConcurrentAcceptsKeepOneSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s1 := f.slot(t, testNow.Add(24*time.Hour))
	s2 := f.slot(t, testNow.Add(26*time.Hour))
	s3 := f.slot(t, testNow.Add(28*time.Hour))
	b := f.book(t, s1)

	props, err := f.svc.PerformerCounterPropose(ctx, f.performer, b.ID, []ProposalInput{{SlotID: &s2.ID}, {SlotID: &s3.ID}})
	if err != nil {
		t.Fatalf("PerformerCounterPropose: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(props))
	for i := range props {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CustomerAcceptProposal(ctx, f.customer, b.ID, props[i].ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrProposalNoLongerAvailable) && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}

	final := f.booking(t, b.ID)
	assertFree(t, f.slotState(t, s1.ID))
	assertHeldBy(t, f.slotState(t, *final.SlotID), b.ID)
	for _, s := range []uuid.UUID{s2.ID, s3.ID} {
		if s != *final.SlotID {
			assertFree(t, f.slotState(t, s))
		}
	}
}

func TestCounterProposeValidatesCount(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.slot(t, testNow.Add(24*time.Hour)))

	if _, err := f.svc.PerformerCounterPropose(context.Background(), f.performer, b.ID, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty set err = %v", err)
	}
	six := make([]ProposalInput, 6)
	for i := range six {
		six[i] = ProposalInput{Date: testNow.AddDate(0, 0, i+1), Time: "10:00"}
	}
	if _, err := f.svc.PerformerCounterPropose(context.Background(), f.performer, b.ID, six); !errors.Is(err, ErrValidation) {
		t.Fatalf("six proposals err = %v", err)
	}
	bad := []ProposalInput{{Date: testNow, Time: "25:99"}}
	if _, err := f.svc.PerformerCounterPropose(context.Background(), f.performer, b.ID, bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad time err = %v", err)
	}
}

func TestReproposeReplacesPendingSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.book(t, f.slot(t, testNow.Add(24*time.Hour)))

	first := []ProposalInput{{Date: testNow.AddDate(0, 0, 2), Time: "10:00"}, {Date: testNow.AddDate(0, 0, 3), Time: "11:00"}}
	if _, err := f.svc.PerformerCounterPropose(ctx, f.performer, b.ID, first); err != nil {
		t.Fatalf("first proposal set: %v", err)
	}
	second, err := f.svc.PerformerCounterPropose(ctx, f.performer, b.ID, []ProposalInput{{Date: testNow.AddDate(0, 0, 4), Time: "12:00"}})
	if err != nil {
		t.Fatalf("second proposal set: %v", err)
	}

	list, err := f.svc.ListProposals(ctx, f.customer, b.ID)
	if err != nil {
		t.Fatalf("ListProposals: %v", err)
	}
	if len(list) != 1 || list[0].ID != second[0].ID {
		t.Fatalf("proposals after re-propose: %+v", list)
	}
}

func TestAcceptOffGridProposalReleasesSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	slot := f.slot(t, testNow.Add(24*time.Hour))
	b := f.book(t, slot)

	price := int64(15000)
	props, err := f.svc.PerformerCounterPropose(ctx, f.performer, b.ID, []ProposalInput{
		{Date: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), Time: "18:30", Price: &price},
	})
	if err != nil {
		t.Fatalf("PerformerCounterPropose: %v", err)
	}

	accepted, err := f.svc.CustomerAcceptProposal(ctx, f.customer, b.ID, props[0].ID)
	if err != nil {
		t.Fatalf("CustomerAcceptProposal: %v", err)
	}
	if accepted.SlotID != nil {
		t.Errorf("off-grid booking still references slot %s", accepted.SlotID)
	}
	if accepted.PriceTotal != 15000 || accepted.PrepaymentAmount != 3000 {
		t.Errorf("price=%d prepayment=%d", accepted.PriceTotal, accepted.PrepaymentAmount)
	}
	assertFree(t, f.slotState(t, slot.ID))

	if _, err := f.svc.CustomerAcceptProposal(ctx, f.customer, b.ID, props[0].ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second accept err = %v, want ErrInvalidTransition", err)
	}
}

func TestRejectionsReleaseSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	s1 := f.slot(t, testNow.Add(24*time.Hour))
	b1 := f.book(t, s1)
	rejected, err := f.svc.PerformerReject(ctx, f.performer, b1.ID, "fully booked that week")
	if err != nil {
		t.Fatalf("PerformerReject: %v", err)
	}
	if rejected.Status != models.BookingCancelled || *rejected.CancelledBy != models.ActorPerformer {
		t.Fatalf("rejected booking: %+v", rejected)
	}
	assertFree(t, f.slotState(t, s1.ID))
	if _, err := f.svc.PerformerReject(ctx, f.performer, b1.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second reject err = %v", err)
	}

	s2 := f.slot(t, testNow.Add(48*time.Hour))
	b2 := f.book(t, s2)
	if _, err := f.svc.PerformerCounterPropose(ctx, f.performer, b2.ID, []ProposalInput{{Date: testNow.AddDate(0, 0, 5), Time: "09:00"}}); err != nil {
		t.Fatalf("PerformerCounterPropose: %v", err)
	}
	cancelled, err := f.svc.CustomerRejectAll(ctx, f.customer, b2.ID)
	if err != nil {
		t.Fatalf("CustomerRejectAll: %v", err)
	}
	if *cancelled.CancelledBy != models.ActorCustomer {
		t.Errorf("cancelled by %s", *cancelled.CancelledBy)
	}
	assertFree(t, f.slotState(t, s2.ID))
	list, _ := f.proposals.ListByBooking(ctx, b2.ID)
	for _, p := range list {
		if p.Status != models.ProposalRejected {
			t.Errorf("proposal %s is %s after reject-all", p.ID, p.Status)
		}
	}
}

func TestAutoCancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	slot := f.slot(t, testNow.Add(96*time.Hour))
	b := f.book(t, slot)
	if _, err := f.svc.PerformerConfirm(ctx, f.performer, b.ID); err != nil {
		t.Fatalf("PerformerConfirm: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.svc.AutoCancel(ctx, b.ID, "payment deadline expired")
			if err != nil {
				t.Errorf("AutoCancel: %v", err)
				return
			}
			if ok {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if changed != 1 {
		t.Fatalf("transitions = %d, want 1", changed)
	}
	final := f.booking(t, b.ID)
	if final.Status != models.BookingCancelled || *final.CancelledBy != models.ActorSystem {
		t.Fatalf("final booking: %+v", final)
	}
	assertFree(t, f.slotState(t, slot.ID))

	notices := 0
	rows, _ := f.queue.ListByBooking(ctx, b.ID)
	for _, r := range rows {
		if r.Kind == models.KindAutoCancelledNotice {
			notices++
		}
	}
	if notices != 2 {
		t.Fatalf("cancellation notices = %d, want 2", notices)
	}
}

func TestAutoCancelSkipsPaidAndPendingBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pending := f.book(t, f.slot(t, testNow.Add(24*time.Hour)))
	if ok, err := f.svc.AutoCancel(ctx, pending.ID, "expired"); ok || err != nil {
		t.Fatalf("pending booking: ok=%v err=%v", ok, err)
	}

	slot := f.slot(t, testNow.Add(48*time.Hour))
	paid := f.book(t, slot)
	if _, err := f.svc.PerformerConfirm(ctx, f.performer, paid.ID); err != nil {
		t.Fatalf("PerformerConfirm: %v", err)
	}
	if _, err := f.svc.RecordPayment(ctx, PaymentSignal{EventID: "evt-1", BookingID: paid.ID, Amount: 2000}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if ok, err := f.svc.AutoCancel(ctx, paid.ID, "expired"); ok || err != nil {
		t.Fatalf("prepaid booking: ok=%v err=%v", ok, err)
	}
	if got := f.booking(t, paid.ID).Status; got != models.BookingConfirmed {
		t.Fatalf("status = %s, want confirmed", got)
	}
	assertHeldBy(t, f.slotState(t, slot.ID), paid.ID)
}

func TestRecordPaymentAccumulatesOncePerEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.book(t, f.slot(t, testNow.Add(24*time.Hour)))

	got, err := f.svc.RecordPayment(ctx, PaymentSignal{EventID: "evt-a", BookingID: b.ID, Amount: 2000})
	if err != nil || got.PaymentStatus != models.PaymentPrepaid {
		t.Fatalf("first payment: %v %+v", err, got)
	}
	got, err = f.svc.RecordPayment(ctx, PaymentSignal{EventID: "evt-a", BookingID: b.ID, Amount: 2000})
	if err != nil || got.PaymentStatus != models.PaymentPrepaid {
		t.Fatalf("replayed payment: %v %+v", err, got)
	}
	if total, _ := f.payments.PaidTotal(ctx, b.ID); total != 2000 {
		t.Fatalf("paid total = %d after replay", total)
	}
	got, err = f.svc.RecordPayment(ctx, PaymentSignal{EventID: "evt-b", BookingID: b.ID, Amount: 8000})
	if err != nil || got.PaymentStatus != models.PaymentPaid {
		t.Fatalf("balance payment: %v %+v", err, got)
	}

	if _, err := f.svc.RecordPayment(ctx, PaymentSignal{BookingID: b.ID, Amount: 1}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing event id err = %v", err)
	}
}

func TestMarkCompletedKeepsSlotConsumed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	slot := f.slot(t, testNow.Add(24*time.Hour))
	b := f.book(t, slot)

	if _, err := f.svc.MarkCompleted(ctx, f.performer, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete pending err = %v", err)
	}
	if _, err := f.svc.PerformerConfirm(ctx, f.performer, b.ID); err != nil {
		t.Fatalf("PerformerConfirm: %v", err)
	}
	done, err := f.svc.MarkCompleted(ctx, f.performer, b.ID)
	if err != nil || done.Status != models.BookingCompleted {
		t.Fatalf("MarkCompleted: %v %+v", err, done)
	}
	assertHeldBy(t, f.slotState(t, slot.ID), b.ID)

	if _, err := f.svc.MarkNoShow(ctx, f.performer, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("no-show after completion err = %v", err)
	}
}

func TestCancelByEitherParty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	slot := f.slot(t, testNow.Add(24*time.Hour))
	b := f.book(t, slot)

	if _, err := f.svc.Cancel(ctx, models.ActorCustomer, uuid.New(), b.ID, "changed plans"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger cancel err = %v", err)
	}
	cancelled, err := f.svc.Cancel(ctx, models.ActorCustomer, f.customer, b.ID, "changed plans")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.BookingCancelled || *cancelled.CancellationReason != "changed plans" {
		t.Fatalf("cancelled booking: %+v", cancelled)
	}
	assertFree(t, f.slotState(t, slot.ID))

	if _, err := f.svc.Cancel(ctx, models.ActorPerformer, f.performer, b.ID, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel of cancelled booking err = %v", err)
	}
}
