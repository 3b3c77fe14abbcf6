package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/anjiri1684/marketplace_booking/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxProposals = 5

// casRetries bounds how often a lost compare-and-set is re-read and retried.
const casRetries = 5

type BookingDeps struct {
	Slots     SlotStore
	Bookings  BookingStore
	Proposals ProposalStore
	Payments  PaymentLedger
	Scheduler Scheduler
	Clock     utils.Clock
	Logger    *zap.Logger

	PaymentDeadline   time.Duration
	PrepaymentPercent int
	Location          *time.Location
}

// BookingService is the booking state machine. Every status change goes
// through a guarded store transition, so concurrent callers cannot both win.
type BookingService struct {
	slots     SlotStore
	bookings  BookingStore
	proposals ProposalStore
	payments  PaymentLedger
	scheduler Scheduler
	clock     utils.Clock
	log       *zap.Logger

	paymentDeadline   time.Duration
	prepaymentPercent int64
	loc               *time.Location
}

func NewBookingService(d BookingDeps) *BookingService {
	s := &BookingService{
		slots:             d.Slots,
		bookings:          d.Bookings,
		proposals:         d.Proposals,
		payments:          d.Payments,
		scheduler:         d.Scheduler,
		clock:             d.Clock,
		log:               d.Logger,
		paymentDeadline:   d.PaymentDeadline,
		prepaymentPercent: int64(d.PrepaymentPercent),
		loc:               d.Location,
	}
	if s.clock == nil {
		s.clock = utils.RealClock()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.paymentDeadline <= 0 {
		s.paymentDeadline = 2 * time.Hour
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

type CreateBookingInput struct {
	CustomerID  uuid.UUID
	PerformerID uuid.UUID
	SlotID      uuid.UUID
	// Price in minor units; nil takes the slot's list price.
	Price *int64
}

type ProposalInput struct {
	Date   time.Time
	Time   string
	Price  *int64
	SlotID *uuid.UUID
}

// PaymentSignal is the gateway's "payment confirmed" event.
type PaymentSignal struct {
	EventID   string
	BookingID uuid.UUID
	Amount    int64
}

func (s *BookingService) prepayment(price int64) int64 {
	return price * s.prepaymentPercent / 100
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking %s: %w", id, err)
	}
	return b, nil
}

func (s *BookingService) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Booking, error) {
	return s.bookings.ListByCustomer(ctx, customerID)
}

func (s *BookingService) ListForPerformer(ctx context.Context, performerID uuid.UUID) ([]models.Booking, error) {
	return s.bookings.ListByPerformer(ctx, performerID)
}

// ListProposals returns the proposals of a booking the user is a party to.
func (s *BookingService) ListProposals(ctx context.Context, userID, bookingID uuid.UUID) ([]models.Proposal, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != userID && b.PerformerID != userID {
		return nil, ErrForbidden
	}
	return s.proposals.ListByBooking(ctx, bookingID)
}

// CreateBooking reserves the slot and inserts a pending, unpaid booking.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if in.CustomerID == in.PerformerID {
		return nil, invalid("performer_id", "cannot book your own slot")
	}

	slot, err := s.slots.Get(ctx, in.SlotID)
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", in.SlotID, err)
	}
	if slot.PerformerID != in.PerformerID {
		return nil, invalid("slot_id", "slot does not belong to this performer")
	}
	if !slot.StartTime.After(s.clock.Now()) {
		return nil, invalid("slot_id", "slot is in the past")
	}

	var price int64
	switch {
	case in.Price != nil:
		price = *in.Price
	case slot.Price != nil:
		price = *slot.Price
	default:
		return nil, invalid("price", "required when the slot has no list price")
	}
	if price < 0 {
		return nil, invalid("price", "must not be negative")
	}

	if slot.Status != models.SlotFree {
		return nil, ErrSlotUnavailable
	}

	ref, err := utils.GenerateBookingReference(func(code string) (bool, error) {
		return s.bookings.ReferenceExists(ctx, code)
	})
	if err != nil {
		return nil, fmt.Errorf("booking reference: %w", err)
	}

	bookingID := uuid.New()
	if err := s.slots.Reserve(ctx, slot.ID, bookingID); err != nil {
		if errors.Is(err, models.ErrSlotConflict) {
			s.log.Info("slot taken during booking",
				zap.Stringer("slot_id", slot.ID), zap.Stringer("customer_id", in.CustomerID))
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("reserve slot %s: %w", slot.ID, err)
	}

	start := slot.StartTime.In(s.loc)
	slotID := slot.ID
	b := &models.Booking{
		ID:               bookingID,
		Reference:        ref,
		CustomerID:       in.CustomerID,
		PerformerID:      in.PerformerID,
		SlotID:           &slotID,
		Status:           models.BookingPending,
		PaymentStatus:    models.PaymentNotPaid,
		BookingDate:      models.DateOnly(start, s.loc),
		BookingTime:      start.Format(models.TimeOfDayLayout),
		PriceTotal:       price,
		PrepaymentAmount: s.prepayment(price),
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		if rerr := s.slots.Release(ctx, slot.ID); rerr != nil {
			s.log.Error("release after failed booking insert",
				zap.Stringer("slot_id", slot.ID), zap.Error(rerr))
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.Info("booking created",
		zap.Stringer("booking_id", b.ID), zap.String("reference", b.Reference), zap.Stringer("slot_id", slot.ID))
	return b, nil
}

// PerformerConfirm confirms a pending or customer-accepted booking, starts its
// payment deadline and schedules its reminders. Confirming again only succeeds
// when the earlier confirm never got its deadline row queued.
func (s *BookingService) PerformerConfirm(ctx context.Context, performerID, bookingID uuid.UUID) (*models.Booking, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PerformerID != performerID {
		return nil, ErrForbidden
	}
	if b.Status == models.BookingConfirmed {
		return s.rescheduleConfirmed(ctx, b)
	}

	now := s.clock.Now()
	deadline := now.Add(s.paymentDeadline)
	err = s.apply(ctx, b, "confirm", models.BookingTransition{
		From:            []models.BookingStatus{models.BookingPending, models.BookingCustomerAccepted},
		To:              models.BookingConfirmed,
		ConfirmedAt:     &now,
		PaymentDeadline: &deadline,
	})
	if err != nil {
		return nil, err
	}

	if err := s.scheduler.OnConfirmed(ctx, b); err != nil {
		s.log.Error("deadline scheduling failed", zap.Stringer("booking_id", b.ID), zap.Error(err))
		return b, fmt.Errorf("schedule deadlines for booking %s: %w", b.ID, err)
	}
	s.log.Info("booking confirmed", zap.Stringer("booking_id", b.ID), zap.Time("payment_deadline", deadline))
	return b, nil
}

func (s *BookingService) rescheduleConfirmed(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	scheduled, err := s.scheduler.HasDeadline(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("check deadline for booking %s: %w", b.ID, err)
	}
	if scheduled {
		return nil, &TransitionError{BookingID: b.ID, From: b.Status, Action: "confirm"}
	}
	if err := s.scheduler.OnConfirmed(ctx, b); err != nil {
		s.log.Error("deadline scheduling failed", zap.Stringer("booking_id", b.ID), zap.Error(err))
		return b, fmt.Errorf("schedule deadlines for booking %s: %w", b.ID, err)
	}
	s.log.Warn("deadlines rescheduled for confirmed booking", zap.Stringer("booking_id", b.ID))
	return b, nil
}

// PerformerCounterPropose replaces the booking's pending proposals with a new
// set of one to five alternatives. Proposed slots are not reserved.
func (s *BookingService) PerformerCounterPropose(ctx context.Context, performerID, bookingID uuid.UUID, inputs []ProposalInput) ([]models.Proposal, error) {
	if len(inputs) == 0 || len(inputs) > MaxProposals {
		return nil, invalid("proposals", fmt.Sprintf("between 1 and %d required", MaxProposals))
	}

	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PerformerID != performerID {
		return nil, ErrForbidden
	}

	t := models.BookingTransition{
		From: []models.BookingStatus{models.BookingPending, models.BookingCounterProposed},
		To:   models.BookingCounterProposed,
	}
	if !t.Permits(b) {
		return nil, &TransitionError{BookingID: b.ID, From: b.Status, Action: "counter-propose"}
	}

	proposals := make([]models.Proposal, 0, len(inputs))
	for i, in := range inputs {
		p, err := s.buildProposal(ctx, b, in)
		if err != nil {
			return nil, fmt.Errorf("proposal %d: %w", i+1, err)
		}
		proposals = append(proposals, p)
	}

	if err := s.proposals.ReplacePending(ctx, b.ID, proposals); err != nil {
		return nil, fmt.Errorf("store proposals: %w", err)
	}
	if err := s.apply(ctx, b, "counter-propose", t); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// The booking left negotiation after the set was stored.
			if rerr := s.proposals.Resolve(ctx, b.ID, uuid.Nil); rerr != nil {
				s.log.Error("withdraw proposals", zap.Stringer("booking_id", b.ID), zap.Error(rerr))
			}
		}
		return nil, err
	}

	s.log.Info("counter-proposal sent", zap.Stringer("booking_id", b.ID), zap.Int("proposals", len(proposals)))
	return proposals, nil
}

func (s *BookingService) buildProposal(ctx context.Context, b *models.Booking, in ProposalInput) (models.Proposal, error) {
	p := models.Proposal{
		ID:            uuid.New(),
		BookingID:     b.ID,
		ProposedPrice: in.Price,
		Status:        models.ProposalPending,
	}
	if in.Price != nil && *in.Price < 0 {
		return p, invalid("proposed_price", "must not be negative")
	}

	if in.SlotID != nil {
		slot, err := s.slots.Get(ctx, *in.SlotID)
		if errors.Is(err, models.ErrNotFound) {
			return p, invalid("slot_id", "unknown slot")
		}
		if err != nil {
			return p, err
		}
		if slot.PerformerID != b.PerformerID {
			return p, invalid("slot_id", "slot belongs to another performer")
		}
		start := slot.StartTime.In(s.loc)
		slotID := slot.ID
		p.ProposedDate = models.DateOnly(start, s.loc)
		p.ProposedTime = start.Format(models.TimeOfDayLayout)
		p.SlotID = &slotID
		return p, nil
	}

	if in.Date.IsZero() {
		return p, invalid("proposed_date", "required")
	}
	if _, err := time.Parse(models.TimeOfDayLayout, in.Time); err != nil {
		return p, invalid("proposed_time", "must be HH:MM")
	}
	p.ProposedDate = models.DateOnly(in.Date, in.Date.Location())
	p.ProposedTime = in.Time
	return p, nil
}

// CustomerAcceptProposal moves the booking onto the chosen proposal. If the
// proposed slot was taken in the meantime nothing changes and
// ErrProposalNoLongerAvailable is returned.
func (s *BookingService) CustomerAcceptProposal(ctx context.Context, customerID, bookingID, proposalID uuid.UUID) (*models.Booking, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != customerID {
		return nil, ErrForbidden
	}

	p, err := s.proposals.Get(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("load proposal %s: %w", proposalID, err)
	}
	if p.BookingID != b.ID {
		return nil, fmt.Errorf("proposal %s on booking %s: %w", proposalID, b.ID, ErrNotFound)
	}
	if b.Status == models.BookingCustomerAccepted && p.Status == models.ProposalPending && onProposal(b, p) {
		// An earlier accept moved the booking but stopped before resolving.
		if err := s.proposals.Resolve(ctx, b.ID, p.ID); err != nil {
			return b, fmt.Errorf("resolve proposals: %w", err)
		}
		return b, nil
	}
	if b.Status != models.BookingCounterProposed {
		return nil, &TransitionError{BookingID: b.ID, From: b.Status, Action: "accept proposal"}
	}
	if p.Status != models.ProposalPending {
		return nil, ErrProposalNoLongerAvailable
	}

	undo, err := s.moveToProposalSlot(ctx, b, p)
	if err != nil {
		return nil, err
	}

	reschedule := &models.Reschedule{
		Date:   p.ProposedDate,
		Time:   p.ProposedTime,
		Price:  p.ProposedPrice,
		SlotID: p.SlotID,
	}
	if p.ProposedPrice != nil {
		prepay := s.prepayment(*p.ProposedPrice)
		reschedule.Prepayment = &prepay
	}

	var previous *uuid.UUID
	if b.SlotID != nil {
		id := *b.SlotID
		previous = &id
	}

	err = s.apply(ctx, b, "accept proposal", models.BookingTransition{
		From:       []models.BookingStatus{models.BookingCounterProposed},
		To:         models.BookingCustomerAccepted,
		Reschedule: reschedule,
	})
	if err != nil {
		undo()
		return nil, err
	}

	// Off-grid proposals leave the original slot behind.
	if p.SlotID == nil && previous != nil {
		if err := s.releaseHeld(ctx, *previous, b.ID); err != nil {
			return b, err
		}
	}
	if err := s.proposals.Resolve(ctx, b.ID, p.ID); err != nil {
		return b, fmt.Errorf("resolve proposals: %w", err)
	}

	s.log.Info("proposal accepted", zap.Stringer("booking_id", b.ID), zap.Stringer("proposal_id", p.ID))
	return b, nil
}

// moveToProposalSlot reserves the proposal's slot for b and returns the
// compensation that puts things back.
func (s *BookingService) moveToProposalSlot(ctx context.Context, b *models.Booking, p *models.Proposal) (func(), error) {
	noop := func() {}
	if p.SlotID == nil {
		return noop, nil
	}
	target := *p.SlotID
	if b.SlotID != nil && *b.SlotID == target {
		return noop, nil
	}

	bookingID := b.ID
	if b.SlotID == nil {
		if err := s.slots.Reserve(ctx, target, bookingID); err != nil {
			return nil, proposalSlotErr(err)
		}
		return func() { s.unwindProposalSlot(ctx, bookingID, target, nil) }, nil
	}

	current := *b.SlotID
	if err := s.slots.Reassign(ctx, current, target, bookingID); err != nil {
		return nil, proposalSlotErr(err)
	}
	return func() { s.unwindProposalSlot(ctx, bookingID, target, &current) }, nil
}

// unwindProposalSlot undoes moveToProposalSlot after the booking update lost.
// A booking still awaiting an answer goes back to previous; any other booking
// keeps whatever slot it now references and target is freed.
func (s *BookingService) unwindProposalSlot(ctx context.Context, bookingID, target uuid.UUID, previous *uuid.UUID) {
	log := s.log.With(zap.Stringer("booking_id", bookingID), zap.Stringer("slot_id", target))

	current, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		log.Error("undo proposal slot: reload booking", zap.Error(err))
		return
	}
	if current.Status == models.BookingCounterProposed && previous != nil {
		if err := s.slots.Reassign(ctx, target, *previous, bookingID); err != nil {
			log.Error("undo proposal reassign", zap.Stringer("to_slot", *previous), zap.Error(err))
		}
		return
	}
	if current.SlotID != nil && *current.SlotID == target {
		return
	}
	if err := s.releaseHeld(ctx, target, bookingID); err != nil {
		log.Error("undo proposal reserve", zap.Error(err))
	}
}

// onProposal reports whether b already carries p's date, time and slot.
func onProposal(b *models.Booking, p *models.Proposal) bool {
	if (b.SlotID == nil) != (p.SlotID == nil) {
		return false
	}
	if b.SlotID != nil && *b.SlotID != *p.SlotID {
		return false
	}
	return b.BookingTime == p.ProposedTime && b.BookingDate.Equal(p.ProposedDate)
}

func proposalSlotErr(err error) error {
	if errors.Is(err, models.ErrSlotConflict) || errors.Is(err, models.ErrNotFound) {
		return ErrProposalNoLongerAvailable
	}
	return fmt.Errorf("reserve proposed slot: %w", err)
}

// CustomerRejectAll cancels a counter-proposed booking.
func (s *BookingService) CustomerRejectAll(ctx context.Context, customerID, bookingID uuid.UUID) (*models.Booking, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != customerID {
		return nil, ErrForbidden
	}

	reason := "customer rejected all proposals"
	by := models.ActorCustomer
	err = s.applyOnSlot(ctx, b, "reject proposals", models.BookingTransition{
		From:               []models.BookingStatus{models.BookingCounterProposed},
		To:                 models.BookingCancelled,
		CancellationReason: &reason,
		CancelledBy:        &by,
	})
	if err != nil {
		return nil, err
	}

	if err := s.proposals.Resolve(ctx, b.ID, uuid.Nil); err != nil {
		return b, fmt.Errorf("reject proposals: %w", err)
	}
	return b, s.releaseSlot(ctx, b)
}

func (s *BookingService) PerformerReject(ctx context.Context, performerID, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PerformerID != performerID {
		return nil, ErrForbidden
	}

	by := models.ActorPerformer
	err = s.applyOnSlot(ctx, b, "reject", models.BookingTransition{
		From:               []models.BookingStatus{models.BookingPending},
		To:                 models.BookingCancelled,
		CancellationReason: &reason,
		CancelledBy:        &by,
	})
	if err != nil {
		return nil, err
	}
	return b, s.releaseSlot(ctx, b)
}

// MarkCompleted closes a confirmed booking. The slot stays consumed.
func (s *BookingService) MarkCompleted(ctx context.Context, performerID, bookingID uuid.UUID) (*models.Booking, error) {
	return s.closeConfirmed(ctx, performerID, bookingID, models.BookingCompleted, "complete")
}

func (s *BookingService) MarkNoShow(ctx context.Context, performerID, bookingID uuid.UUID) (*models.Booking, error) {
	return s.closeConfirmed(ctx, performerID, bookingID, models.BookingNoShow, "mark no-show")
}

func (s *BookingService) closeConfirmed(ctx context.Context, performerID, bookingID uuid.UUID, to models.BookingStatus, action string) (*models.Booking, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PerformerID != performerID {
		return nil, ErrForbidden
	}
	err = s.apply(ctx, b, action, models.BookingTransition{
		From: []models.BookingStatus{models.BookingConfirmed},
		To:   to,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Cancel lets either party withdraw from a booking that has not finished.
func (s *BookingService) Cancel(ctx context.Context, actor models.Actor, userID, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch actor {
	case models.ActorCustomer:
		if b.CustomerID != userID {
			return nil, ErrForbidden
		}
	case models.ActorPerformer:
		if b.PerformerID != userID {
			return nil, ErrForbidden
		}
	default:
		return nil, invalid("actor", "only the customer or the performer can cancel")
	}

	err = s.applyOnSlot(ctx, b, "cancel", models.BookingTransition{
		From:               models.ActiveBookingStatuses(),
		To:                 models.BookingCancelled,
		CancellationReason: &reason,
		CancelledBy:        &actor,
	})
	if err != nil {
		return nil, err
	}

	if err := s.proposals.Resolve(ctx, b.ID, uuid.Nil); err != nil {
		return b, fmt.Errorf("reject proposals: %w", err)
	}
	return b, s.releaseSlot(ctx, b)
}

// AutoCancel cancels a booking whose payment deadline passed unpaid. It is
// idempotent and reports whether this call changed the booking.
func (s *BookingService) AutoCancel(ctx context.Context, bookingID uuid.UUID, reason string) (bool, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return false, err
	}

	if b.Status == models.BookingCancelled && b.CancelledBy != nil && *b.CancelledBy == models.ActorSystem {
		// An earlier run may have stopped between the status write and the release.
		return false, s.releaseSlot(ctx, b)
	}

	by := models.ActorSystem
	t := models.BookingTransition{
		From:               []models.BookingStatus{models.BookingConfirmed, models.BookingCustomerAccepted},
		To:                 models.BookingCancelled,
		PaymentIn:          []models.PaymentStatus{models.PaymentNotPaid},
		CancellationReason: &reason,
		CancelledBy:        &by,
	}
	if !t.Permits(b) {
		s.log.Debug("auto-cancel skipped",
			zap.Stringer("booking_id", b.ID), zap.String("status", string(b.Status)),
			zap.String("payment_status", string(b.PaymentStatus)))
		return false, nil
	}

	ok, err := s.bookings.Transition(ctx, b.ID, t)
	if err != nil {
		return false, fmt.Errorf("auto-cancel booking %s: %w", b.ID, err)
	}
	if !ok {
		return false, nil
	}
	t.Apply(b)

	if err := s.releaseSlot(ctx, b); err != nil {
		return true, err
	}
	if err := s.scheduler.OnAutoCancelled(ctx, b); err != nil {
		s.log.Error("enqueue cancellation notices", zap.Stringer("booking_id", b.ID), zap.Error(err))
		return true, fmt.Errorf("enqueue cancellation notices: %w", err)
	}

	s.log.Info("booking auto-cancelled", zap.Stringer("booking_id", b.ID), zap.String("reason", reason))
	return true, nil
}

// RecordPayment applies a gateway confirmation once per event id. Amounts
// accumulate across events; reaching the prepayment marks the booking
// prepaid, reaching the total marks it paid. The ledger row is written first
// and payment_status is derived from the ledger sum, so concurrent events and
// redelivered ones all settle on the same status.
func (s *BookingService) RecordPayment(ctx context.Context, sig PaymentSignal) (*models.Booking, error) {
	if sig.EventID == "" {
		return nil, invalid("event_id", "required")
	}
	if sig.Amount <= 0 {
		return nil, invalid("amount", "must be positive")
	}

	b, err := s.Get(ctx, sig.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		seen, err := s.payments.Seen(ctx, sig.EventID)
		if err != nil {
			return nil, fmt.Errorf("check payment event: %w", err)
		}
		if seen {
			return b, nil
		}
		return nil, &TransitionError{BookingID: b.ID, From: b.Status, Action: "record payment"}
	}

	recorded, err := s.payments.Record(ctx, &models.PaymentEvent{
		EventID:     sig.EventID,
		BookingID:   b.ID,
		Amount:      sig.Amount,
		Status:      b.PaymentStatus,
		ProcessedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record payment event: %w", err)
	}

	b, err = s.settlePayment(ctx, b)
	if err != nil {
		return nil, err
	}
	if recorded {
		s.log.Info("payment recorded",
			zap.String("event_id", sig.EventID), zap.Stringer("booking_id", b.ID),
			zap.String("payment_status", string(b.PaymentStatus)))
	}
	return b, nil
}

// settlePayment moves payment_status up to what the ledger total covers.
func (s *BookingService) settlePayment(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	for attempt := 1; ; attempt++ {
		total, err := s.payments.PaidTotal(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("sum payments: %w", err)
		}
		to := paymentStatusFor(b, total)
		if !advancesPayment(b.PaymentStatus, to) {
			return b, nil
		}

		ok, err := s.bookings.SetPaymentStatus(ctx, b.ID, []models.PaymentStatus{b.PaymentStatus}, to)
		if err != nil {
			return nil, fmt.Errorf("update payment status: %w", err)
		}
		if ok {
			b.PaymentStatus = to
			return b, nil
		}

		current, err := s.Get(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if current.Status.Terminal() {
			return nil, &TransitionError{BookingID: b.ID, From: current.Status, Action: "record payment"}
		}
		if attempt == casRetries {
			return nil, fmt.Errorf("update payment status of booking %s: still contended after %d attempts", b.ID, attempt)
		}
		b = current
	}
}

func paymentStatusFor(b *models.Booking, total int64) models.PaymentStatus {
	switch {
	case total >= b.PriceTotal:
		return models.PaymentPaid
	case total >= b.PrepaymentAmount:
		return models.PaymentPrepaid
	default:
		return models.PaymentNotPaid
	}
}

func advancesPayment(from, to models.PaymentStatus) bool {
	switch from {
	case models.PaymentNotPaid:
		return to == models.PaymentPrepaid || to == models.PaymentPaid
	case models.PaymentPrepaid:
		return to == models.PaymentPaid
	default:
		return false
	}
}

// apply runs a guarded transition and updates b on success.
func (s *BookingService) apply(ctx context.Context, b *models.Booking, action string, t models.BookingTransition) error {
	if !t.Permits(b) || !b.Status.CanTransitionTo(t.To) {
		return &TransitionError{BookingID: b.ID, From: b.Status, Action: action}
	}
	ok, err := s.bookings.Transition(ctx, b.ID, t)
	if err != nil {
		return fmt.Errorf("%s booking %s: %w", action, b.ID, err)
	}
	if !ok {
		return s.refuse(ctx, b.ID, action)
	}
	t.Apply(b)
	return nil
}

// applyOnSlot is apply with the transition also guarded on the slot b
// references. When the booking moved to another slot in between, b is reloaded
// and the transition retried, so the caller releases the slot actually held.
func (s *BookingService) applyOnSlot(ctx context.Context, b *models.Booking, action string, t models.BookingTransition) error {
	t.CheckSlot = true
	for attempt := 1; ; attempt++ {
		t.HeldSlot = b.SlotID
		if !t.Permits(b) || !b.Status.CanTransitionTo(t.To) {
			return &TransitionError{BookingID: b.ID, From: b.Status, Action: action}
		}
		ok, err := s.bookings.Transition(ctx, b.ID, t)
		if err != nil {
			return fmt.Errorf("%s booking %s: %w", action, b.ID, err)
		}
		if ok {
			t.Apply(b)
			return nil
		}

		current, err := s.bookings.Get(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("%s booking %s: %w", action, b.ID, err)
		}
		if attempt == casRetries {
			return &TransitionError{BookingID: b.ID, From: current.Status, Action: action}
		}
		*b = *current
	}
}

// refuse builds the transition error for a lost compare-and-set from the
// booking's current status.
func (s *BookingService) refuse(ctx context.Context, id uuid.UUID, action string) error {
	current, err := s.bookings.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("%s booking %s: %w", action, id, err)
	}
	return &TransitionError{BookingID: id, From: current.Status, Action: action}
}

func (s *BookingService) releaseSlot(ctx context.Context, b *models.Booking) error {
	if b.SlotID == nil {
		return nil
	}
	return s.releaseHeld(ctx, *b.SlotID, b.ID)
}

// releaseHeld frees slotID only while it is still booked for bookingID.
func (s *BookingService) releaseHeld(ctx context.Context, slotID, bookingID uuid.UUID) error {
	slot, err := s.slots.Get(ctx, slotID)
	if err != nil {
		return fmt.Errorf("load slot %s: %w", slotID, err)
	}
	if slot.Status != models.SlotBooked || slot.BookingID == nil || *slot.BookingID != bookingID {
		return nil
	}
	if err := s.slots.Release(ctx, slotID); err != nil {
		s.log.Error("slot release failed",
			zap.Stringer("slot_id", slotID), zap.Stringer("booking_id", bookingID), zap.Error(err))
		return fmt.Errorf("release slot %s: %w", slotID, err)
	}
	return nil
}
