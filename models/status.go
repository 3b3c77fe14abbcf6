package models

type SlotStatus string

const (
	SlotFree    SlotStatus = "free"
	SlotBooked  SlotStatus = "booked"
	SlotBlocked SlotStatus = "blocked"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotFree, SlotBooked, SlotBlocked:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingPending          BookingStatus = "pending"
	BookingCounterProposed  BookingStatus = "counter_proposed"
	BookingCustomerAccepted BookingStatus = "customer_accepted"
	BookingConfirmed        BookingStatus = "confirmed"
	BookingCompleted        BookingStatus = "completed"
	BookingCancelled        BookingStatus = "cancelled"
	BookingNoShow           BookingStatus = "no_show"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:          {BookingCounterProposed, BookingConfirmed, BookingCancelled},
	BookingCounterProposed:  {BookingCounterProposed, BookingCustomerAccepted, BookingCancelled},
	BookingCustomerAccepted: {BookingConfirmed, BookingCancelled},
	BookingConfirmed:        {BookingCompleted, BookingCancelled, BookingNoShow},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingCounterProposed, BookingCustomerAccepted, BookingConfirmed,
		BookingCompleted, BookingCancelled, BookingNoShow:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled || s == BookingNoShow
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActiveBookingStatuses lists every non-terminal status.
func ActiveBookingStatuses() []BookingStatus {
	return []BookingStatus{BookingPending, BookingCounterProposed, BookingCustomerAccepted, BookingConfirmed}
}

type PaymentStatus string

const (
	PaymentNotPaid PaymentStatus = "not_paid"
	PaymentPrepaid PaymentStatus = "prepaid"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentNotPaid || s == PaymentPrepaid || s == PaymentPaid
}

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

func (s ProposalStatus) Valid() bool {
	return s == ProposalPending || s == ProposalAccepted || s == ProposalRejected
}

// Actor records who cancelled a booking.
type Actor string

const (
	ActorCustomer  Actor = "customer"
	ActorPerformer Actor = "performer"
	ActorSystem    Actor = "system"
)

func (a Actor) Valid() bool {
	return a == ActorCustomer || a == ActorPerformer || a == ActorSystem
}

type NotificationKind string

const (
	KindPaymentReminder1h      NotificationKind = "payment_reminder_1h"
	KindPaymentReminder10m     NotificationKind = "payment_reminder_10m"
	KindPaymentDeadlineExpired NotificationKind = "payment_deadline_expired"
	KindVisitReminder3d        NotificationKind = "visit_reminder_3d"
	KindVisitReminder1d        NotificationKind = "visit_reminder_1d"
	KindVisitReminder5h        NotificationKind = "visit_reminder_5h"
	KindAutoCancelledNotice    NotificationKind = "auto_cancelled_notice"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case KindPaymentReminder1h, KindPaymentReminder10m, KindPaymentDeadlineExpired,
		KindVisitReminder3d, KindVisitReminder1d, KindVisitReminder5h, KindAutoCancelledNotice:
		return true
	}
	return false
}

func (k NotificationKind) IsPaymentReminder() bool {
	return k == KindPaymentReminder1h || k == KindPaymentReminder10m
}

func (k NotificationKind) IsVisitReminder() bool {
	return k == KindVisitReminder3d || k == KindVisitReminder1d || k == KindVisitReminder5h
}
