package notifications

import (
	"fmt"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
)

const visitLayout = "Mon 2 Jan 2006 at 15:04"

// Compose renders the message for a queue row's kind.
func Compose(kind models.NotificationKind, b *models.Booking, loc *time.Location) Message {
	msg := Message{Kind: kind, BookingID: b.ID}

	visit := b.BookingTime
	if at, err := b.VisitAt(loc); err == nil {
		visit = at.Format(visitLayout)
	}
	amount := formatAmount(b.PrepaymentAmount)
	deadline := ""
	if b.PaymentDeadline != nil {
		deadline = b.PaymentDeadline.In(loc).Format("15:04")
	}

	switch kind {
	case models.KindPaymentReminder1h:
		msg.Subject = "Reminder: 1 hour left to pay for your booking"
		msg.Text = fmt.Sprintf("Booking %s needs a prepayment of %s by %s or it will be cancelled.", b.Reference, amount, deadline)
	case models.KindPaymentReminder10m:
		msg.Subject = "Last call: 10 minutes left to pay"
		msg.Text = fmt.Sprintf("Booking %s will be cancelled at %s unless the prepayment of %s arrives.", b.Reference, deadline, amount)
	case models.KindPaymentDeadlineExpired, models.KindAutoCancelledNotice:
		msg.Subject = "Your booking was cancelled"
		msg.Text = fmt.Sprintf("Booking %s for %s was cancelled because the prepayment was not received in time.", b.Reference, visit)
	case models.KindVisitReminder3d:
		msg.Subject = "Your booking is in 3 days"
		msg.Text = fmt.Sprintf("Booking %s is scheduled for %s.", b.Reference, visit)
	case models.KindVisitReminder1d:
		msg.Subject = "Your booking is tomorrow"
		msg.Text = fmt.Sprintf("Booking %s is scheduled for %s.", b.Reference, visit)
	case models.KindVisitReminder5h:
		msg.Subject = "Your booking starts in 5 hours"
		msg.Text = fmt.Sprintf("Booking %s starts %s.", b.Reference, visit)
	default:
		msg.Subject = "Booking update"
		msg.Text = fmt.Sprintf("There is an update on booking %s.", b.Reference)
	}

	msg.HTML = fmt.Sprintf("<h1>%s</h1><p>%s</p>", msg.Subject, msg.Text)
	return msg
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
