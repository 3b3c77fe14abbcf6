package repository

import (
	"context"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingRepo struct {
	db *gorm.DB
}

func NewBookingRepo(db *gorm.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

func (r *BookingRepo) Create(ctx context.Context, b *models.Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &b, nil
}

func (r *BookingRepo) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Booking{}).Where("reference = ?", reference).Count(&n).Error
	return n > 0, err
}

func (r *BookingRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Booking, error) {
	var out []models.Booking
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *BookingRepo) ListByPerformer(ctx context.Context, performerID uuid.UUID) ([]models.Booking, error) {
	var out []models.Booking
	err := r.db.WithContext(ctx).Where("performer_id = ?", performerID).Order("created_at DESC").Find(&out).Error
	return out, err
}

// Transition issues one conditional UPDATE; zero rows affected means another
// writer got there first.
func (r *BookingRepo) Transition(ctx context.Context, id uuid.UUID, t models.BookingTransition) (bool, error) {
	updates := map[string]interface{}{"status": t.To}
	if t.ConfirmedAt != nil {
		updates["confirmed_at"] = *t.ConfirmedAt
	}
	if t.PaymentDeadline != nil {
		updates["payment_deadline"] = *t.PaymentDeadline
	}
	if t.CancellationReason != nil {
		updates["cancellation_reason"] = *t.CancellationReason
	}
	if t.CancelledBy != nil {
		updates["cancelled_by"] = *t.CancelledBy
	}
	if rs := t.Reschedule; rs != nil {
		updates["booking_date"] = rs.Date
		updates["booking_time"] = rs.Time
		if rs.Price != nil {
			updates["price_total"] = *rs.Price
		}
		if rs.Prepayment != nil {
			updates["prepayment_amount"] = *rs.Prepayment
		}
		if rs.SlotID != nil {
			updates["slot_id"] = *rs.SlotID
		} else {
			updates["slot_id"] = nil
		}
	}

	q := r.db.WithContext(ctx).Model(&models.Booking{}).Where("id = ? AND status IN ?", id, t.From)
	if len(t.PaymentIn) > 0 {
		q = q.Where("payment_status IN ?", t.PaymentIn)
	}
	if t.CheckSlot {
		if t.HeldSlot == nil {
			q = q.Where("slot_id IS NULL")
		} else {
			q = q.Where("slot_id = ?", *t.HeldSlot)
		}
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *BookingRepo) SetPaymentStatus(ctx context.Context, id uuid.UUID, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND payment_status IN ? AND status IN ?", id, from, models.ActiveBookingStatuses()).
		Update("payment_status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
