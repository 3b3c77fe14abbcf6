package repository

import (
	"context"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepo(db *gorm.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func (r *PaymentRepo) Seen(ctx context.Context, eventID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PaymentEvent{}).Where("event_id = ?", eventID).Count(&n).Error
	return n > 0, err
}

func (r *PaymentRepo) PaidTotal(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.PaymentEvent{}).
		Where("booking_id = ?", bookingID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// Record inserts the event unless its id is already in the ledger.
func (r *PaymentRepo) Record(ctx context.Context, ev *models.PaymentEvent) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UserRepo reads notification contacts from the users table.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Contact(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &u, nil
}
