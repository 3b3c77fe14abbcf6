package repository

import (
	"context"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const enqueueBatchSize = 100

// NotificationRepo is the notification_queue table used as a polling queue.
type NotificationRepo struct {
	db *gorm.DB
}

func NewNotificationRepo(db *gorm.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Enqueue(ctx context.Context, rows []models.ScheduledNotification) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&rows, enqueueBatchSize).Error
}

func (r *NotificationRepo) Due(ctx context.Context, now, staleBefore time.Time, limit int) ([]models.ScheduledNotification, error) {
	var rows []models.ScheduledNotification
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL AND scheduled_for <= ?", now).
		Where("(claimed_at IS NULL OR claimed_at < ?)", staleBefore).
		Order("scheduled_for").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *NotificationRepo) Claim(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ScheduledNotification{}).
		Where("id = ? AND sent_at IS NULL", id).
		Where("(claimed_at IS NULL OR claimed_at < ?)", staleBefore).
		Update("claimed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *NotificationRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, lastError *string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ScheduledNotification{}).
		Where("id = ? AND sent_at IS NULL", id).
		Updates(map[string]interface{}{"sent_at": sentAt, "last_error": lastError})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *NotificationRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.ScheduledNotification, error) {
	var rows []models.ScheduledNotification
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("scheduled_for").Find(&rows).Error
	return rows, err
}
