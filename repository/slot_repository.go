package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SlotRepo struct {
	db *gorm.DB
}

func NewSlotRepo(db *gorm.DB) *SlotRepo {
	return &SlotRepo{db: db}
}

func (r *SlotRepo) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *SlotRepo) Get(ctx context.Context, id uuid.UUID) (*models.AvailabilitySlot, error) {
	var slot models.AvailabilitySlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &slot, nil
}

func (r *SlotRepo) ListByPerformer(ctx context.Context, performerID uuid.UUID, from, to time.Time) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	err := r.db.WithContext(ctx).
		Where("performer_id = ? AND start_time >= ? AND start_time < ?", performerID, from, to).
		Order("start_time").
		Find(&slots).Error
	return slots, err
}

func (r *SlotRepo) Reserve(ctx context.Context, slotID, bookingID uuid.UUID) error {
	return reserve(r.db.WithContext(ctx), slotID, bookingID)
}

func reserve(tx *gorm.DB, slotID, bookingID uuid.UUID) error {
	res := tx.Model(&models.AvailabilitySlot{}).
		Where("id = ? AND status = ?", slotID, models.SlotFree).
		Updates(map[string]interface{}{"status": models.SlotBooked, "booking_id": bookingID})
	if res.Error != nil {
		return fmt.Errorf("reserve slot %s: %w", slotID, res.Error)
	}
	if res.RowsAffected == 0 {
		return missOrConflict(tx, slotID)
	}
	return nil
}

// missOrConflict tells an unknown slot from one in the wrong state after a
// compare-and-set matched nothing.
func missOrConflict(tx *gorm.DB, slotID uuid.UUID) error {
	var n int64
	if err := tx.Model(&models.AvailabilitySlot{}).Where("id = ?", slotID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return models.ErrSlotConflict
}

func (r *SlotRepo) Release(ctx context.Context, slotID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.AvailabilitySlot{}).
		Where("id = ? AND status = ?", slotID, models.SlotBooked).
		Updates(map[string]interface{}{"status": models.SlotFree, "booking_id": nil})
	if res.Error != nil {
		return fmt.Errorf("release slot %s: %w", slotID, res.Error)
	}
	return nil
}

// Reassign frees oldSlotID and reserves newSlotID in one transaction; a
// conflict on the new slot rolls the release back.
func (r *SlotRepo) Reassign(ctx context.Context, oldSlotID, newSlotID, bookingID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AvailabilitySlot{}).
			Where("id = ? AND status = ? AND booking_id = ?", oldSlotID, models.SlotBooked, bookingID).
			Updates(map[string]interface{}{"status": models.SlotFree, "booking_id": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrSlotConflict
		}
		return reserve(tx, newSlotID, bookingID)
	})
}

func (r *SlotRepo) Block(ctx context.Context, slotID uuid.UUID) error {
	return r.swap(ctx, slotID, models.SlotFree, models.SlotBlocked)
}

func (r *SlotRepo) Unblock(ctx context.Context, slotID uuid.UUID) error {
	return r.swap(ctx, slotID, models.SlotBlocked, models.SlotFree)
}

func (r *SlotRepo) swap(ctx context.Context, slotID uuid.UUID, from, to models.SlotStatus) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.AvailabilitySlot{}).
		Where("id = ? AND status = ?", slotID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missOrConflict(db, slotID)
	}
	return nil
}
