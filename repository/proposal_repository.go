package repository

import (
	"context"

	"github.com/anjiri1684/marketplace_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProposalRepo struct {
	db *gorm.DB
}

func NewProposalRepo(db *gorm.DB) *ProposalRepo {
	return &ProposalRepo{db: db}
}

func (r *ProposalRepo) ReplacePending(ctx context.Context, bookingID uuid.UUID, proposals []models.Proposal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("booking_id = ? AND status = ?", bookingID, models.ProposalPending).
			Delete(&models.Proposal{}).Error; err != nil {
			return err
		}
		if len(proposals) == 0 {
			return nil
		}
		for i := range proposals {
			proposals[i].BookingID = bookingID
			if proposals[i].Status == "" {
				proposals[i].Status = models.ProposalPending
			}
		}
		return tx.Create(&proposals).Error
	})
}

func (r *ProposalRepo) Get(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	var p models.Proposal
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}

func (r *ProposalRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Proposal, error) {
	var out []models.Proposal
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at").Find(&out).Error
	return out, err
}

func (r *ProposalRepo) Resolve(ctx context.Context, bookingID, acceptedID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if acceptedID != uuid.Nil {
			if err := tx.Model(&models.Proposal{}).
				Where("id = ? AND booking_id = ? AND status = ?", acceptedID, bookingID, models.ProposalPending).
				Update("status", models.ProposalAccepted).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Proposal{}).
			Where("booking_id = ? AND status = ?", bookingID, models.ProposalPending).
			Update("status", models.ProposalRejected).Error
	})
}
