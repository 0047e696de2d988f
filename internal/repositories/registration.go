package repositories

import (
	"context"
	"fmt"
	"time"

	"evidence-portal/internal/models"
	"evidence-portal/pkg/portalErrors"
	"gorm.io/gorm"
)

type RegistrationRepository struct {
	db *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	return translate(r.db.WithContext(ctx).Create(reg).Error, "create registration")
}

func (r *RegistrationRepository) ByID(ctx context.Context, id string) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reg).Error; err != nil {
		return nil, translate(err, "registration "+id)
	}
	return &reg, nil
}

func (r *RegistrationRepository) PendingByOrg(ctx context.Context, orgID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND status = ?", orgID, models.RegistrationPending).
		Order("created_at ASC").
		Find(&regs).Error
	if err != nil {
		return nil, translate(err, "pending registrations")
	}
	return regs, nil
}

// Review moves a pending registration to status. A registration that was
// already reviewed yields ErrAlreadyReviewed.
func (r *RegistrationRepository) Review(ctx context.Context, id string, status models.RegistrationStatus, reviewer, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ? AND status = ?", id, models.RegistrationPending).
		Updates(map[string]any{
			"status":        status,
			"reviewed_by":   reviewer,
			"reviewed_at":   at,
			"reject_reason": reason,
		})
	if res.Error != nil {
		return translate(res.Error, "review registration")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	if _, err := r.ByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("registration %s: %w", id, portalErrors.ErrAlreadyReviewed)
}
