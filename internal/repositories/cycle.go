package repositories

import (
	"context"

	"evidence-portal/internal/models"
	"gorm.io/gorm"
)

type CycleRepository struct {
	db *gorm.DB
}

func NewCycleRepository(db *gorm.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

func (r *CycleRepository) Create(ctx context.Context, c *models.AssessmentCycle) error {
	return translate(r.db.WithContext(ctx).Create(c).Error, "create cycle")
}

func (r *CycleRepository) ByID(ctx context.Context, id string) (*models.AssessmentCycle, error) {
	var c models.AssessmentCycle
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err, "cycle "+id)
	}
	return &c, nil
}

// ByOrg returns the cycles of an organization, newest year first.
func (r *CycleRepository) ByOrg(ctx context.Context, orgID string) ([]models.AssessmentCycle, error) {
	var cycles []models.AssessmentCycle
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("year DESC").
		Order("created_at DESC").
		Find(&cycles).Error
	if err != nil {
		return nil, translate(err, "cycles")
	}
	return cycles, nil
}

func (r *CycleRepository) ActiveByOrg(ctx context.Context, orgID string) ([]models.AssessmentCycle, error) {
	var cycles []models.AssessmentCycle
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND is_active = ?", orgID, true).
		Order("year DESC").
		Order("created_at DESC").
		Find(&cycles).Error
	if err != nil {
		return nil, translate(err, "active cycles")
	}
	return cycles, nil
}

func (r *CycleRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.AssessmentCycle{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error, "update cycle")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "cycle "+id)
	}
	return nil
}

// Activate applies the activation batch in one transaction: every other
// active cycle of the organization is cleared, then the target is flagged
// active. A failure in either step rolls back both. It returns how many
// cycles were cleared.
func (r *CycleRepository) Activate(ctx context.Context, orgID, targetID string) (int64, error) {
	var cleared int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AssessmentCycle{}).
			Where("org_id = ? AND is_active = ? AND id <> ?", orgID, true, targetID).
			Update("is_active", false)
		if res.Error != nil {
			return translate(res.Error, "deactivate cycles")
		}
		cleared = res.RowsAffected

		res = tx.Model(&models.AssessmentCycle{}).
			Where("id = ? AND org_id = ?", targetID, orgID).
			Updates(map[string]any{
				"is_active": true,
				"status":    models.CycleActive,
			})
		if res.Error != nil {
			return translate(res.Error, "activate cycle")
		}
		if res.RowsAffected == 0 {
			return translate(gorm.ErrRecordNotFound, "cycle "+targetID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cleared, nil
}
