package repositories

import (
	"context"
	"time"

	"evidence-portal/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EvidenceRepository struct {
	db *gorm.DB
}

func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Transaction runs fn against a repository bound to a single database
// transaction.
func (r *EvidenceRepository) Transaction(ctx context.Context, fn func(tx *EvidenceRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&EvidenceRepository{db: tx})
	})
}

func (r *EvidenceRepository) CreateEvidence(ctx context.Context, ev *models.Evidence) error {
	return translate(r.db.WithContext(ctx).Omit("Versions").Create(ev).Error, "create evidence")
}

func (r *EvidenceRepository) EvidenceByID(ctx context.Context, id string) (*models.Evidence, error) {
	var ev models.Evidence
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error
	if err != nil {
		return nil, translate(err, "evidence "+id)
	}
	return &ev, nil
}

// LockEvidence reads the evidence row and, on postgres, holds a row lock
// until the surrounding transaction ends. SQLite serialises writers itself.
func (r *EvidenceRepository) LockEvidence(ctx context.Context, id string) (*models.Evidence, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var ev models.Evidence
	if err := q.Where("id = ?", id).First(&ev).Error; err != nil {
		return nil, translate(err, "evidence "+id)
	}
	return &ev, nil
}

// SetPointer moves the evidence's current-version pointer.
func (r *EvidenceRepository) SetPointer(ctx context.Context, id string, current, total int, by string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Evidence{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_version": current,
			"total_versions":  total,
			"last_updated_at": at,
			"last_updated_by": by,
		})
	if res.Error != nil {
		return translate(res.Error, "update evidence pointer")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "evidence "+id)
	}
	return nil
}

// CompareAndSetPointer moves the pointer only if current_version still equals
// expected. It reports whether the row was updated.
func (r *EvidenceRepository) CompareAndSetPointer(ctx context.Context, id string, expected, current, total int, by string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Evidence{}).
		Where("id = ? AND current_version = ?", id, expected).
		Updates(map[string]any{
			"current_version": current,
			"total_versions":  total,
			"last_updated_at": at,
			"last_updated_by": by,
		})
	if res.Error != nil {
		return false, translate(res.Error, "update evidence pointer")
	}
	return res.RowsAffected == 1, nil
}

func (r *EvidenceRepository) CreateVersion(ctx context.Context, v *models.FileVersion) error {
	return translate(r.db.WithContext(ctx).Create(v).Error, "create file version")
}

// SupersedeLatest clears the latest flag of every version of the evidence.
func (r *EvidenceRepository) SupersedeLatest(ctx context.Context, evidenceID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.FileVersion{}).
		Where("evidence_id = ? AND is_latest = ?", evidenceID, true).
		Update("is_latest", false)
	if res.Error != nil {
		return 0, translate(res.Error, "supersede latest version")
	}
	return res.RowsAffected, nil
}

func (r *EvidenceRepository) VersionByID(ctx context.Context, id string) (*models.FileVersion, error) {
	var v models.FileVersion
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, translate(err, "file version "+id)
	}
	return &v, nil
}

func (r *EvidenceRepository) VersionByNumber(ctx context.Context, evidenceID string, version int) (*models.FileVersion, error) {
	var v models.FileVersion
	err := r.db.WithContext(ctx).
		Where("evidence_id = ? AND version = ?", evidenceID, version).
		First(&v).Error
	if err != nil {
		return nil, translate(err, "file version")
	}
	return &v, nil
}

// VersionsByEvidence returns the chain newest first.
func (r *EvidenceRepository) VersionsByEvidence(ctx context.Context, evidenceID string) ([]models.FileVersion, error) {
	var versions []models.FileVersion
	err := r.db.WithContext(ctx).
		Where("evidence_id = ?", evidenceID).
		Order("version DESC").
		Find(&versions).Error
	if err != nil {
		return nil, translate(err, "file versions")
	}
	return versions, nil
}

func (r *EvidenceRepository) CountVersions(ctx context.Context, evidenceID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.FileVersion{}).
		Where("evidence_id = ?", evidenceID).
		Count(&n).Error
	return n, translate(err, "count file versions")
}

func (r *EvidenceRepository) DeleteVersion(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FileVersion{})
	if res.Error != nil {
		return translate(res.Error, "delete file version")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "file version "+id)
	}
	return nil
}

// DeleteEvidence removes the versions first, then the evidence row.
func (r *EvidenceRepository) DeleteEvidence(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("DELETE FROM file_versions WHERE evidence_id = ?", id).Error; err != nil {
		return translate(err, "delete file versions")
	}

	res := db.Exec("DELETE FROM evidence WHERE id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "delete evidence")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "evidence "+id)
	}
	return nil
}
