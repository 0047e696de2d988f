package repositories

import (
	"context"

	"evidence-portal/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, actor, action, subject, detail string) error {
	ev := models.AuditEvent{
		ID:      uuid.NewString(),
		Actor:   actor,
		Action:  action,
		Subject: subject,
		Detail:  detail,
	}
	return translate(r.db.WithContext(ctx).Create(&ev).Error, "record audit event")
}

// BySubject returns the audit trail of one record, oldest first.
func (r *AuditRepository) BySubject(ctx context.Context, subject string) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	err := r.db.WithContext(ctx).
		Where("subject = ?", subject).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, translate(err, "audit events")
	}
	return events, nil
}
