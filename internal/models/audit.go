package models

import "time"

type AuditEvent struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Actor     string    `gorm:"type:varchar(64);not null;index"`
	Action    string    `gorm:"type:varchar(64);not null"`
	Subject   string    `gorm:"type:varchar(64);not null;index"`
	Detail    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

const (
	ActionRegistrationApproved = "registration.approved"
	ActionRegistrationRejected = "registration.rejected"
	ActionEvidenceReverted     = "evidence.reverted"
	ActionEvidenceDeleted      = "evidence.deleted"
	ActionVersionDeleted       = "file_version.deleted"
	ActionCycleActivated       = "cycle.activated"
)
