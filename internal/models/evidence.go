package models

import "time"

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Evidence is one proof artifact of a unit for an assessment category.
// CurrentVersion points at the FileVersion flagged IsLatest.
type Evidence struct {
	ID                 string `gorm:"type:varchar(36);primaryKey"`
	UnitID             string `gorm:"type:varchar(64);not null;index:idx_evidence_scope" validate:"required"`
	CategoryID         int    `gorm:"not null;index:idx_evidence_scope" validate:"min=1,max=7"`
	CycleID            string `gorm:"type:varchar(36);not null;index:idx_evidence_scope" validate:"required"`
	Title              string `gorm:"type:varchar(255)"`
	Links              StringList
	CurrentVersion     int                `gorm:"not null;default:0"`
	TotalVersions      int                `gorm:"not null;default:0"`
	VerificationStatus VerificationStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	LastUpdatedAt      time.Time
	LastUpdatedBy      string    `gorm:"type:varchar(64)"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`

	Versions []FileVersion `gorm:"foreignKey:EvidenceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Evidence) TableName() string {
	return "evidence"
}
