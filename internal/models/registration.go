package models

import "time"

type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

type Registration struct {
	ID             string `gorm:"type:varchar(36);primaryKey"`
	OrgID          string `gorm:"type:varchar(64);not null;index"`
	UnitID         string `gorm:"type:varchar(64)"`
	Email          string `gorm:"type:varchar(255);not null" validate:"required,email"`
	FullName       string `gorm:"type:varchar(255)"`
	RequestedRoles StringList
	Status         RegistrationStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	ReviewedBy     string             `gorm:"type:varchar(64)"`
	ReviewedAt     *time.Time
	RejectReason   string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (Registration) TableName() string {
	return "registrations"
}
