package models

import "time"

type CycleStatus string

const (
	CycleDraft     CycleStatus = "draft"
	CycleActive    CycleStatus = "active"
	CycleCompleted CycleStatus = "completed"
	CycleArchived  CycleStatus = "archived"
)

// AssessmentCycle is one evaluation period of an organization. IsActive is
// independent of Status and marks the cycle the portal reads by default; at
// most one cycle per OrgID has it set.
type AssessmentCycle struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	OrgID       string `gorm:"type:varchar(64);not null;index:idx_cycle_org_active,priority:1;uniqueIndex:idx_cycle_one_active,where:is_active = true"`
	Year        int    `gorm:"not null"`
	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	StartDate   time.Time
	EndDate     time.Time
	Status      CycleStatus `gorm:"type:varchar(20);not null;default:'draft'"`
	IsActive    bool        `gorm:"not null;default:false;index:idx_cycle_org_active,priority:2"`
	CreatedAt   time.Time   `gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime"`
}

func (AssessmentCycle) TableName() string {
	return "cycles"
}

// NewCycle is the input of cycle creation. IsActive is accepted so callers
// can pass form state through, but creation never honours it.
type NewCycle struct {
	OrgID       string `validate:"required"`
	Year        int    `validate:"gte=2000,lte=2100"`
	Name        string `validate:"required,max=255"`
	Description string
	StartDate   time.Time `validate:"required"`
	EndDate     time.Time `validate:"required,gtefield=StartDate"`
	IsActive    bool
}

// CyclePatch carries optional field updates. IsActive is never applied.
type CyclePatch struct {
	Year        *int
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      *CycleStatus
	IsActive    *bool
}
