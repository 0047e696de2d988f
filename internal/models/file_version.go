package models

import "time"

// FileVersion is an immutable snapshot of an Evidence artifact. Only IsLatest
// changes after creation.
type FileVersion struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	EvidenceID     string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_evidence_version,priority:1;uniqueIndex:idx_evidence_latest,where:is_latest = true"`
	Version        int       `gorm:"not null;uniqueIndex:idx_evidence_version,priority:2"`
	FileURL        string    `gorm:"type:text;not null"`
	FileSize       int64     `gorm:"not null;default:0"`
	MimeType       string    `gorm:"type:varchar(127)"`
	Label          string    `gorm:"type:varchar(255)"`
	Notes          string    `gorm:"type:text"`
	UploadedBy     string    `gorm:"type:varchar(64);not null"`
	UploadedByName string    `gorm:"type:varchar(255)"`
	UploadedAt     time.Time `gorm:"autoCreateTime"`
	IsLatest       bool      `gorm:"not null;default:false"`
}

func (FileVersion) TableName() string {
	return "file_versions"
}

// Payload describes the stored file of a version.
type Payload struct {
	FileURL  string `validate:"required"`
	FileSize int64  `validate:"gte=0"`
	MimeType string `validate:"omitempty,max=127"`
	Label    string `validate:"max=255"`
}

// PayloadOf returns the payload descriptors of an existing version.
func PayloadOf(v *FileVersion) Payload {
	return Payload{
		FileURL:  v.FileURL,
		FileSize: v.FileSize,
		MimeType: v.MimeType,
		Label:    v.Label,
	}
}

type Uploader struct {
	ID   string `validate:"required"`
	Name string
}
