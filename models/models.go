package models

import (
	"time"

	"gorm.io/datatypes"
)

// Session tracks one opened workspace
type Session struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Root      string    `gorm:"type:text;not null"`
	StartedAt time.Time `gorm:"autoCreateTime"`
	EndedAt   *time.Time

	// Statistics
	FilesIndexed    int `gorm:"default:0"`
	ElementsIndexed int `gorm:"default:0"`
	PatchesCount    int `gorm:"default:0"`

	// Client info
	ClientInfo datatypes.JSON `gorm:"type:jsonb"`

	Patches []PatchRecord `gorm:"foreignKey:SessionID"`
}

// PatchRecord is one successful patch written to disk
type PatchRecord struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	SessionID string `gorm:"type:varchar(36);index"`

	// Target information
	File     string `gorm:"type:text;not null;index"`
	Path     string `gorm:"type:text;not null"` // path expression as given
	Language string `gorm:"type:varchar(50)"`
	Mode     string `gorm:"type:varchar(20);not null"` // replace, append

	// Checksums for validation
	BeforeFingerprint string `gorm:"type:varchar(64)"` // SHA256 of the element before
	AfterFingerprint  string `gorm:"type:varchar(64)"` // SHA256 of the element after

	// Line deltas
	LinesAdded   int
	LinesRemoved int
	Diff         string `gorm:"type:text"`

	// Additional metadata
	Meta datatypes.JSON `gorm:"type:jsonb"`

	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

// TableName customizations for cleaner names
func (Session) TableName() string     { return "sessions" }
func (PatchRecord) TableName() string { return "patches" }
