package database

import (
	"time"
)

// Progress records how far the user got into one sub-item, keyed by the
// locator token the source handed out for it.
type Progress struct {
	ID         uint   `gorm:"primaryKey"`
	Locator    string `gorm:"not null;index"`
	EntryID    string `gorm:"not null;index"`
	EntryTitle string `gorm:"not null"`
	// Kind is "video" or "book".
	Kind       string `gorm:"not null;index"`
	SourceName string `gorm:"not null"`
	ProviderID string `gorm:"default:''"`
	Ordinal    string `gorm:"default:''"`

	// Video progress.
	PositionSeconds int `gorm:"default:0"`
	DurationSeconds int `gorm:"default:0"`

	// Book progress.
	Page       int `gorm:"default:0"`
	TotalPages int `gorm:"default:0"`

	Percent   float64   `gorm:"not null;default:0"`
	Completed bool      `gorm:"default:false"`
	UpdatedAt time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Progress) TableName() string {
	return "progress"
}

// Setting represents a key-value store for application settings
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Setting) TableName() string {
	return "settings"
}
