package models

import "time"

// FileAuthorization binds a token to one absolute file path until ExpiresAt.
type FileAuthorization struct {
	Token     string  `gorm:"primaryKey;size:64" json:"token"`
	FilePath  string  `gorm:"not null;index" json:"file_path"`
	FileName  string  `gorm:"not null" json:"file_name"`
	CreatedAt float64 `gorm:"not null;index;autoCreateTime:false" json:"created_at"`
	ExpiresAt float64 `gorm:"not null;index" json:"expires_at"`
}

// TableName keeps the table name stable across model renames.
func (FileAuthorization) TableName() string {
	return "authorizations"
}

// ExpiresAtSeconds returns the stored expiry.
func (a FileAuthorization) ExpiresAtSeconds() float64 {
	return a.ExpiresAt
}

// Expiry returns ExpiresAt as a time.Time.
func (a FileAuthorization) Expiry() time.Time {
	return FromTimestamp(a.ExpiresAt)
}
