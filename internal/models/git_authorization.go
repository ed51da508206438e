package models

import "time"

// GitAuthorization binds a token to one commit of a local repository until ExpiresAt.
type GitAuthorization struct {
	Token      string  `gorm:"primaryKey;size:64" json:"token"`
	RepoPath   string  `gorm:"not null;index:idx_git_authorizations_locator" json:"repo_path"`
	CommitHash string  `gorm:"not null;index:idx_git_authorizations_locator" json:"commit_hash"`
	CreatedAt  float64 `gorm:"not null;index;autoCreateTime:false" json:"created_at"`
	ExpiresAt  float64 `gorm:"not null;index" json:"expires_at"`
}

func (GitAuthorization) TableName() string {
	return "git_authorizations"
}

func (a GitAuthorization) ExpiresAtSeconds() float64 {
	return a.ExpiresAt
}

func (a GitAuthorization) Expiry() time.Time {
	return FromTimestamp(a.ExpiresAt)
}
