package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/vibefs/internal/models"
)

// AutoMigrate creates or updates the authorization tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.FileAuthorization{},
		&models.GitAuthorization{},
	)
}
