package database

import (
	"errors"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("mysql configuration requires database.dsn")
	}
	// Float columns keep sub-second precision only as DOUBLE.
	return gorm.Open(mysql.Open(dsn), gormConfig())
}
