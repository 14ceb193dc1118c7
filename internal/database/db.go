package database

import (
	"whalegate/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// InitDB opens the sqlite database and runs migrations. The handle is
// returned rather than stored in a package global so startup can fail
// fast before the server accepts traffic.
func InitDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.VerificationRecord{}, &models.Nonce{}); err != nil {
		return nil, err
	}

	return db, nil
}

// Ping verifies the underlying connection is usable. Used by the
// readiness probe.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
