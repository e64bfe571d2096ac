package database

import (
	"fmt"

	"attendly/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Season{},
		&models.Event{},
		&models.AttendanceSession{},
		&models.AttendanceRecord{},
		&models.SuggestionDismissal{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
