package models

import "time"

// AuditLog records organizer operations for auditing.
type AuditLog struct {
	ID          uint   `gorm:"primaryKey"`
	OrganizerID string `gorm:"size:64;index"`
	Method      string `gorm:"size:16"`
	Path        string `gorm:"size:255"`  // plain path when no encryption key is configured
	PathEnc     string `gorm:"size:1024"` // AES+base64
	Action      string `gorm:"size:1024"`
	ActionEnc   string `gorm:"size:2048"`
	Status      int
	IP          string    `gorm:"size:64"`
	UserAgent   string    `gorm:"size:255"`
	CreatedAt   time.Time `gorm:"index"`
}
