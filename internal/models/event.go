package models

import "time"

// StaticToken is the scan token of an active event whose rotation is disabled. It never expires.
const StaticToken = "static"

// Event is the shared record the organizer's clients coordinate through.
// Token and lease columns are only written with conditional updates.
type Event struct {
	ID          string  `gorm:"primaryKey;size:36"`
	OrganizerID string  `gorm:"size:64;index;not null"`
	SeasonID    *string `gorm:"size:36;index"`
	Name        string  `gorm:"size:255;not null"`

	Active                  bool `gorm:"not null;default:false"`
	RotationEnabled         bool `gorm:"not null"`
	RotationIntervalSeconds int  `gorm:"not null"`

	CurrentToken       *string `gorm:"size:128"`
	TokenExpiresAt     *time.Time
	HostID             *string `gorm:"size:64"`
	HostLeaseExpiresAt *time.Time

	IdentityCheckEnabled bool `gorm:"not null;default:false"`
	IdentityStrict       bool `gorm:"not null;default:false"`

	GeofenceEnabled      bool    `gorm:"not null;default:false"`
	GeofenceLat          float64 `gorm:"not null;default:0"`
	GeofenceLng          float64 `gorm:"not null;default:0"`
	GeofenceRadiusMeters float64 `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Season groups events for cross-event duplicate analysis.
type Season struct {
	ID          string `gorm:"primaryKey;size:36"`
	OrganizerID string `gorm:"size:64;index;not null"`
	Name        string `gorm:"size:255;not null"`
	CreatedAt   time.Time
}
