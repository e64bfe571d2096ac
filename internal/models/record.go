package models

import "time"

type RecordStatus string

const (
	StatusVerified   RecordStatus = "verified"
	StatusSuspicious RecordStatus = "suspicious"
	StatusCleared    RecordStatus = "cleared"
	StatusExcused    RecordStatus = "excused"
)

// Valid reports whether s is one of the known statuses.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusVerified, StatusSuspicious, StatusCleared, StatusExcused:
		return true
	}
	return false
}

// AttendanceRecord is one accepted submission.
//
// StrictKey carries the client id hash only for events in strict identity mode, so the
// composite unique index rejects a second record there while leaving lenient events free
// to hold flagged duplicates (NULLs never collide).
type AttendanceRecord struct {
	ID               uint         `gorm:"primaryKey"`
	EventID          string       `gorm:"size:36;index;not null;uniqueIndex:idx_record_strict,priority:1"`
	AttendeeName     string       `gorm:"size:255;not null"`
	AttendeeEmail    string       `gorm:"size:255;index;not null"`
	ClientID         string       `gorm:"size:64;index"`
	ClientIDHash     string       `gorm:"size:64;index"`
	StrictKey        *string      `gorm:"size:64;uniqueIndex:idx_record_strict,priority:2"`
	Status           RecordStatus `gorm:"size:16;index;not null"`
	SuspiciousReason *string      `gorm:"type:text"`
	LocationLat      *float64
	LocationLng      *float64
	LocationProvided bool `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
