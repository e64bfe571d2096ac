package models

import "time"

// AttendanceSession is the short-lived, single-use authorization opened by a valid scan.
type AttendanceSession struct {
	ID            string     `gorm:"primaryKey;size:36"`
	EventID       string     `gorm:"size:36;index;not null"`
	TokenSnapshot string     `gorm:"size:128;not null"`
	ClientID      string     `gorm:"size:64;not null"`
	CreatedAt     time.Time  `gorm:"not null"`
	ExpiresAt     time.Time  `gorm:"index;not null"`
	ConsumedAt    *time.Time // set exactly once, by compare-and-set
}

// Consumed reports whether the session already produced a submission.
func (s *AttendanceSession) Consumed() bool {
	return s.ConsumedAt != nil
}
