package models

import "time"

// SuggestionDismissal hides one email pair from a season's duplicate suggestions.
// EmailA is always the lexicographically smaller address.
type SuggestionDismissal struct {
	ID        uint   `gorm:"primaryKey"`
	SeasonID  string `gorm:"size:36;not null;uniqueIndex:idx_dismissal_pair,priority:1"`
	EmailA    string `gorm:"size:255;not null;uniqueIndex:idx_dismissal_pair,priority:2"`
	EmailB    string `gorm:"size:255;not null;uniqueIndex:idx_dismissal_pair,priority:3"`
	CreatedAt time.Time
}
