package util

import (
	"fmt"
	"math"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// ValidateAttendeeName checks a trimmed display name.
func ValidateAttendeeName(name string) error {
	if name == "" {
		return fmt.Errorf("name is empty")
	}
	if utf8.RuneCountInString(name) > 120 {
		return fmt.Errorf("name too long, max 120 characters")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare address (no display name) with a dotted domain.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is empty")
	}
	if len(email) > 254 {
		return fmt.Errorf("email too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email %q", email)
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("invalid email domain %q", email)
	}
	return nil
}

// ValidateCoordinates checks WGS84 latitude/longitude ranges.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("coordinates are NaN")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude out of range, got %f", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude out of range, got %f", lng)
	}
	return nil
}
