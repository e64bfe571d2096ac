// Package testutil opens throwaway databases and seeds fixtures for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"attendly/internal/config"
	"attendly/internal/database"
	"attendly/internal/models"
	"attendly/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Epoch is the wall time mock clocks start from in tests.
var Epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// NewStore returns a migrated sqlite-backed store in t's temp dir.
func NewStore(t testing.TB) *store.Gorm {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "attendly.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return store.New(db)
}

// NewClock returns a mock clock set to Epoch.
func NewClock() *clock.Mock {
	m := clock.NewMock()
	m.Set(Epoch)
	return m
}

// EventOption mutates a fixture event before it is inserted.
type EventOption func(*models.Event)

func Rotating(intervalSeconds int) EventOption {
	return func(e *models.Event) {
		e.RotationEnabled = true
		e.RotationIntervalSeconds = intervalSeconds
		e.CurrentToken = nil
	}
}

func Inactive() EventOption {
	return func(e *models.Event) {
		e.Active = false
		e.CurrentToken = nil
	}
}

func Strict() EventOption {
	return func(e *models.Event) {
		e.IdentityCheckEnabled = true
		e.IdentityStrict = true
	}
}

func Geofence(lat, lng, radius float64) EventOption {
	return func(e *models.Event) {
		e.GeofenceEnabled = true
		e.GeofenceLat = lat
		e.GeofenceLng = lng
		e.GeofenceRadiusMeters = radius
	}
}

func InSeason(seasonID string) EventOption {
	return func(e *models.Event) { e.SeasonID = &seasonID }
}

// SeedEvent inserts an active, static-token event owned by "org-1".
func SeedEvent(t testing.TB, s *store.Gorm, opts ...EventOption) *models.Event {
	t.Helper()
	static := models.StaticToken
	e := &models.Event{
		ID:                      uuid.NewString(),
		OrganizerID:             "org-1",
		Name:                    "Weekly meetup",
		Active:                  true,
		RotationIntervalSeconds: 15,
		CurrentToken:            &static,
		GeofenceRadiusMeters:    100,
	}
	for _, opt := range opts {
		opt(e)
	}
	require.NoError(t, s.CreateEvent(context.Background(), e))
	return e
}

// SeedSeason inserts a season owned by "org-1".
func SeedSeason(t testing.TB, s *store.Gorm, name string) *models.Season {
	t.Helper()
	season := &models.Season{ID: uuid.NewString(), OrganizerID: "org-1", Name: name}
	require.NoError(t, s.CreateSeason(context.Background(), season))
	return season
}
