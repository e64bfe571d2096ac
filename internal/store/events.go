package store

import (
	"context"
	"time"

	"attendly/internal/models"
)

func (s *Gorm) CreateEvent(ctx context.Context, e *models.Event) error {
	return translate(s.db.WithContext(ctx).Create(e).Error, "create event")
}

func (s *Gorm) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, translate(err, "get event")
	}
	return &e, nil
}

func (s *Gorm) ListEvents(ctx context.Context, organizerID string) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Where("organizer_id = ?", organizerID).
		Order("created_at DESC").
		Find(&events).Error
	return events, translate(err, "list events")
}

// UpdateEventSettings writes the organizer-editable columns. When the event is active the
// token column follows the rotation flag: the static sentinel when rotation is off, cleared
// (awaiting the next rotation by the host) when it is on.
func (s *Gorm) UpdateEventSettings(ctx context.Context, e *models.Event) error {
	updates := map[string]any{
		"name":                      e.Name,
		"season_id":                 e.SeasonID,
		"rotation_enabled":          e.RotationEnabled,
		"rotation_interval_seconds": e.RotationIntervalSeconds,
		"identity_check_enabled":    e.IdentityCheckEnabled,
		"identity_strict":           e.IdentityStrict,
		"geofence_enabled":          e.GeofenceEnabled,
		"geofence_lat":              e.GeofenceLat,
		"geofence_lng":              e.GeofenceLng,
		"geofence_radius_meters":    e.GeofenceRadiusMeters,
	}
	if e.Active {
		if e.RotationEnabled {
			if e.CurrentToken != nil && *e.CurrentToken == models.StaticToken {
				updates["current_token"] = nil
				updates["token_expires_at"] = nil
			}
		} else {
			updates["current_token"] = models.StaticToken
			updates["token_expires_at"] = nil
		}
	}
	res := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", e.ID).Updates(updates)
	if res.Error != nil {
		return translate(res.Error, "update event")
	}
	if res.RowsAffected == 0 {
		return translate(ErrNotFound, "update event")
	}
	return nil
}

// StartEvent activates the event and clears any stale lease.
func (s *Gorm) StartEvent(ctx context.Context, id string, rotationEnabled bool) error {
	var token any
	if !rotationEnabled {
		token = models.StaticToken
	}
	res := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).Updates(map[string]any{
		"active":                true,
		"current_token":         token,
		"token_expires_at":      nil,
		"host_id":               nil,
		"host_lease_expires_at": nil,
	})
	if res.Error != nil {
		return translate(res.Error, "start event")
	}
	if res.RowsAffected == 0 {
		return translate(ErrNotFound, "start event")
	}
	return nil
}

// StopEvent deactivates the event and nulls token and lease columns.
func (s *Gorm) StopEvent(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).Updates(stoppedColumns())
	if res.Error != nil {
		return translate(res.Error, "stop event")
	}
	if res.RowsAffected == 0 {
		return translate(ErrNotFound, "stop event")
	}
	return nil
}

func stoppedColumns() map[string]any {
	return map[string]any{
		"active":                false,
		"current_token":         nil,
		"token_expires_at":      nil,
		"host_id":               nil,
		"host_lease_expires_at": nil,
	}
}

// ClaimLease succeeds when the event is active and the lease is empty, expired, or already ours.
func (s *Gorm) ClaimLease(ctx context.Context, eventID, holderID string, now, expiresAt time.Time) (bool, error) {
	now = now.UTC()
	res := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND active = ?", eventID, true).
		Where("(host_id IS NULL OR host_lease_expires_at IS NULL OR host_lease_expires_at < ? OR host_id = ?)", now, holderID).
		Updates(map[string]any{
			"host_id":               holderID,
			"host_lease_expires_at": expiresAt.UTC(),
		})
	if res.Error != nil {
		return false, translate(res.Error, "claim lease")
	}
	return res.RowsAffected == 1, nil
}

// RenewLease extends the lease only for its current holder.
func (s *Gorm) RenewLease(ctx context.Context, eventID, holderID string, expiresAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND active = ? AND host_id = ?", eventID, true, holderID).
		Update("host_lease_expires_at", expiresAt.UTC())
	if res.Error != nil {
		return false, translate(res.Error, "renew lease")
	}
	return res.RowsAffected == 1, nil
}

// ReleaseLease clears the lease if holderID owns it; with stop the event is deactivated too.
func (s *Gorm) ReleaseLease(ctx context.Context, eventID, holderID string, stop bool) (bool, error) {
	updates := map[string]any{
		"host_id":               nil,
		"host_lease_expires_at": nil,
	}
	if stop {
		updates = stoppedColumns()
	}
	res := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND host_id = ?", eventID, holderID).
		Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error, "release lease")
	}
	return res.RowsAffected == 1, nil
}

// WriteToken publishes a rotated token, conditioned on holderID holding an unexpired lease
// on an active, rotation-enabled event.
func (s *Gorm) WriteToken(ctx context.Context, eventID, holderID string, now time.Time, token string, expiresAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND active = ? AND rotation_enabled = ?", eventID, true, true).
		Where("host_id = ? AND host_lease_expires_at > ?", holderID, now.UTC()).
		Updates(map[string]any{
			"current_token":    token,
			"token_expires_at": expiresAt.UTC(),
		})
	if res.Error != nil {
		return false, translate(res.Error, "write token")
	}
	return res.RowsAffected == 1, nil
}
