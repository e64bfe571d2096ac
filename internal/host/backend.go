package host

import (
	"context"
	"errors"
	"time"

	"attendly/internal/lease"
	"attendly/internal/models"
	"attendly/internal/rotation"
	"attendly/internal/store"
)

// Snapshot is what a viewer observes when it polls the event record.
type Snapshot struct {
	Active                  bool       `json:"active"`
	RotationEnabled         bool       `json:"rotation_enabled"`
	RotationIntervalSeconds int        `json:"rotation_interval_seconds"`
	Token                   string     `json:"token,omitempty"`
	TokenExpiresAt          *time.Time `json:"token_expires_at,omitempty"`
	HostID                  string     `json:"host_id,omitempty"`
	HostLeaseExpiresAt      *time.Time `json:"host_lease_expires_at,omitempty"`
}

// SnapshotOf projects the coordination columns of an event.
func SnapshotOf(e *models.Event) Snapshot {
	s := Snapshot{
		Active:                  e.Active,
		RotationEnabled:         e.RotationEnabled,
		RotationIntervalSeconds: rotation.ClampInterval(e.RotationIntervalSeconds),
		TokenExpiresAt:          e.TokenExpiresAt,
		HostLeaseExpiresAt:      e.HostLeaseExpiresAt,
	}
	if e.CurrentToken != nil {
		s.Token = *e.CurrentToken
	}
	if e.HostID != nil {
		s.HostID = *e.HostID
	}
	return s
}

// Backend is how a host process reaches the shared event record: in-process through the
// coordinator and engine, or remotely through the HTTP client.
type Backend interface {
	Claim(ctx context.Context, eventID, holderID string) (lease.Lease, error)
	Renew(ctx context.Context, eventID, holderID string) (lease.Lease, error)
	Release(ctx context.Context, eventID, holderID string, stop bool) (bool, error)
	Rotate(ctx context.Context, eventID, holderID string) (rotation.Token, bool, error)
	Observe(ctx context.Context, eventID string) (Snapshot, error)
}

type EventReader interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// Local is the in-process Backend.
type Local struct {
	*lease.Coordinator
	Engine *rotation.Engine
	Events EventReader
}

var _ Backend = (*Local)(nil)

func (l *Local) Rotate(ctx context.Context, eventID, holderID string) (rotation.Token, bool, error) {
	return l.Engine.Rotate(ctx, eventID, holderID)
}

// ErrEventNotFound is returned by Observe for unknown events.
var ErrEventNotFound = errors.New("event not found")

func (l *Local) Observe(ctx context.Context, eventID string) (Snapshot, error) {
	e, err := l.Events.GetEvent(ctx, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return Snapshot{}, ErrEventNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	return SnapshotOf(e), nil
}
