package host

import (
	"context"
	"net/http"

	"attendly/internal/lease"
	"attendly/internal/rotation"
	"attendly/pkg/client"
)

// Remote is the Backend of a host process that reaches the server over HTTP.
type Remote struct {
	Client *client.Client
}

var _ Backend = (*Remote)(nil)

func toLease(l *client.Lease) lease.Lease {
	if l == nil || !l.Held || l.ExpiresAt == nil {
		return lease.Lease{}
	}
	return lease.Lease{Held: true, ExpiresAt: *l.ExpiresAt}
}

func (r *Remote) Claim(ctx context.Context, eventID, holderID string) (lease.Lease, error) {
	l, err := r.Client.Claim(ctx, eventID, holderID)
	if err != nil {
		return lease.Lease{}, err
	}
	return toLease(l), nil
}

func (r *Remote) Renew(ctx context.Context, eventID, holderID string) (lease.Lease, error) {
	l, err := r.Client.Renew(ctx, eventID, holderID)
	if err != nil {
		return lease.Lease{}, err
	}
	return toLease(l), nil
}

func (r *Remote) Release(ctx context.Context, eventID, holderID string, stop bool) (bool, error) {
	return r.Client.Release(ctx, eventID, holderID, stop)
}

func (r *Remote) Rotate(ctx context.Context, eventID, holderID string) (rotation.Token, bool, error) {
	rot, err := r.Client.Rotate(ctx, eventID, holderID)
	if err != nil {
		return rotation.Token{}, false, err
	}
	if !rot.Rotated {
		return rotation.Token{}, false, nil
	}
	return rotation.Token{Value: rot.Token, ExpiresAt: rot.ExpiresAt}, true, nil
}

func (r *Remote) Observe(ctx context.Context, eventID string) (Snapshot, error) {
	st, err := r.Client.State(ctx, eventID)
	if client.IsStatus(err, http.StatusNotFound) {
		return Snapshot{}, ErrEventNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Active:                  st.State.Active,
		RotationEnabled:         st.State.RotationEnabled,
		RotationIntervalSeconds: st.State.RotationIntervalSeconds,
		Token:                   st.State.Token,
		TokenExpiresAt:          st.State.TokenExpiresAt,
		HostID:                  st.State.HostID,
		HostLeaseExpiresAt:      st.State.HostLeaseExpiresAt,
	}, nil
}
