// Package lease elects the single host process allowed to rotate tokens for an event.
//
// The lease lives in the event's host columns. Claims and renewals are conditional updates,
// so under contention the store admits exactly one claimant per empty or expired lease.
// Losing a lease is an ordinary outcome, reported as Held=false, never as an error.
package lease

import (
	"context"
	"time"

	"attendly/internal/metrics"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	DefaultDuration  = 20 * time.Second
	DefaultHeartbeat = DefaultDuration / 2
)

// Store is the slice of persistence the coordinator needs.
type Store interface {
	ClaimLease(ctx context.Context, eventID, holderID string, now, expiresAt time.Time) (bool, error)
	RenewLease(ctx context.Context, eventID, holderID string, expiresAt time.Time) (bool, error)
	ReleaseLease(ctx context.Context, eventID, holderID string, stop bool) (bool, error)
}

// Lease is the result of a claim or renewal.
type Lease struct {
	Held      bool
	ExpiresAt time.Time
}

type Coordinator struct {
	store    Store
	clock    clock.Clock
	duration time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewCoordinator(s Store, clk clock.Clock, duration time.Duration, log *zap.Logger, m *metrics.Metrics) *Coordinator {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Coordinator{store: s, clock: clk, duration: duration, log: log, metrics: m}
}

// Duration is the lease length granted by Claim and Renew.
func (c *Coordinator) Duration() time.Duration {
	return c.duration
}

// Claim takes the lease if it is empty, expired, or already held by holderID.
func (c *Coordinator) Claim(ctx context.Context, eventID, holderID string) (Lease, error) {
	now := c.clock.Now()
	expires := now.Add(c.duration)
	ok, err := c.store.ClaimLease(ctx, eventID, holderID, now, expires)
	if err != nil {
		return Lease{}, err
	}
	c.metrics.ObserveLease("claim", ok)
	if !ok {
		return Lease{}, nil
	}
	c.log.Debug("lease claimed", zap.String("event", eventID), zap.String("holder", holderID))
	return Lease{Held: true, ExpiresAt: expires.UTC()}, nil
}

// Renew extends the lease if holderID still owns it.
func (c *Coordinator) Renew(ctx context.Context, eventID, holderID string) (Lease, error) {
	expires := c.clock.Now().Add(c.duration)
	ok, err := c.store.RenewLease(ctx, eventID, holderID, expires)
	if err != nil {
		return Lease{}, err
	}
	c.metrics.ObserveLease("renew", ok)
	if !ok {
		c.log.Debug("lease lost", zap.String("event", eventID), zap.String("holder", holderID))
		return Lease{}, nil
	}
	return Lease{Held: true, ExpiresAt: expires.UTC()}, nil
}

// Release gives the lease up; stop also deactivates the event. Releasing a lease held by
// someone else is a no-op.
func (c *Coordinator) Release(ctx context.Context, eventID, holderID string, stop bool) (bool, error) {
	ok, err := c.store.ReleaseLease(ctx, eventID, holderID, stop)
	if err != nil {
		return false, err
	}
	c.metrics.ObserveLease("release", ok)
	return ok, nil
}
