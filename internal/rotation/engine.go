// Package rotation mints the rotating QR tokens and publishes them on behalf of the lease holder.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendly/internal/metrics"
	"attendly/internal/models"
	"attendly/internal/store"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Store is the slice of persistence the engine needs.
type Store interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	WriteToken(ctx context.Context, eventID, holderID string, now time.Time, token string, expiresAt time.Time) (bool, error)
}

// Token is a published rotating token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

type Engine struct {
	store   Store
	clock   clock.Clock
	grace   time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewEngine(s Store, clk clock.Clock, grace time.Duration, log *zap.Logger, m *metrics.Metrics) *Engine {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Engine{store: s, clock: clk, grace: grace, log: log, metrics: m}
}

// Rotate mints a fresh token for the event and writes it, conditioned on holderID still
// holding the host lease. ok=false means the write did not stick (lease lost, event
// stopped or not rotating); the caller re-observes lease state on its next cycle.
func (e *Engine) Rotate(ctx context.Context, eventID, holderID string) (Token, bool, error) {
	ev, err := e.store.GetEvent(ctx, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("rotate: %w", err)
	}
	if !ev.Active || !ev.RotationEnabled {
		return Token{}, false, nil
	}

	now := e.clock.Now().UTC()
	value, err := NewToken(now)
	if err != nil {
		return Token{}, false, err
	}
	tok := Token{Value: value, ExpiresAt: ExpiresAt(now, ev.RotationIntervalSeconds, e.grace)}

	ok, err := e.store.WriteToken(ctx, eventID, holderID, now, tok.Value, tok.ExpiresAt)
	if err != nil {
		return Token{}, false, fmt.Errorf("rotate: %w", err)
	}
	e.metrics.ObserveRotation(ok)
	if !ok {
		e.log.Debug("rotation write lost", zap.String("event", eventID), zap.String("holder", holderID))
		return Token{}, false, nil
	}
	return tok, true, nil
}

// Grace returns the configured grace period.
func (e *Engine) Grace() time.Duration {
	return e.grace
}
