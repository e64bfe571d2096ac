// Package attendance turns scans into single-use sessions and sessions into records.
//
//	Requested -> Authorized -> (countdown) -> Submitted | Expired | Rejected
//
// A session's deadline is fixed at creation and independent of the token that opened it,
// so an attendee may keep typing while the displayed code rotates.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"attendly/internal/metrics"
	"attendly/internal/models"
	"attendly/internal/rotation"
	"attendly/internal/store"
	"attendly/internal/util"
	"attendly/internal/verify"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultSessionWindow = 2 * time.Minute
	maxClientIDLen       = 64
)

type Options struct {
	SessionWindow time.Duration
	Grace         time.Duration
}

type Manager struct {
	store   *store.Gorm
	hasher  *util.ClientIDHasher
	clock   clock.Clock
	window  time.Duration
	grace   time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewManager(s *store.Gorm, h *util.ClientIDHasher, clk clock.Clock, opts Options, log *zap.Logger, m *metrics.Metrics) *Manager {
	if opts.SessionWindow <= 0 {
		opts.SessionWindow = DefaultSessionWindow
	}
	if opts.Grace <= 0 {
		opts.Grace = rotation.DefaultGrace
	}
	return &Manager{store: s, hasher: h, clock: clk, window: opts.SessionWindow, grace: opts.Grace, log: log, metrics: m}
}

// Window is the fixed lifetime of a session.
func (m *Manager) Window() time.Duration {
	return m.window
}

// EventInfo is the part of an event the attendee form needs.
type EventInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	GeofenceEnabled bool   `json:"geofence_enabled"`
	IdentityCheck   bool   `json:"identity_check_enabled"`
}

type StartRequest struct {
	EventID  string
	Token    string
	ClientID string
}

type StartResult struct {
	Authorized       bool
	Reason           Reason
	Event            *EventInfo
	SessionID        string
	SessionExpiresAt time.Time
	ClientID         string
}

func rejectStart(r Reason) StartResult {
	return StartResult{Reason: r}
}

// Start validates a scan and opens a session. A missing client id is replaced by a fresh
// one, returned in the result for the caller to persist on the device.
func (m *Manager) Start(ctx context.Context, req StartRequest) (res StartResult, err error) {
	defer func() { m.metrics.ObserveSessionStart(outcome(res.Authorized, res.Reason)) }()

	req.EventID = strings.TrimSpace(req.EventID)
	req.Token = strings.TrimSpace(req.Token)
	if req.EventID == "" || req.Token == "" || len(req.ClientID) > maxClientIDLen {
		return rejectStart(ReasonInvalidRequest), nil
	}

	now := m.clock.Now().UTC()
	// A rotating token older than the longest possible interval is dead without a lookup.
	if req.Token != models.StaticToken && rotation.Stale(req.Token, now, rotation.MaxAge(rotation.MaxIntervalSeconds, m.grace)) {
		return rejectStart(ReasonExpired), nil
	}

	ev, err := m.store.GetEvent(ctx, req.EventID)
	if errors.Is(err, store.ErrNotFound) {
		return rejectStart(ReasonNotFound), nil
	}
	if err != nil {
		return rejectStart(ReasonServerError), fmt.Errorf("start session: %w", err)
	}
	if !ev.Active {
		return rejectStart(ReasonInactive), nil
	}
	if !tokenValid(ev, req.Token, now) {
		return rejectStart(ReasonExpired), nil
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	} else if ev.IdentityCheckEnabled && ev.IdentityStrict {
		prior, err := m.store.FindRecordByClient(ctx, ev.ID, m.hasher.Hash(clientID))
		if err != nil {
			return rejectStart(ReasonServerError), fmt.Errorf("start session: %w", err)
		}
		if prior != nil {
			return StartResult{Reason: ReasonAlreadySubmitted, ClientID: clientID}, nil
		}
	}

	sess := &models.AttendanceSession{
		ID:            uuid.NewString(),
		EventID:       ev.ID,
		TokenSnapshot: req.Token,
		ClientID:      clientID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(m.window),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return rejectStart(ReasonServerError), fmt.Errorf("start session: %w", err)
	}

	return StartResult{
		Authorized: true,
		Event: &EventInfo{
			ID:              ev.ID,
			Name:            ev.Name,
			GeofenceEnabled: ev.GeofenceEnabled,
			IdentityCheck:   ev.IdentityCheckEnabled,
		},
		SessionID:        sess.ID,
		SessionExpiresAt: sess.ExpiresAt,
		ClientID:         clientID,
	}, nil
}

// tokenValid accepts the live rotating token before its expiry, or the static sentinel
// when rotation is off.
func tokenValid(ev *models.Event, token string, now time.Time) bool {
	if !ev.RotationEnabled {
		return token == models.StaticToken
	}
	if ev.CurrentToken == nil || ev.TokenExpiresAt == nil {
		return false
	}
	return token == *ev.CurrentToken && now.Before(*ev.TokenExpiresAt)
}

type SubmitRequest struct {
	SessionID      string
	Token          string
	ClientID       string
	AttendeeName   string
	AttendeeEmail  string
	Location       *verify.Point
	LocationDenied bool
}

type SubmitResult struct {
	Success          bool
	Reason           Reason
	Status           models.RecordStatus
	SuspiciousReason string
	RecordID         uint
}

func rejectSubmit(r Reason) SubmitResult {
	return SubmitResult{Reason: r}
}

var errRejected = errors.New("submission rejected")

// Submit consumes the session and records the attendance. The consume, the identity
// lookup and the insert share one transaction, so a rejection leaves the session unused.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (res SubmitResult, err error) {
	defer func() { m.metrics.ObserveSubmission(outcome(res.Success, res.Reason)) }()

	name := strings.TrimSpace(req.AttendeeName)
	email := util.NormalizeEmail(req.AttendeeEmail)
	if req.SessionID == "" || util.ValidateAttendeeName(name) != nil || util.ValidateEmail(email) != nil {
		return rejectSubmit(ReasonInvalidRequest), nil
	}
	location := req.Location
	if req.LocationDenied {
		location = nil
	}
	if location != nil && util.ValidateCoordinates(location.Lat, location.Lng) != nil {
		return rejectSubmit(ReasonInvalidRequest), nil
	}

	sess, err := m.store.GetSession(ctx, req.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return rejectSubmit(ReasonSessionInvalid), nil
	}
	if err != nil {
		return rejectSubmit(ReasonServerError), fmt.Errorf("submit: %w", err)
	}
	if req.ClientID != "" && req.ClientID != sess.ClientID {
		return rejectSubmit(ReasonSessionInvalid), nil
	}
	if req.Token != "" && req.Token != sess.TokenSnapshot {
		return rejectSubmit(ReasonSessionInvalid), nil
	}

	now := m.clock.Now().UTC()
	if !now.Before(sess.ExpiresAt) {
		return rejectSubmit(ReasonSessionExpired), nil
	}
	if sess.Consumed() {
		return rejectSubmit(ReasonSessionUsed), nil
	}

	ev, err := m.store.GetEvent(ctx, sess.EventID)
	if errors.Is(err, store.ErrNotFound) {
		return rejectSubmit(ReasonSessionInvalid), nil
	}
	if err != nil {
		return rejectSubmit(ReasonServerError), fmt.Errorf("submit: %w", err)
	}
	if !ev.Active {
		return rejectSubmit(ReasonInactive), nil
	}

	hash := m.hasher.Hash(sess.ClientID)
	rec := &models.AttendanceRecord{
		EventID:          ev.ID,
		AttendeeName:     name,
		AttendeeEmail:    email,
		ClientID:         sess.ClientID,
		ClientIDHash:     hash,
		LocationProvided: location != nil,
	}
	if location != nil {
		rec.LocationLat = &location.Lat
		rec.LocationLng = &location.Lng
	}
	if ev.IdentityCheckEnabled && ev.IdentityStrict {
		rec.StrictKey = &hash
	}

	reject := ReasonSessionUsed
	err = m.store.WithinTx(ctx, func(tx *store.Gorm) error {
		ok, err := tx.ConsumeSession(ctx, sess.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errRejected
		}

		var prior *models.AttendanceRecord
		if ev.IdentityCheckEnabled {
			if prior, err = tx.FindRecordByClient(ctx, ev.ID, hash); err != nil {
				return err
			}
		}
		verdict := verify.Evaluate(policyOf(ev), verify.Submission{PriorRecord: prior != nil, Location: location})
		switch verdict.Outcome {
		case verify.Rejected:
			reject = ReasonAlreadySubmitted
			return errRejected
		case verify.Suspicious:
			rec.Status = models.StatusSuspicious
			reason := verdict.Reason()
			rec.SuspiciousReason = &reason
		default:
			rec.Status = models.StatusVerified
		}

		if err := tx.CreateRecord(ctx, rec); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				reject = ReasonAlreadySubmitted
				return errRejected
			}
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, errRejected):
		m.log.Debug("submission rejected", zap.String("session", sess.ID), zap.String("reason", string(reject)))
		return rejectSubmit(reject), nil
	case err != nil:
		m.log.Error("submission failed", zap.String("session", sess.ID), zap.Error(err))
		return rejectSubmit(ReasonServerError), fmt.Errorf("submit: %w", err)
	}

	res = SubmitResult{Success: true, Status: rec.Status, RecordID: rec.ID}
	if rec.SuspiciousReason != nil {
		res.SuspiciousReason = *rec.SuspiciousReason
	}
	return res, nil
}

func policyOf(ev *models.Event) verify.Policy {
	return verify.Policy{
		IdentityCheck:  ev.IdentityCheckEnabled,
		IdentityStrict: ev.IdentityStrict,
		Geofence:       ev.GeofenceEnabled,
		CenterLat:      ev.GeofenceLat,
		CenterLng:      ev.GeofenceLng,
		RadiusMeters:   ev.GeofenceRadiusMeters,
	}
}
