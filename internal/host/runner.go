// Package host runs the per-process side of the host lease protocol:
//
//	Unclaimed -> Claiming -> Host -> (renew loop) -> Released | Viewer
//
// Every heartbeat a Host renews and every other role tries to claim, so a lease abandoned
// by a crashed or backgrounded holder is taken over within one lease duration. Only a Host
// rotates tokens; all roles poll the event record at the rotation cadence.
package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"attendly/internal/lease"
	"attendly/internal/rotation"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

type Role string

const (
	RoleUnclaimed Role = "unclaimed"
	RoleClaiming  Role = "claiming"
	RoleHost      Role = "host"
	RoleViewer    Role = "viewer"
	RoleReleased  Role = "released"
)

const releaseTimeout = 3 * time.Second

// State is the runner's view of itself and of the event.
type State struct {
	Role           Role
	LeaseExpiresAt time.Time
	Snapshot       Snapshot
}

type Config struct {
	EventID   string
	HolderID  string
	Heartbeat time.Duration
	// StopEventOnExit deactivates the event as part of the best-effort release on shutdown.
	StopEventOnExit bool
	// OnChange, when set, is called after every role or snapshot change.
	OnChange func(State)
}

type Runner struct {
	backend Backend
	clock   clock.Clock
	cfg     Config
	log     *zap.Logger

	mu    sync.Mutex
	state State

	released chan struct{}
}

func NewRunner(b Backend, clk clock.Clock, cfg Config, log *zap.Logger) *Runner {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = lease.DefaultHeartbeat
	}
	return &Runner{
		backend:  b,
		clock:    clk,
		cfg:      cfg,
		log:      log.With(zap.String("event", cfg.EventID), zap.String("holder", cfg.HolderID)),
		state:    State{Role: RoleUnclaimed},
		released: make(chan struct{}),
	}
}

// State returns a copy of the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsHost reports whether this process currently holds the lease.
func (r *Runner) IsHost() bool {
	return r.State().Role == RoleHost
}

func (r *Runner) update(fn func(*State)) {
	r.mu.Lock()
	before := r.state
	fn(&r.state)
	after := r.state
	r.mu.Unlock()

	if before.Role != after.Role {
		r.log.Info("host role changed", zap.String("from", string(before.Role)), zap.String("to", string(after.Role)))
	}
	if r.cfg.OnChange != nil {
		r.cfg.OnChange(after)
	}
}

// Heartbeat renews the lease when Host and tries to claim it otherwise. A failed renewal
// demotes to Viewer at once. Backend errors keep the current role unless the local view
// of the lease has already expired.
func (r *Runner) Heartbeat(ctx context.Context) Role {
	cur := r.State()
	if cur.Role == RoleReleased {
		return RoleReleased
	}

	var (
		l   lease.Lease
		err error
	)
	if cur.Role == RoleHost {
		l, err = r.backend.Renew(ctx, r.cfg.EventID, r.cfg.HolderID)
	} else {
		r.update(func(s *State) {
			if s.Role == RoleUnclaimed {
				s.Role = RoleClaiming
			}
		})
		l, err = r.backend.Claim(ctx, r.cfg.EventID, r.cfg.HolderID)
	}

	if err != nil {
		r.log.Warn("heartbeat failed", zap.Error(err))
		r.update(func(s *State) {
			switch {
			case s.Role == RoleHost && !r.clock.Now().Before(s.LeaseExpiresAt):
				s.Role = RoleViewer
			case s.Role == RoleClaiming:
				s.Role = RoleViewer
			}
		})
		return r.State().Role
	}

	r.update(func(s *State) {
		if s.Role == RoleReleased {
			return
		}
		if l.Held {
			s.Role = RoleHost
			s.LeaseExpiresAt = l.ExpiresAt
		} else {
			s.Role = RoleViewer
			s.LeaseExpiresAt = time.Time{}
		}
	})
	return r.State().Role
}

// RotateOnce publishes a new token if this process is Host. A lost write demotes to Viewer.
func (r *Runner) RotateOnce(ctx context.Context) (rotation.Token, bool) {
	if r.State().Role != RoleHost {
		return rotation.Token{}, false
	}
	tok, ok, err := r.backend.Rotate(ctx, r.cfg.EventID, r.cfg.HolderID)
	if err != nil {
		r.log.Warn("rotation failed", zap.Error(err))
		return rotation.Token{}, false
	}
	if !ok {
		r.update(func(s *State) {
			if s.Role == RoleHost {
				s.Role = RoleViewer
				s.LeaseExpiresAt = time.Time{}
			}
		})
		return rotation.Token{}, false
	}
	r.update(func(s *State) {
		s.Snapshot.Token = tok.Value
		expires := tok.ExpiresAt
		s.Snapshot.TokenExpiresAt = &expires
	})
	return tok, true
}

// Poll refreshes the observed snapshot.
func (r *Runner) Poll(ctx context.Context) (Snapshot, error) {
	snap, err := r.backend.Observe(ctx, r.cfg.EventID)
	if err != nil {
		return Snapshot{}, err
	}
	r.update(func(s *State) { s.Snapshot = snap })
	return snap, nil
}

// Run drives heartbeats, rotation and polling on fixed timers until ctx is done, then
// releases the lease in the background if this process is Host. Released() closes when
// that release attempt has finished.
func (r *Runner) Run(ctx context.Context) error {
	defer r.shutdown()

	if _, err := r.Poll(ctx); err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return err
		}
		r.log.Warn("initial poll failed", zap.Error(err))
	}
	if r.Heartbeat(ctx) == RoleHost {
		r.rotateIfEnabled(ctx)
	}

	heartbeat := r.clock.Ticker(r.cfg.Heartbeat)
	defer heartbeat.Stop()

	cadence := r.cadence()
	tick := r.clock.Ticker(cadence)
	defer func() { tick.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-heartbeat.C:
			wasHost := r.IsHost()
			if r.Heartbeat(ctx) == RoleHost && !wasHost {
				r.rotateIfEnabled(ctx)
			}
		case <-tick.C:
			r.rotateIfEnabled(ctx)
			if _, err := r.Poll(ctx); err != nil {
				r.log.Warn("poll failed", zap.Error(err))
			}
			if next := r.cadence(); next != cadence {
				tick.Stop()
				cadence = next
				tick = r.clock.Ticker(cadence)
			}
		}
	}
}

func (r *Runner) rotateIfEnabled(ctx context.Context) {
	snap := r.State().Snapshot
	if snap.Active && snap.RotationEnabled {
		r.RotateOnce(ctx)
	}
}

func (r *Runner) cadence() time.Duration {
	return time.Duration(rotation.ClampInterval(r.State().Snapshot.RotationIntervalSeconds)) * time.Second
}

// shutdown fires the advisory release. Correctness never depends on it: the lease
// expires on its own.
func (r *Runner) shutdown() {
	wasHost := r.IsHost()
	r.update(func(s *State) { s.Role = RoleReleased })
	if !wasHost {
		close(r.released)
		return
	}
	go func() {
		defer close(r.released)
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if _, err := r.backend.Release(ctx, r.cfg.EventID, r.cfg.HolderID, r.cfg.StopEventOnExit); err != nil {
			r.log.Debug("best-effort release failed", zap.Error(err))
		}
	}()
}

// Released is closed once the shutdown release attempt has completed.
func (r *Runner) Released() <-chan struct{} {
	return r.released
}
