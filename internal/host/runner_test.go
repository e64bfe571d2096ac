package host

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"attendly/internal/lease"
	"attendly/internal/metrics"
	"attendly/internal/rotation"
	"attendly/internal/store"
	"attendly/internal/testutil"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func newLocal(t *testing.T, s *store.Gorm, clk clock.Clock) *Local {
	log := zaptest.NewLogger(t)
	var m *metrics.Metrics
	return &Local{
		Coordinator: lease.NewCoordinator(s, clk, 20*time.Second, log, m),
		Engine:      rotation.NewEngine(s, clk, 6*time.Second, log, m),
		Events:      s,
	}
}

// ==================== Scenario A: steady host ====================

func TestRunner_HostRetainsLeaseAndRotates(t *testing.T) {
	s := testutil.NewStore(t)
	clk := testutil.NewClock()
	ev := testutil.SeedEvent(t, s, testutil.Rotating(15))
	ctx := context.Background()

	r := NewRunner(newLocal(t, s, clk), clk, Config{EventID: ev.ID, HolderID: "tab-a", Heartbeat: 10 * time.Second}, zaptest.NewLogger(t))
	require.Equal(t, RoleHost, r.Heartbeat(ctx))

	tokens := map[string]struct{}{}
	start := clk.Now()
	for elapsed := time.Duration(0); elapsed <= 60*time.Second; elapsed += 5 * time.Second {
		clk.Set(start.Add(elapsed))
		if elapsed%(10*time.Second) == 0 {
			require.Equal(t, RoleHost, r.Heartbeat(ctx), "heartbeat at %s", elapsed)
		}
		if elapsed%(15*time.Second) == 0 {
			tok, ok := r.RotateOnce(ctx)
			require.True(t, ok, "rotation at %s", elapsed)
			assert.GreaterOrEqual(t, tok.ExpiresAt.Sub(clk.Now()), 15*time.Second)
			tokens[tok.Value] = struct{}{}

			snap, err := r.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, tok.Value, snap.Token)
			assert.Equal(t, "tab-a", snap.HostID)
		}
	}
	assert.GreaterOrEqual(t, len(tokens), 3)
	assert.True(t, r.IsHost())
}

// ==================== Scenario C: racing claimants ====================

func TestRunner_RaceForExpiredLease(t *testing.T) {
	s := testutil.NewStore(t)
	clk := testutil.NewClock()
	ev := testutil.SeedEvent(t, s, testutil.Rotating(15))
	ctx := context.Background()

	// A holder that went away: its lease is already in the past.
	ok, err := s.ClaimLease(ctx, ev.ID, "gone", clk.Now().Add(-time.Minute), clk.Now().Add(-time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	backend := newLocal(t, s, clk)
	a := NewRunner(backend, clk, Config{EventID: ev.ID, HolderID: "tab-a"}, zaptest.NewLogger(t))
	b := NewRunner(backend, clk, Config{EventID: ev.ID, HolderID: "tab-b"}, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	roles := make([]Role, 2)
	for i, r := range []*Runner{a, b} {
		wg.Add(1)
		go func(i int, r *Runner) {
			defer wg.Done()
			roles[i] = r.Heartbeat(ctx)
		}(i, r)
	}
	wg.Wait()

	hosts := 0
	for _, role := range roles {
		if role == RoleHost {
			hosts++
		} else {
			assert.Equal(t, RoleViewer, role)
		}
	}
	require.Equal(t, 1, hosts)

	winner, loser := a, b
	if b.IsHost() {
		winner, loser = b, a
	}
	l, err := backend.Renew(ctx, ev.ID, loser.cfg.HolderID)
	require.NoError(t, err)
	assert.False(t, l.Held)
	_, rotated := loser.RotateOnce(ctx)
	assert.False(t, rotated)
	_, rotated = winner.RotateOnce(ctx)
	assert.True(t, rotated)
}

func TestRunner_TakeoverAfterHolderStopsRenewing(t *testing.T) {
	s := testutil.NewStore(t)
	clk := testutil.NewClock()
	ev := testutil.SeedEvent(t, s, testutil.Rotating(10))
	ctx := context.Background()
	backend := newLocal(t, s, clk)

	a := NewRunner(backend, clk, Config{EventID: ev.ID, HolderID: "tab-a"}, zaptest.NewLogger(t))
	b := NewRunner(backend, clk, Config{EventID: ev.ID, HolderID: "tab-b"}, zaptest.NewLogger(t))

	require.Equal(t, RoleHost, a.Heartbeat(ctx))
	require.Equal(t, RoleViewer, b.Heartbeat(ctx))

	// a is backgrounded; b keeps trying on its heartbeat.
	clk.Add(10 * time.Second)
	require.Equal(t, RoleViewer, b.Heartbeat(ctx))
	clk.Add(10*time.Second + time.Millisecond)
	require.Equal(t, RoleHost, b.Heartbeat(ctx))

	// a wakes up: renewal fails and it stops rotating.
	assert.Equal(t, RoleViewer, a.Heartbeat(ctx))
	_, ok := a.RotateOnce(ctx)
	assert.False(t, ok)
	_, ok = b.RotateOnce(ctx)
	assert.True(t, ok)
}

func TestRunner_StoppedEventDemotesHost(t *testing.T) {
	s := testutil.NewStore(t)
	clk := testutil.NewClock()
	ev := testutil.SeedEvent(t, s, testutil.Rotating(10))
	ctx := context.Background()

	r := NewRunner(newLocal(t, s, clk), clk, Config{EventID: ev.ID, HolderID: "tab-a"}, zaptest.NewLogger(t))
	require.Equal(t, RoleHost, r.Heartbeat(ctx))
	require.NoError(t, s.StopEvent(ctx, ev.ID))

	_, ok := r.RotateOnce(ctx)
	assert.False(t, ok)
	assert.Equal(t, RoleViewer, r.State().Role)

	snap, err := r.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Active)
	assert.Empty(t, snap.Token)
	assert.Empty(t, snap.HostID)
}

// ==================== Run loop ====================

type fakeBackend struct {
	clock     clock.Clock
	mu        sync.Mutex
	holder    string
	rotations atomic.Int32
	released  chan bool
}

func (f *fakeBackend) Claim(_ context.Context, _, holderID string) (lease.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holder != "" && f.holder != holderID {
		return lease.Lease{}, nil
	}
	f.holder = holderID
	return lease.Lease{Held: true, ExpiresAt: f.clock.Now().Add(20 * time.Second)}, nil
}

func (f *fakeBackend) Renew(ctx context.Context, eventID, holderID string) (lease.Lease, error) {
	return f.Claim(ctx, eventID, holderID)
}

func (f *fakeBackend) Release(_ context.Context, _, holderID string, stop bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ok := f.holder == holderID
	f.holder = ""
	f.released <- stop
	return ok, nil
}

func (f *fakeBackend) Rotate(_ context.Context, _, _ string) (rotation.Token, bool, error) {
	n := f.rotations.Add(1)
	return rotation.Token{Value: string(rune('a' + n)), ExpiresAt: f.clock.Now().Add(8 * time.Second)}, true, nil
}

func (f *fakeBackend) Observe(context.Context, string) (Snapshot, error) {
	return Snapshot{Active: true, RotationEnabled: true, RotationIntervalSeconds: 2}, nil
}

func TestRunner_RunRotatesAndReleasesOnExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := clock.NewMock()
	fb := &fakeBackend{clock: clk, released: make(chan bool, 1)}
	r := NewRunner(fb, clk, Config{EventID: "ev", HolderID: "cli-1", StopEventOnExit: true}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, r.IsHost, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		return fb.rotations.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	<-r.Released()
	assert.True(t, <-fb.released)
	assert.Equal(t, RoleReleased, r.State().Role)
	assert.Equal(t, RoleReleased, r.Heartbeat(context.Background()))
}

func TestRunner_ViewerExitSkipsRelease(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := clock.NewMock()
	fb := &fakeBackend{clock: clk, holder: "someone-else", released: make(chan bool, 1)}
	r := NewRunner(fb, clk, Config{EventID: "ev", HolderID: "cli-2"}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.State().Role == RoleViewer }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	<-r.Released()
	assert.Empty(t, fb.released)
	assert.Zero(t, fb.rotations.Load())
}
