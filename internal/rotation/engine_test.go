package rotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"attendly/internal/metrics"
	"attendly/internal/models"
	"attendly/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	event    *models.Event
	getErr   error
	accept   bool
	writeErr error
	written  []string
}

func (f *fakeStore) GetEvent(context.Context, string) (*models.Event, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.event, nil
}

func (f *fakeStore) WriteToken(_ context.Context, _, _ string, _ time.Time, token string, _ time.Time) (bool, error) {
	if f.writeErr != nil {
		return false, f.writeErr
	}
	f.written = append(f.written, token)
	return f.accept, nil
}

func newEngine(t *testing.T, s Store) *Engine {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	clk := clock.NewMock()
	clk.Set(epoch)
	return NewEngine(s, clk, 0, zap.NewNop(), m)
}

func TestEngineRotate(t *testing.T) {
	rotating := &models.Event{ID: "e1", Active: true, RotationEnabled: true, RotationIntervalSeconds: 10}

	t.Run("published", func(t *testing.T) {
		s := &fakeStore{event: rotating, accept: true}
		e := newEngine(t, s)
		assert.Equal(t, DefaultGrace, e.Grace())

		tok, ok, err := e.Rotate(context.Background(), "e1", "h1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, epoch.Add(10*time.Second+DefaultGrace), tok.ExpiresAt)
		assert.Equal(t, []string{tok.Value}, s.written)
		issued, ok := IssuedAt(tok.Value)
		require.True(t, ok)
		assert.Equal(t, epoch, issued)
	})

	t.Run("write lost", func(t *testing.T) {
		s := &fakeStore{event: rotating, accept: false}
		tok, ok, err := newEngine(t, s).Rotate(context.Background(), "e1", "h2")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, tok.Value)
		assert.Len(t, s.written, 1)
	})

	t.Run("not rotating", func(t *testing.T) {
		for _, ev := range []*models.Event{
			{ID: "e1", Active: false, RotationEnabled: true},
			{ID: "e1", Active: true, RotationEnabled: false},
		} {
			s := &fakeStore{event: ev, accept: true}
			_, ok, err := newEngine(t, s).Rotate(context.Background(), "e1", "h1")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, s.written, "no write attempted")
		}
	})

	t.Run("missing event", func(t *testing.T) {
		_, ok, err := newEngine(t, &fakeStore{getErr: store.ErrNotFound}).Rotate(context.Background(), "e1", "h1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("disk full")
		_, ok, err := newEngine(t, &fakeStore{event: rotating, writeErr: boom}).Rotate(context.Background(), "e1", "h1")
		assert.ErrorIs(t, err, boom)
		assert.False(t, ok)
	})
}
