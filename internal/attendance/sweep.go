package attendance

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweep deletes sessions whose deadline passed more than one window ago. Expired sessions
// are already dead to Submit; this only bounds table growth.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteSessionsExpiredBefore(ctx, m.clock.Now().Add(-m.window))
	if err != nil {
		return 0, err
	}
	m.metrics.ObserveSweep(n)
	if n > 0 {
		m.log.Info("swept expired sessions", zap.Int64("count", n))
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	t := m.clock.Ticker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := m.Sweep(ctx); err != nil && ctx.Err() == nil {
				m.log.Warn("session sweep failed", zap.Error(err))
			}
		}
	}
}
