package session

import (
	"context"
	"time"

	"github.com/Skotchmaster/sessionauth/internal/logging"
)

// Reap removes sessions whose refresh lifetime has passed.
func (m *Manager) Reap(ctx context.Context) (int64, error) {
	return m.Store.DeleteExpired(ctx, m.now().Add(-m.RefreshTTL))
}

// RunReaper calls Reap every interval until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, every time.Duration) {
	l := logging.FromContext(ctx).With("svc", "session.reaper")
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Info("reaper_stopped")
			return
		case <-t.C:
			n, err := m.Reap(ctx)
			if err != nil {
				l.Error("reap_failed", "error", err)
				continue
			}
			if n > 0 {
				l.Info("reaped_sessions", "count", n)
			}
		}
	}
}
