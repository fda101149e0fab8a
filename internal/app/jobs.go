package app

import (
	"context"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/config"
)

// updateSessionMetrics refreshes the active-session gauge and, for the
// sqlite backend, deletes sessions idle longer than the session TTL.
// Redis expires its own keys.
func (a *Application) updateSessionMetrics(ctx context.Context) {
	a.logger.Debug("Session metrics job started")
	defer a.logger.Debug("Session metrics job stopped")

	ticker := time.NewTicker(config.SessionMetricsInterval)
	defer ticker.Stop()

	lastSweep := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(lastSweep) >= config.SessionSweepInterval {
				a.sweepIdleSessions(ctx)
				lastSweep = time.Now()
			}
			a.recordSessionCount(ctx)
		}
	}
}

func (a *Application) recordSessionCount(ctx context.Context) {
	n, err := a.sessions.Count(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count sessions")
		return
	}
	a.metrics.SetActiveSessions(n)
}

func (a *Application) sweepIdleSessions(ctx context.Context) {
	if a.cfg.SessionBackend != config.SessionBackendSQLite {
		return
	}
	deleted, err := a.db.DeleteIdleSessions(ctx, time.Now().Add(-a.cfg.SessionTTL))
	if err != nil {
		a.logger.WithError(err).Error("Failed to delete idle sessions")
		return
	}
	if deleted > 0 {
		a.logger.WithField("deleted", deleted).Info("Idle sessions deleted")
	}
}
