package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/lyricwatch/lyricwatch/internal/store"
)

// staleHeartbeatMultiplier is applied to the heartbeat interval to derive
// the staleness cutoff. Two missed beats means the worker is gone, not
// merely slow.
const staleHeartbeatMultiplier = 2

// RecoveryMonitor periodically re-admits orphaned jobs: in-progress rows
// whose worker stopped heartbeating, typically because its process died.
// Requeued jobs keep their cursors, so a crashed job resumes with at most
// one unit re-executed.
type RecoveryMonitor struct {
	jobs       store.JobStore
	interval   time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewRecoveryMonitor creates a monitor that sweeps every interval and
// treats heartbeats older than twice the heartbeat cadence as stale.
func NewRecoveryMonitor(jobs store.JobStore, interval, heartbeatInterval time.Duration, logger *slog.Logger) *RecoveryMonitor {
	return &RecoveryMonitor{
		jobs:       jobs,
		interval:   interval,
		staleAfter: staleHeartbeatMultiplier * heartbeatInterval,
		logger:     logger.With("component", "recovery_monitor"),
	}
}

// Run sweeps for orphans until the context is cancelled.
func (m *RecoveryMonitor) Run(ctx context.Context) {
	m.logger.Info("recovery monitor started", "interval", m.interval, "stale_after", m.staleAfter)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("recovery monitor stopped")
			return
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.logger.Error("orphan sweep failed", "error", err)
			}
		}
	}
}

// Sweep requeues all currently orphaned jobs.
func (m *RecoveryMonitor) Sweep(ctx context.Context) error {
	n, err := m.jobs.RequeueOrphans(ctx, m.staleAfter)
	if err != nil {
		return err
	}
	if n > 0 {
		m.logger.Warn("requeued orphaned jobs", "count", n)
	}
	return nil
}
