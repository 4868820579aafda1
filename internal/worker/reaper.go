package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/lyricwatch/lyricwatch/internal/store"
)

// SnapshotReaper deletes progress snapshots whose grace period after the
// owning job's terminal transition has elapsed. Snapshots are ephemeral
// read-side state; the job row remains the durable record.
type SnapshotReaper struct {
	snaps    store.ProgressStore
	interval time.Duration
	logger   *slog.Logger
}

// NewSnapshotReaper creates a reaper that sweeps every interval.
func NewSnapshotReaper(snaps store.ProgressStore, interval time.Duration, logger *slog.Logger) *SnapshotReaper {
	return &SnapshotReaper{
		snaps:    snaps,
		interval: interval,
		logger:   logger.With("component", "snapshot_reaper"),
	}
}

// Run deletes expired snapshots until the context is cancelled.
func (r *SnapshotReaper) Run(ctx context.Context) {
	r.logger.Info("snapshot reaper started", "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("snapshot reaper stopped")
			return
		case <-ticker.C:
			n, err := r.snaps.DeleteExpired(ctx)
			if err != nil {
				r.logger.Error("snapshot sweep failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Debug("deleted expired snapshots", "count", n)
			}
		}
	}
}
