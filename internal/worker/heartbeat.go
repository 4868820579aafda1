package worker

import (
	"context"

	"github.com/google/uuid"
)

// runHeartbeat stamps heartbeat_at on the held job at the configured
// cadence until the context is cancelled. The worker cancels it when the
// job leaves its hands; a process crash simply stops the stamps, and the
// recovery monitor treats the resulting staleness as the crash signal.
//
// A hung-but-alive worker keeps heartbeating, so staleness cannot catch
// that case; only the wall-clock budget bounds it.
func (w *Worker) runHeartbeat(ctx context.Context, jobID uuid.UUID) {
	for {
		if !w.sleep(ctx, w.cfg.HeartbeatInterval) {
			return
		}
		if err := w.jobs.UpdateHeartbeat(ctx, jobID); err != nil {
			// Transient store trouble; the next tick retries. Worst case
			// the job is requeued as an orphan and resumed from its cursor.
			w.logger.Warn("heartbeat update failed", "job_id", jobID, "error", err)
		}
	}
}
