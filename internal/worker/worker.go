// Package worker contains the job execution loop and its supporting
// background processes: the per-job heartbeat stamper, the orphan recovery
// monitor and the progress-snapshot reaper.
//
// Workers share nothing and coordinate only through the atomic dequeue, so
// scaling out is just starting more of them. A worker crash loses no work
// beyond at most one unit: the cursor is persisted after every unit and the
// recovery monitor re-admits jobs whose heartbeats go stale.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lyricwatch/lyricwatch/internal/analysis"
	"github.com/lyricwatch/lyricwatch/internal/config"
	"github.com/lyricwatch/lyricwatch/internal/domain"
	"github.com/lyricwatch/lyricwatch/internal/events"
	"github.com/lyricwatch/lyricwatch/internal/progress"
	"github.com/lyricwatch/lyricwatch/internal/queue"
	"github.com/lyricwatch/lyricwatch/internal/store"
)

// minUnitsForFailureRatio is the number of processed units an open-ended
// sweep must reach before the failure ratio is enforced. Without a known
// total the ratio is computed over processed units, and a tiny sample would
// fail jobs on a single unlucky unit.
const minUnitsForFailureRatio = 10

// Params collects the collaborators a Worker needs.
type Params struct {
	ID        int
	Queue     *queue.Queue
	Jobs      store.JobStore
	Snapshots store.ProgressStore
	Registry  analysis.Registry
	Executor  analysis.UnitExecutor
	Emitter   events.EventEmitter
	Config    config.WorkerConfig
	Logger    *slog.Logger
}

// Worker executes jobs one at a time: dequeue, enumerate targets, process
// units from the persisted cursor, checkpoint at every unit boundary.
type Worker struct {
	id       int
	queue    *queue.Queue
	jobs     store.JobStore
	snaps    store.ProgressStore
	registry analysis.Registry
	executor analysis.UnitExecutor
	emitter  events.EventEmitter
	cfg      config.WorkerConfig
	logger   *slog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a Worker from its collaborators.
func New(p Params) *Worker {
	return &Worker{
		id:       p.ID,
		queue:    p.Queue,
		jobs:     p.Jobs,
		snaps:    p.Snapshots,
		registry: p.Registry,
		executor: p.Executor,
		emitter:  p.Emitter,
		cfg:      p.Config,
		logger:   p.Logger.With("component", "worker", "worker_id", p.ID),
		now:      time.Now,
	}
}

// Run processes jobs until the context is cancelled. An in-flight job is
// interrupted and requeued on shutdown, so another worker (or this process
// after a restart) resumes it from its cursor.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		worked, err := w.RunOnce(ctx)
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return
		}
		if err != nil {
			w.logger.Error("dequeue failed, backing off", "error", err)
		}
		if err != nil || !worked {
			if !w.sleep(ctx, w.cfg.IdlePollInterval) {
				w.logger.Info("worker stopped")
				return
			}
		}
	}
}

// RunOnce claims and fully processes one job. It reports false when the
// queue was empty.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.runJob(ctx, job)
	return true, nil
}

func (w *Worker) runJob(ctx context.Context, job *domain.Job) {
	log := w.logger.With("job_id", job.ID, "job_type", job.Type, "attempt", job.AttemptCount)

	if job.AttemptCount > w.cfg.MaxAttempts {
		log.Warn("retry budget exhausted", "max_attempts", w.cfg.MaxAttempts)
		w.finalize(ctx, job, domain.JobStatusFailed,
			fmt.Sprintf("retry budget exhausted after %d attempts", w.cfg.MaxAttempts))
		return
	}

	if job.AttemptCount == 1 {
		w.emit(ctx, events.EventJobStarted, job, "")
	}

	// The heartbeat runs for as long as this worker holds the job. If the
	// process dies the heartbeat stops with it, which is exactly the signal
	// the recovery monitor watches for.
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.runHeartbeat(hbCtx, job.ID)

	list, err := w.registry.Enumerate(ctx, job)
	if err != nil {
		if domain.IsInfrastructureError(err) {
			log.Warn("target enumeration unavailable, releasing job", "error", err)
			w.release(ctx, job, log)
			return
		}
		log.Warn("target enumeration failed", "error", err)
		w.finalize(ctx, job, domain.JobStatusFailed, err.Error())
		return
	}

	var total *int
	if !list.OpenEnded {
		n := len(list.Targets)
		if err := w.jobs.SetTotal(ctx, job.ID, n); err != nil {
			log.Error("failed to persist total", "error", err)
			w.release(ctx, job, log)
			return
		}
		total = &n
	}
	job.Total = total

	deadline := w.deadline(job)
	calc := progress.NewCalculator(w.cfg.ETAWindow)
	failed := job.FailedUnitCount

	// The snapshot exists from the moment the job is claimed, so pollers
	// see a progress row before the first unit lands.
	if err := w.snaps.UpsertSnapshot(ctx, calc.Snapshot(job.ID, job.Cursor, total, "")); err != nil {
		log.Warn("failed to write progress snapshot", "error", err)
	}

	i := job.Cursor
	for i < len(list.Targets) {
		if w.checkpoint(ctx, job, deadline, log) {
			return
		}

		target := list.Targets[i]
		start := w.now()
		_, err := w.executor.ExecuteUnit(ctx, target, i)
		if err != nil {
			switch {
			case domain.IsFatalJobError(err):
				log.Warn("unit hit fatal error", "unit", i, "error", err)
				w.finalize(ctx, job, domain.JobStatusFailed, err.Error())
				return
			case domain.IsInfrastructureError(err):
				// Not the unit's fault: back off and retry the same unit
				// without advancing the cursor.
				log.Warn("unit hit infrastructure error, backing off", "unit", i, "error", err)
				if !w.sleep(ctx, w.cfg.IdlePollInterval) {
					w.release(ctx, job, log)
					return
				}
				continue
			default:
				failed++
				log.Warn("unit failed", "unit", i, "target_ref", target.Ref, "error", err)
			}
		} else {
			calc.RecordUnit(w.now().Sub(start))
		}

		i++
		if err := w.jobs.AdvanceCursor(ctx, job.ID, i, failed); err != nil {
			log.Error("failed to advance cursor", "cursor", i, "error", err)
			w.release(ctx, job, log)
			return
		}
		job.Cursor = i
		job.FailedUnitCount = failed

		// Snapshot writes are best effort: a miss costs one stale poll.
		if err := w.snaps.UpsertSnapshot(ctx, calc.Snapshot(job.ID, i, total, target.Label)); err != nil {
			log.Warn("failed to write progress snapshot", "error", err)
		}

		if w.ratioBreached(failed, total, i) {
			w.finalize(ctx, job, domain.JobStatusFailed,
				fmt.Sprintf("failure ratio exceeded: %d of %d units failed", failed, i))
			return
		}
	}

	w.finalize(ctx, job, domain.JobStatusCompleted, "")
}

// checkpoint runs at every unit boundary and decides whether the job
// leaves this worker's hands. It reports true when it did: cancellation,
// wall-clock timeout, preemption by a strictly-higher-priority pending job
// or shutdown. In every case the persisted cursor makes the outcome safe.
func (w *Worker) checkpoint(ctx context.Context, job *domain.Job, deadline time.Time, log *slog.Logger) bool {
	if ctx.Err() != nil {
		w.release(ctx, job, log)
		return true
	}

	fresh, err := w.jobs.GetJob(ctx, job.ID)
	if err != nil {
		log.Error("checkpoint could not reload job, releasing", "error", err)
		w.release(ctx, job, log)
		return true
	}
	if fresh.CancelRequested {
		log.Info("cancellation observed at checkpoint", "cursor", job.Cursor)
		w.finalize(ctx, job, domain.JobStatusCancelled, "")
		return true
	}

	if !deadline.IsZero() && w.now().After(deadline) {
		log.Warn("wall-clock budget exceeded", "cursor", job.Cursor)
		w.finalize(ctx, job, domain.JobStatusFailed, domain.ErrJobTimeout.Error())
		return true
	}

	higher, err := w.jobs.HasHigherPriorityPending(ctx, job.Priority)
	if err != nil {
		// Preemption is an optimization; keep working rather than stall.
		log.Warn("preemption check failed", "error", err)
		return false
	}
	if higher {
		log.Info("yielding to higher-priority job", "cursor", job.Cursor)
		w.release(ctx, job, log)
		return true
	}
	return false
}

// release interrupts the job and re-admits it to the queue with its cursor
// intact. Used for preemption, shutdown and infrastructure trouble.
func (w *Worker) release(ctx context.Context, job *domain.Job, log *slog.Logger) {
	// Bookkeeping must complete even when the trigger was shutdown.
	ctx = context.WithoutCancel(ctx)

	if err := w.jobs.MarkStatus(ctx, job.ID, domain.JobStatusInterrupted, ""); err != nil {
		// The recovery monitor will requeue the job once its heartbeat
		// goes stale, so a failed release delays resumption but loses
		// nothing.
		log.Error("failed to mark job interrupted", "error", err)
		return
	}
	w.emit(ctx, events.EventJobInterrupted, job, fmt.Sprintf("cursor=%d", job.Cursor))

	if err := w.queue.RequeueForResume(ctx, job, job.Priority); err != nil {
		log.Error("failed to requeue interrupted job", "error", err)
	}
}

// finalize records a terminal transition and schedules the job's progress
// snapshot for expiry.
func (w *Worker) finalize(ctx context.Context, job *domain.Job, status domain.JobStatus, errorMessage string) {
	ctx = context.WithoutCancel(ctx)
	log := w.logger.With("job_id", job.ID)

	if err := w.jobs.MarkStatus(ctx, job.ID, status, errorMessage); err != nil {
		log.Error("failed to record terminal status", "status", status, "error", err)
		return
	}
	job.Status = status
	job.ErrorMessage = errorMessage

	switch status {
	case domain.JobStatusCompleted:
		w.emit(ctx, events.EventJobCompleted, job, "")
	case domain.JobStatusFailed:
		w.emit(ctx, events.EventJobFailed, job, errorMessage)
	case domain.JobStatusCancelled:
		w.emit(ctx, events.EventJobCancelled, job, "cancelled at checkpoint")
	}

	if err := w.snaps.ExpireSnapshot(ctx, job.ID, w.cfg.SnapshotGrace); err != nil {
		log.Warn("failed to schedule snapshot expiry", "error", err)
	}

	log.Info("job finished",
		"status", status,
		"cursor", job.Cursor,
		"failed_units", job.FailedUnitCount)
}

// deadline derives the wall-clock cutoff from the first attempt's start
// time, so retries and resumptions share one budget.
func (w *Worker) deadline(job *domain.Job) time.Time {
	if job.StartedAt == nil {
		return time.Time{}
	}
	return job.StartedAt.Add(w.cfg.JobTimeout)
}

func (w *Worker) ratioBreached(failed int, total *int, processed int) bool {
	if failed == 0 {
		return false
	}
	denom := processed
	if total != nil {
		denom = *total
	} else if processed < minUnitsForFailureRatio {
		return false
	}
	if denom == 0 {
		return false
	}
	return float64(failed)/float64(denom) > w.cfg.FailureRatio
}

func (w *Worker) emit(ctx context.Context, eventType events.EventType, job *domain.Job, detail string) {
	if w.emitter == nil {
		return
	}
	if err := w.emitter.EmitEvent(ctx, events.NewJobEvent(eventType, job, detail)); err != nil {
		w.logger.Warn("failed to emit job event", "event_type", eventType, "job_id", job.ID, "error", err)
	}
}

// sleep waits for d or until the context is cancelled, reporting false on
// cancellation.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
