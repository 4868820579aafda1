// Package queue exposes the priority-queue operations over the job store:
// enqueue, atomic dequeue, resume requeueing, cancellation and health. It
// is the sole arbiter of what runs next. Ordering is strict priority-first
// with FIFO on the enqueue sequence within a level, and a continuous
// stream of high-priority work can therefore starve low-priority jobs
// indefinitely; that is an accepted tradeoff, not a defect.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lyricwatch/lyricwatch/internal/domain"
	"github.com/lyricwatch/lyricwatch/internal/events"
	"github.com/lyricwatch/lyricwatch/internal/store"
)

// EnqueueRequest carries the caller-supplied fields of a new job.
type EnqueueRequest struct {
	Type     domain.JobType
	Priority domain.Priority
	Owner    string
	Payload  json.RawMessage
}

// Queue coordinates job admission and retrieval.
type Queue struct {
	jobs          store.JobStore
	snaps         store.ProgressStore
	emitter       events.EventEmitter
	snapshotGrace time.Duration
	logger        *slog.Logger
}

// New creates a Queue. The emitter may be nil when no observers are wired.
func New(jobs store.JobStore, snaps store.ProgressStore, emitter events.EventEmitter, snapshotGrace time.Duration, logger *slog.Logger) *Queue {
	return &Queue{
		jobs:          jobs,
		snaps:         snaps,
		emitter:       emitter,
		snapshotGrace: snapshotGrace,
		logger:        logger.With("component", "queue"),
	}
}

func (q *Queue) emit(ctx context.Context, eventType events.EventType, job *domain.Job, detail string) {
	if q.emitter == nil {
		return
	}
	// Event delivery failures never affect queue operations.
	if err := q.emitter.EmitEvent(ctx, events.NewJobEvent(eventType, job, detail)); err != nil {
		q.logger.Warn("failed to emit job event",
			"event_type", eventType,
			"job_id", job.ID,
			"error", err)
	}
}

// Enqueue validates the request, creates the job record in Pending state
// with cursor zero and admits it to the queue. It never blocks; the job ID
// is returned immediately and execution happens later.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Job, error) {
	if !req.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidJobType, req.Type)
	}
	if !req.Priority.IsValid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidPriority, req.Priority)
	}
	if req.Owner == "" {
		return nil, fmt.Errorf("%w: owner cannot be empty", domain.ErrValidation)
	}
	if len(req.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload cannot be empty", domain.ErrValidation)
	}

	job := &domain.Job{
		ID:       uuid.New(),
		Type:     req.Type,
		Priority: req.Priority,
		Owner:    req.Owner,
		Payload:  req.Payload,
		Status:   domain.JobStatusPending,
		Cursor:   0,
	}

	if err := q.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.logger.Info("job enqueued",
		"job_id", job.ID,
		"job_type", job.Type,
		"priority", job.Priority.String(),
		"owner", job.Owner,
		"enqueue_seq", job.EnqueueSeq)
	q.emit(ctx, events.EventJobEnqueued, job, "")

	return job, nil
}

// Dequeue atomically claims and returns the highest-priority,
// earliest-enqueued pending job, or nil when the queue is empty. The
// claim marks the job InProgress in the same atomic operation, so a job
// present in the queue is never simultaneously in progress and no two
// callers can win the same job.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Job, error) {
	job, err := q.jobs.DequeueNextPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	q.logger.Debug("job dequeued",
		"job_id", job.ID,
		"job_type", job.Type,
		"priority", job.Priority.String(),
		"cursor", job.Cursor,
		"attempt", job.AttemptCount)
	return job, nil
}

// RequeueForResume re-admits an interrupted or recovered job at the given
// priority, preserving its cursor. The job receives a fresh enqueue
// sequence number: it does not retain queue-position seniority from before
// the interruption. Pass job.Priority to keep the priority unchanged, or a
// higher level to elevate it explicitly.
func (q *Queue) RequeueForResume(ctx context.Context, job *domain.Job, priority domain.Priority) error {
	if !priority.IsValid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidPriority, priority)
	}
	if err := q.jobs.RequeueForResume(ctx, job.ID, priority); err != nil {
		return fmt.Errorf("failed to requeue job %s: %w", job.ID, err)
	}

	q.logger.Info("job requeued for resume",
		"job_id", job.ID,
		"cursor", job.Cursor,
		"priority", priority.String())
	q.emit(ctx, events.EventJobResumed, job, fmt.Sprintf("cursor=%d", job.Cursor))
	return nil
}

// Cancel removes a pending job from the queue outright or, for a job
// already claimed by a worker, sets the cooperative cancellation flag that
// the worker observes at its next checkpoint. Returns false when the job
// is unknown or already terminal.
func (q *Queue) Cancel(ctx context.Context, jobID uuid.UUID) (bool, error) {
	ok, err := q.jobs.RequestCancel(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	if !ok {
		return false, nil
	}

	job, err := q.jobs.GetJob(ctx, jobID)
	if err != nil {
		// Cancellation already took effect; reporting is best-effort.
		q.logger.Warn("cancelled job but could not reload it", "job_id", jobID, "error", err)
		return true, nil
	}

	if job.Status == domain.JobStatusCancelled {
		q.logger.Info("pending job cancelled", "job_id", jobID)
		q.emit(ctx, events.EventJobCancelled, job, "cancelled while pending")
		// A job cancelled before any worker holds it reaches its terminal
		// state here, so this is the only place its snapshot (left over
		// from an earlier interrupted attempt) gets an expiry.
		if q.snaps != nil {
			if err := q.snaps.ExpireSnapshot(ctx, jobID, q.snapshotGrace); err != nil {
				q.logger.Warn("failed to schedule snapshot expiry", "job_id", jobID, "error", err)
			}
		}
	} else {
		q.logger.Info("cancellation requested for running job", "job_id", jobID)
	}
	return true, nil
}

// Health summarizes queue state for operators.
func (q *Queue) Health(ctx context.Context) (*domain.QueueHealth, error) {
	health, err := q.jobs.QueueHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue health: %w", err)
	}
	return health, nil
}
