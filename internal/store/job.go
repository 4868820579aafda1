package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lyricwatch/lyricwatch/internal/domain"
)

// JobStore defines the persistence interface for jobs and the queue
// ordering over them. The pending rows of the job store are the queue: a
// single atomically-mutated ordered structure, keyed by (priority,
// enqueue_seq). Every mutation that claims or re-admits a job must be
// atomic: that single property is what prevents duplicate execution and
// makes running multiple workers safe without a separate lock manager.
type JobStore interface {
	// CreateJob persists a new pending job and assigns it the next global
	// enqueue sequence number, written back to job.EnqueueSeq.
	CreateJob(ctx context.Context, job *domain.Job) error

	// GetJob retrieves a job by ID. Returns ErrJobNotFound when absent.
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// DequeueNextPending atomically claims the pending job with the lowest
	// (priority, enqueue_seq) ordering key: status becomes in_progress,
	// started_at is stamped on the first attempt only, attempt_count is
	// incremented and heartbeat_at is refreshed. Exactly one caller wins a
	// given job no matter how many workers race. Returns (nil, nil) when no
	// job is pending.
	DequeueNextPending(ctx context.Context) (*domain.Job, error)

	// RequeueForResume re-admits a claimed or interrupted job as pending
	// with a fresh enqueue sequence number, preserving its cursor. The
	// priority argument allows explicit elevation; pass the job's current
	// priority to keep it unchanged.
	RequeueForResume(ctx context.Context, id uuid.UUID, priority domain.Priority) error

	// SetTotal records the enumerated target count for a job.
	SetTotal(ctx context.Context, id uuid.UUID, total int) error

	// AdvanceCursor persists checkpoint state after a processed unit. The
	// cursor is monotonic: an update that would move it backwards is
	// rejected with ErrUpdateFailed.
	AdvanceCursor(ctx context.Context, id uuid.UUID, cursor, failedUnitCount int) error

	// UpdateHeartbeat stamps heartbeat_at for an in-progress job.
	UpdateHeartbeat(ctx context.Context, id uuid.UUID) error

	// MarkStatus transitions a job to the given status, recording the error
	// message for failures.
	MarkStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMessage string) error

	// RequestCancel cancels a pending job outright, removing it from queue
	// ordering, or sets the cooperative cancellation flag on a claimed job
	// so the worker observes it at its next checkpoint. Returns false when
	// the job is unknown or already terminal.
	RequestCancel(ctx context.Context, id uuid.UUID) (bool, error)

	// HasHigherPriorityPending reports whether any pending job has strictly
	// higher priority than the given level. Workers call this at every
	// checkpoint to decide whether to yield.
	HasHigherPriorityPending(ctx context.Context, than domain.Priority) (bool, error)

	// RequeueOrphans re-admits in-progress jobs whose heartbeat is older
	// than staleAfter, preserving their cursors. Returns the number of jobs
	// requeued.
	RequeueOrphans(ctx context.Context, staleAfter time.Duration) (int, error)

	// QueueHealth summarizes pending counts per priority, the age of the
	// oldest pending job and the jobs currently held by workers.
	QueueHealth(ctx context.Context) (*domain.QueueHealth, error)
}
