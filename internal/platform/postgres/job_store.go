// Package postgres implements the store interfaces on PostgreSQL. The
// jobs table doubles as the priority queue: pending rows ordered by
// (priority, enqueue_seq) are the queue, and FOR UPDATE SKIP LOCKED makes
// the dequeue a single atomic claim that any number of workers can race
// safely.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lyricwatch/lyricwatch/internal/domain"
	"github.com/lyricwatch/lyricwatch/internal/platform/logger"
	"github.com/lyricwatch/lyricwatch/internal/store"
)

// jobColumns is the canonical select list; scanJob must match it.
const jobColumns = `id, type, priority, owner, payload, status, cursor, total,
	enqueue_seq, attempt_count, failed_unit_count, error_message,
	cancel_requested, created_at, started_at, heartbeat_at, updated_at`

// PostgresJobStore implements store.JobStore using PostgreSQL.
type PostgresJobStore struct {
	db store.DBTX
}

var _ store.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) *PostgresJobStore {
	return &PostgresJobStore{db: tx}
}

// CreateJob persists a new pending job, assigning the next global enqueue
// sequence number from the jobs_enqueue_seq sequence.
func (s *PostgresJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO jobs (id, type, priority, owner, payload, status, cursor,
			enqueue_seq, attempt_count, failed_unit_count, error_message,
			cancel_requested, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0,
			nextval('jobs_enqueue_seq'), 0, 0, '',
			FALSE, $7, $7)
		RETURNING enqueue_seq, created_at
	`
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		job.ID,
		job.Type,
		job.Priority,
		job.Owner,
		job.Payload,
		domain.JobStatusPending,
		now,
	).Scan(&job.EnqueueSeq, &job.CreatedAt)
	if err != nil {
		log.Error("failed to create job", "job_id", job.ID, "error", err)
		return fmt.Errorf("failed to create job: %w", MapError(err))
	}

	job.Status = domain.JobStatusPending
	job.UpdatedAt = now
	return nil
}

// GetJob retrieves a job by ID.
func (s *PostgresJobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", MapError(err))
	}
	return job, nil
}

// DequeueNextPending atomically claims the best pending job. SKIP LOCKED
// lets concurrent workers race without blocking: each one either wins a
// distinct row or sees an empty queue.
func (s *PostgresJobStore) DequeueNextPending(ctx context.Context) (*domain.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs SET
			status = $1,
			started_at = COALESCE(started_at, NOW()),
			attempt_count = attempt_count + 1,
			heartbeat_at = NOW(),
			updated_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = $2
			ORDER BY priority ASC, enqueue_seq ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRowContext(ctx, query,
		domain.JobStatusInProgress, domain.JobStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		log.Error("failed to dequeue job", "error", err)
		return nil, fmt.Errorf("failed to dequeue job: %w", MapError(err))
	}
	return job, nil
}

// RequeueForResume re-admits a non-terminal job as pending with a fresh
// sequence number, preserving its cursor.
func (s *PostgresJobStore) RequeueForResume(ctx context.Context, id uuid.UUID, priority domain.Priority) error {
	query := `
		UPDATE jobs SET
			status = $1,
			priority = $2,
			enqueue_seq = nextval('jobs_enqueue_seq'),
			heartbeat_at = NULL,
			updated_at = NOW()
		WHERE id = $3 AND status NOT IN ($4, $5, $6)
	`
	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusPending, priority, id,
		domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", MapError(err))
	}
	return s.requireRowAffected(result, id, "requeue")
}

// SetTotal records the enumerated target count.
func (s *PostgresJobStore) SetTotal(ctx context.Context, id uuid.UUID, total int) error {
	query := `UPDATE jobs SET total = $1, updated_at = NOW() WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, total, id)
	if err != nil {
		return fmt.Errorf("failed to set total: %w", MapError(err))
	}
	return s.requireRowAffected(result, id, "set total")
}

// AdvanceCursor persists checkpoint state. The WHERE clause enforces
// monotonicity in the database itself, so a stale worker cannot rewind a
// cursor that a newer claim already advanced.
func (s *PostgresJobStore) AdvanceCursor(ctx context.Context, id uuid.UUID, cursor, failedUnitCount int) error {
	query := `
		UPDATE jobs SET cursor = $1, failed_unit_count = $2, updated_at = NOW()
		WHERE id = $3 AND cursor <= $1
	`
	result, err := s.db.ExecContext(ctx, query, cursor, failedUnitCount, id)
	if err != nil {
		return fmt.Errorf("failed to advance cursor: %w", MapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: cursor advance rejected for job %s", store.ErrUpdateFailed, id)
	}
	return nil
}

// UpdateHeartbeat stamps heartbeat_at for an in-progress job.
func (s *PostgresJobStore) UpdateHeartbeat(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE jobs SET heartbeat_at = NOW() WHERE id = $1 AND status = $2`
	if _, err := s.db.ExecContext(ctx, query, id, domain.JobStatusInProgress); err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", MapError(err))
	}
	return nil
}

// MarkStatus transitions a job to the given status.
func (s *PostgresJobStore) MarkStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMessage string) error {
	query := `UPDATE jobs SET status = $1, error_message = $2, updated_at = NOW() WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark job status: %w", MapError(err))
	}
	return s.requireRowAffected(result, id, "mark status")
}

// RequestCancel cancels a pending job outright or flags a claimed one for
// cooperative cancellation at its next checkpoint. The two updates run in
// one transaction so the job cannot slip from pending to claimed between
// them and dodge both.
func (s *PostgresJobStore) RequestCancel(ctx context.Context, id uuid.UUID) (bool, error) {
	db, ok := s.db.(*sql.DB)
	if !ok {
		// Already inside a caller-managed transaction.
		return s.requestCancel(ctx, id)
	}

	var cancelled bool
	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		cancelled, err = s.WithTx(tx).requestCancel(ctx, id)
		return err
	})
	return cancelled, err
}

func (s *PostgresJobStore) requestCancel(ctx context.Context, id uuid.UUID) (bool, error) {
	// Pending jobs leave the queue immediately.
	direct := `UPDATE jobs SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	result, err := s.db.ExecContext(ctx, direct,
		domain.JobStatusCancelled, id, domain.JobStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to cancel pending job: %w", MapError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	// Claimed jobs get the flag; the worker owns the terminal transition.
	flag := `
		UPDATE jobs SET cancel_requested = TRUE, updated_at = NOW()
		WHERE id = $1 AND status IN ($2, $3)
	`
	result, err = s.db.ExecContext(ctx, flag, id,
		domain.JobStatusInProgress, domain.JobStatusInterrupted)
	if err != nil {
		return false, fmt.Errorf("failed to flag job for cancellation: %w", MapError(err))
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// HasHigherPriorityPending reports whether a strictly higher-priority
// pending job exists. Lower priority values sort first.
func (s *PostgresJobStore) HasHigherPriorityPending(ctx context.Context, than domain.Priority) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM jobs WHERE status = $1 AND priority < $2)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, domain.JobStatusPending, than).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending priorities: %w", MapError(err))
	}
	return exists, nil
}

// RequeueOrphans re-admits in-progress jobs whose heartbeat is older than
// staleAfter, preserving their cursors.
func (s *PostgresJobStore) RequeueOrphans(ctx context.Context, staleAfter time.Duration) (int, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs SET
			status = $1,
			enqueue_seq = nextval('jobs_enqueue_seq'),
			heartbeat_at = NULL,
			updated_at = NOW()
		WHERE status = $2 AND heartbeat_at < $3
	`
	cutoff := time.Now().UTC().Add(-staleAfter)
	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusPending, domain.JobStatusInProgress, cutoff)
	if err != nil {
		log.Error("failed to requeue orphans", "error", err)
		return 0, fmt.Errorf("failed to requeue orphans: %w", MapError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

// QueueHealth summarizes pending counts per priority, the age of the
// oldest pending job and the jobs currently held by workers.
func (s *PostgresJobStore) QueueHealth(ctx context.Context) (*domain.QueueHealth, error) {
	health := &domain.QueueHealth{
		PendingByPriority: map[domain.Priority]int{
			domain.PriorityHigh:   0,
			domain.PriorityMedium: 0,
			domain.PriorityLow:    0,
		},
	}

	pendingQuery := `
		SELECT priority, COUNT(*), MIN(created_at)
		FROM jobs WHERE status = $1 GROUP BY priority
	`
	rows, err := s.db.QueryContext(ctx, pendingQuery, domain.JobStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var oldest *time.Time
	for rows.Next() {
		var priority domain.Priority
		var count int
		var earliest time.Time
		if err := rows.Scan(&priority, &count, &earliest); err != nil {
			return nil, fmt.Errorf("failed to scan pending counts: %w", err)
		}
		health.PendingByPriority[priority] = count
		if oldest == nil || earliest.Before(*oldest) {
			t := earliest
			oldest = &t
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending counts: %w", err)
	}
	if oldest != nil {
		age := time.Since(*oldest)
		health.OldestPendingAge = &age
	}

	activeQuery := `SELECT id FROM jobs WHERE status = $1 ORDER BY started_at ASC`
	activeRows, err := s.db.QueryContext(ctx, activeQuery, domain.JobStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to query active jobs: %w", MapError(err))
	}
	defer func() { _ = activeRows.Close() }()

	for activeRows.Next() {
		var id uuid.UUID
		if err := activeRows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan active job id: %w", err)
		}
		health.ActiveJobIDs = append(health.ActiveJobIDs, id)
	}
	if err := activeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active jobs: %w", err)
	}

	return health, nil
}

func (s *PostgresJobStore) requireRowAffected(result sql.Result, id uuid.UUID, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s matched no updatable job %s", store.ErrUpdateFailed, op, id)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var total sql.NullInt64
	var errorMessage sql.NullString
	var startedAt, heartbeatAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Priority,
		&job.Owner,
		&job.Payload,
		&job.Status,
		&job.Cursor,
		&total,
		&job.EnqueueSeq,
		&job.AttemptCount,
		&job.FailedUnitCount,
		&errorMessage,
		&job.CancelRequested,
		&job.CreatedAt,
		&startedAt,
		&heartbeatAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if total.Valid {
		t := int(total.Int64)
		job.Total = &t
	}
	job.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if heartbeatAt.Valid {
		t := heartbeatAt.Time
		job.HeartbeatAt = &t
	}
	return &job, nil
}
