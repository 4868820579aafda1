package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lyricwatch/lyricwatch/internal/domain"
	"github.com/lyricwatch/lyricwatch/internal/store"
)

// PostgresProgressStore implements store.ProgressStore using PostgreSQL.
type PostgresProgressStore struct {
	db store.DBTX
}

var _ store.ProgressStore = (*PostgresProgressStore)(nil)

// NewPostgresProgressStore creates a new PostgresProgressStore.
func NewPostgresProgressStore(db store.DBTX) *PostgresProgressStore {
	return &PostgresProgressStore{db: db}
}

// UpsertSnapshot creates or replaces the snapshot row for a job. An upsert
// keyed on job_id keeps exactly one row per job however fast units finish.
func (s *PostgresProgressStore) UpsertSnapshot(ctx context.Context, snap *domain.ProgressSnapshot) error {
	query := `
		INSERT INTO progress_snapshots
			(job_id, current_unit, total, percentage, eta_seconds,
			 current_item_label, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO UPDATE SET
			current_unit = EXCLUDED.current_unit,
			total = EXCLUDED.total,
			percentage = EXCLUDED.percentage,
			eta_seconds = EXCLUDED.eta_seconds,
			current_item_label = EXCLUDED.current_item_label,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`
	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		snap.JobID,
		snap.Current,
		snap.Total,
		snap.Percentage,
		snap.ETASeconds,
		snap.CurrentItemLabel,
		updatedAt,
		snap.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress snapshot: %w", MapError(err))
	}
	return nil
}

// GetSnapshot retrieves a job's snapshot, treating rows past their expiry
// as already gone.
func (s *PostgresProgressStore) GetSnapshot(ctx context.Context, jobID uuid.UUID) (*domain.ProgressSnapshot, error) {
	query := `
		SELECT job_id, current_unit, total, percentage, eta_seconds,
			current_item_label, updated_at, expires_at
		FROM progress_snapshots
		WHERE job_id = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`
	var snap domain.ProgressSnapshot
	var total sql.NullInt64
	var percentage, etaSeconds sql.NullFloat64
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, jobID).Scan(
		&snap.JobID,
		&snap.Current,
		&total,
		&percentage,
		&etaSeconds,
		&snap.CurrentItemLabel,
		&snap.UpdatedAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get progress snapshot: %w", MapError(err))
	}

	if total.Valid {
		t := int(total.Int64)
		snap.Total = &t
	}
	if percentage.Valid {
		p := percentage.Float64
		snap.Percentage = &p
	}
	if etaSeconds.Valid {
		e := etaSeconds.Float64
		snap.ETASeconds = &e
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		snap.ExpiresAt = &t
	}
	return &snap, nil
}

// ExpireSnapshot stamps the snapshot's expiry grace seconds from now.
// Missing rows are not an error; the job may have finished before any
// progress write landed.
func (s *PostgresProgressStore) ExpireSnapshot(ctx context.Context, jobID uuid.UUID, grace time.Duration) error {
	query := `UPDATE progress_snapshots SET expires_at = $1 WHERE job_id = $2`
	expiresAt := time.Now().UTC().Add(grace)
	if _, err := s.db.ExecContext(ctx, query, expiresAt, jobID); err != nil {
		return fmt.Errorf("failed to expire progress snapshot: %w", MapError(err))
	}
	return nil
}

// DeleteExpired removes snapshots whose expiry has passed.
func (s *PostgresProgressStore) DeleteExpired(ctx context.Context) (int, error) {
	query := `DELETE FROM progress_snapshots WHERE expires_at IS NOT NULL AND expires_at <= NOW()`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired snapshots: %w", MapError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}
