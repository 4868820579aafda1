package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lyricwatch/lyricwatch/internal/domain"
)

// ProgressStore persists high-frequency progress snapshots. It is a
// separate keyed record from the job itself so per-unit progress writes
// never contend with the lower-frequency job-metadata writes.
type ProgressStore interface {
	// UpsertSnapshot creates or replaces the snapshot for a job.
	UpsertSnapshot(ctx context.Context, snap *domain.ProgressSnapshot) error

	// GetSnapshot retrieves the snapshot for a job. Returns
	// ErrSnapshotNotFound when absent or already expired.
	GetSnapshot(ctx context.Context, jobID uuid.UUID) (*domain.ProgressSnapshot, error)

	// ExpireSnapshot schedules the snapshot for deletion after the grace
	// period, called when its job reaches a terminal state.
	ExpireSnapshot(ctx context.Context, jobID uuid.UUID, grace time.Duration) error

	// DeleteExpired removes snapshots past their expiry. Returns the number
	// of rows deleted.
	DeleteExpired(ctx context.Context) (int, error)
}
