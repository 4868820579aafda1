package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProgressSnapshot is the frequently-updated view of a running job's
// progress. It is stored separately from the Job record so high-frequency
// progress writes never contend with job-metadata writes.
type ProgressSnapshot struct {
	// JobID links the snapshot to its job.
	JobID uuid.UUID

	// Current is the number of units processed so far.
	Current int

	// Total is nil for open-ended sweeps, where only the raw count is
	// meaningful.
	Total *int

	// Percentage is clamped to [0, 100] and nil when Total is unknown.
	Percentage *float64

	// ETASeconds is nil until enough units have completed for the rolling
	// average to be trustworthy.
	ETASeconds *float64

	// CurrentItemLabel names the unit most recently processed.
	CurrentItemLabel string

	// UpdatedAt is the time of the last write.
	UpdatedAt time.Time

	// ExpiresAt is set once the job reaches a terminal state; the reaper
	// deletes snapshots past this time to bound storage growth.
	ExpiresAt *time.Time
}

// QueueHealth summarizes queue state for operators.
type QueueHealth struct {
	// PendingByPriority counts pending jobs per priority level.
	PendingByPriority map[Priority]int

	// OldestPendingAge is nil when no jobs are pending.
	OldestPendingAge *time.Duration

	// ActiveJobIDs lists jobs currently held by workers.
	ActiveJobIDs []uuid.UUID
}
