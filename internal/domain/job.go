package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of analysis work a job performs.
// The set is closed: dispatch over job types happens through an explicit
// registry, never reflection.
type JobType string

// Supported job types.
const (
	// JobTypeSingleItem analyzes one track, typically on behalf of an
	// interactive user request.
	JobTypeSingleItem JobType = "single_item"

	// JobTypeBatchItem analyzes an explicit list of tracks, e.g. a playlist.
	JobTypeBatchItem JobType = "batch_item"

	// JobTypeBackgroundSweep walks a catalog segment without a known
	// length up front.
	JobTypeBackgroundSweep JobType = "background_sweep"
)

// IsValid reports whether t is one of the supported job types.
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeSingleItem, JobTypeBatchItem, JobTypeBackgroundSweep:
		return true
	}
	return false
}

// Priority governs scheduling precedence. Lower values sort first, so the
// ordering key can be compared directly.
type Priority int

// Supported priorities.
const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

// IsValid reports whether p is one of the supported priorities.
func (p Priority) IsValid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// String returns the lowercase name used in logs and API responses.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParsePriority converts the wire representation to a Priority.
// Returns false for anything outside the closed set.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "high":
		return PriorityHigh, true
	case "medium":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	}
	return 0, false
}

// JobStatus represents the current state of a job.
type JobStatus string

// Possible job status values.
const (
	JobStatusPending     JobStatus = "pending"
	JobStatusInProgress  JobStatus = "in_progress"
	JobStatusInterrupted JobStatus = "interrupted"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// IsTerminal reports whether the status is final. Interrupted is not
// terminal: it self-resolves through a requeue.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Public returns the user-visible rendering of the status. Interrupted is
// always reported as "running" since it is transient and self-resolving.
func (s JobStatus) Public() string {
	switch s {
	case JobStatusPending:
		return "queued"
	case JobStatusInProgress, JobStatusInterrupted:
		return "running"
	default:
		return string(s)
	}
}

// Job is the durable record of one analysis job. The queue subsystem
// exclusively owns these records; external callers reference a job only by
// ID and may only request enqueue or cancel.
type Job struct {
	// ID is the job's unique identifier.
	ID uuid.UUID

	// Type identifies which target enumerator and unit logic apply.
	Type JobType

	// Priority governs scheduling precedence.
	Priority Priority

	// Owner identifies who requested the job.
	Owner string

	// Payload is type-specific target data, interpreted by the enumerator.
	Payload json.RawMessage

	// Status is the current lifecycle state.
	Status JobStatus

	// Cursor is the index of the next unprocessed unit. It never decreases
	// while the job is in progress, which is what makes resumption safe.
	Cursor int

	// Total is the number of units in the target sequence, nil until the
	// worker enumerates targets and permanently nil for open-ended sweeps.
	Total *int

	// EnqueueSeq is the global monotonically increasing counter used as the
	// FIFO tie-break within a priority level. A requeued job receives a
	// fresh value, so it does not retain queue-position seniority.
	EnqueueSeq int64

	// AttemptCount is incremented on every dequeue.
	AttemptCount int

	// FailedUnitCount tracks units that failed within tolerance.
	FailedUnitCount int

	// ErrorMessage carries the failure reason for failed jobs.
	ErrorMessage string

	// CancelRequested is the cooperative cancellation flag, observed by the
	// worker at its next checkpoint.
	CancelRequested bool

	CreatedAt   time.Time
	StartedAt   *time.Time
	HeartbeatAt *time.Time
	UpdatedAt   time.Time
}

// RemainingUnits returns the number of unprocessed units, or nil when the
// total is unknown.
func (j *Job) RemainingUnits() *int {
	if j.Total == nil {
		return nil
	}
	remaining := *j.Total - j.Cursor
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}
