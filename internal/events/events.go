package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lyricwatch/lyricwatch/internal/domain"
)

// EventType identifies a job lifecycle transition.
type EventType string

// Lifecycle event types emitted by the queue and worker.
const (
	EventJobEnqueued    EventType = "job_enqueued"
	EventJobStarted     EventType = "job_started"
	EventJobInterrupted EventType = "job_interrupted"
	EventJobResumed     EventType = "job_resumed"
	EventJobCompleted   EventType = "job_completed"
	EventJobFailed      EventType = "job_failed"
	EventJobCancelled   EventType = "job_cancelled"
)

// JobEvent describes one lifecycle transition of a job. Events decouple
// interested parties (logging, future webhooks) from the queue and worker
// without giving them access to job records.
type JobEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is the lifecycle transition
	Type EventType `json:"type"`

	// JobID identifies the affected job
	JobID uuid.UUID `json:"job_id"`

	// JobType and Priority describe the job for handlers that do not want
	// to fetch it
	JobType  domain.JobType  `json:"job_type"`
	Priority domain.Priority `json:"priority"`

	// Detail carries transition-specific context, e.g. a failure reason or
	// the cursor at interruption
	Detail string `json:"detail,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewJobEvent creates a lifecycle event for the given job.
func NewJobEvent(eventType EventType, job *domain.Job, detail string) *JobEvent {
	return &JobEvent{
		ID:        uuid.New(),
		Type:      eventType,
		JobID:     job.ID,
		JobType:   job.Type,
		Priority:  job.Priority,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the queue and worker to publish events without direct
// knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *JobEvent) error
}
