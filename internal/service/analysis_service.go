// Package service contains the application services between the HTTP API
// and the queue subsystem: request validation, enqueueing and the
// read-side views of job status and progress.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lyricwatch/lyricwatch/internal/domain"
	"github.com/lyricwatch/lyricwatch/internal/progress"
	"github.com/lyricwatch/lyricwatch/internal/queue"
	"github.com/lyricwatch/lyricwatch/internal/store"
)

// ErrNotCancellable is returned when a cancel request targets a job that
// already reached a terminal state.
var ErrNotCancellable = errors.New("job is not cancellable")

// JobStatusView is the user-visible rendering of a job. Internal states
// are collapsed: interrupted reads as "running" because it self-resolves
// through a requeue, and pending reads as "queued".
type JobStatusView struct {
	ID              uuid.UUID      `json:"id"`
	Type            domain.JobType `json:"type"`
	Priority        string         `json:"priority"`
	State           string         `json:"state"`
	Owner           string         `json:"owner"`
	Total           *int           `json:"total,omitempty"`
	FailedUnitCount int            `json:"failed_unit_count,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ProgressView is the user-visible progress of a job, served from the
// latest snapshot when one exists and derived from the job record
// otherwise.
type ProgressView struct {
	JobID            uuid.UUID      `json:"job_id"`
	State            string         `json:"state"`
	JobType          domain.JobType `json:"job_type"`
	Current          int            `json:"current"`
	Total            *int           `json:"total,omitempty"`
	Percentage       *float64       `json:"percentage,omitempty"`
	ETASeconds       *float64       `json:"eta_seconds,omitempty"`
	CurrentItemLabel string         `json:"current_item_label,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
}

// EnqueueParams carries a validated-later enqueue request.
type EnqueueParams struct {
	Type     string
	Priority string
	Owner    string
	Payload  json.RawMessage
}

// AnalysisService validates and enqueues analysis jobs and serves their
// status and progress.
type AnalysisService struct {
	queue  *queue.Queue
	jobs   store.JobStore
	snaps  store.ProgressStore
	logger *slog.Logger
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(q *queue.Queue, jobs store.JobStore, snaps store.ProgressStore, logger *slog.Logger) *AnalysisService {
	return &AnalysisService{
		queue:  q,
		jobs:   jobs,
		snaps:  snaps,
		logger: logger.With("component", "analysis_service"),
	}
}

// EnqueueJob validates the request and admits a new job. An omitted
// priority falls back to the default for the job type: interactive
// single-item requests run high, batches medium and sweeps low.
func (s *AnalysisService) EnqueueJob(ctx context.Context, p EnqueueParams) (*JobStatusView, error) {
	jobType := domain.JobType(p.Type)
	if !jobType.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidJobType, p.Type)
	}

	priority := defaultPriorityFor(jobType)
	if p.Priority != "" {
		parsed, ok := domain.ParsePriority(p.Priority)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, p.Priority)
		}
		priority = parsed
	}

	job, err := s.queue.Enqueue(ctx, queue.EnqueueRequest{
		Type:     jobType,
		Priority: priority,
		Owner:    p.Owner,
		Payload:  p.Payload,
	})
	if err != nil {
		return nil, err
	}
	return statusView(job), nil
}

// GetStatus returns the user-visible status of a job.
func (s *AnalysisService) GetStatus(ctx context.Context, jobID uuid.UUID) (*JobStatusView, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return statusView(job), nil
}

// GetProgress returns the progress of a job. High-frequency fields come
// from the latest snapshot; when no snapshot exists (job not yet started,
// or snapshot already reaped) the view is derived from the job record with
// no ETA.
func (s *AnalysisService) GetProgress(ctx context.Context, jobID uuid.UUID) (*ProgressView, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := &ProgressView{
		JobID:        job.ID,
		State:        job.Status.Public(),
		JobType:      job.Type,
		Current:      job.Cursor,
		Total:        job.Total,
		Percentage:   progress.Percentage(job.Cursor, job.Total),
		ErrorMessage: job.ErrorMessage,
	}

	snap, err := s.snaps.GetSnapshot(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			return view, nil
		}
		return nil, err
	}

	view.Current = snap.Current
	view.Total = snap.Total
	view.Percentage = snap.Percentage
	view.ETASeconds = snap.ETASeconds
	view.CurrentItemLabel = snap.CurrentItemLabel
	return view, nil
}

// Cancel requests cancellation of a job. Pending jobs are cancelled
// outright; running jobs stop at their next checkpoint. Returns
// ErrNotCancellable for jobs already in a terminal state.
func (s *AnalysisService) Cancel(ctx context.Context, jobID uuid.UUID) error {
	if _, err := s.jobs.GetJob(ctx, jobID); err != nil {
		return err
	}
	ok, err := s.queue.Cancel(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCancellable
	}
	return nil
}

// QueueHealth reports queue state for operators.
func (s *AnalysisService) QueueHealth(ctx context.Context) (*domain.QueueHealth, error) {
	return s.queue.Health(ctx)
}

func statusView(job *domain.Job) *JobStatusView {
	return &JobStatusView{
		ID:              job.ID,
		Type:            job.Type,
		Priority:        job.Priority.String(),
		State:           job.Status.Public(),
		Owner:           job.Owner,
		Total:           job.Total,
		FailedUnitCount: job.FailedUnitCount,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

func defaultPriorityFor(jobType domain.JobType) domain.Priority {
	switch jobType {
	case domain.JobTypeSingleItem:
		return domain.PriorityHigh
	case domain.JobTypeBatchItem:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
