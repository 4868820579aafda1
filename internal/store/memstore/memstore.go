// Package memstore provides in-memory implementations of the store
// interfaces. It backs unit tests across the queue, worker and service
// packages, and doubles as a single-process mode for local development.
// Ordering semantics mirror the Postgres implementation: pending jobs form
// a priority queue keyed by (priority, enqueue_seq), and every claim or
// re-admit mutation happens under one lock so there is exactly one dequeue
// winner.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lyricwatch/lyricwatch/internal/domain"
	"github.com/lyricwatch/lyricwatch/internal/store"
)

// Store implements store.JobStore and store.ProgressStore in memory.
type Store struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*domain.Job
	snaps map[uuid.UUID]*domain.ProgressSnapshot
	seq   int64
	now   func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		jobs:  make(map[uuid.UUID]*domain.Job),
		snaps: make(map[uuid.UUID]*domain.ProgressSnapshot),
		now:   time.Now,
	}
}

// SetClock overrides the store's notion of time. Tests use this to age
// heartbeats and snapshot expiries without sleeping.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func copyJob(j *domain.Job) *domain.Job {
	cp := *j
	if j.Total != nil {
		t := *j.Total
		cp.Total = &t
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.HeartbeatAt != nil {
		t := *j.HeartbeatAt
		cp.HeartbeatAt = &t
	}
	return &cp
}

func copySnapshot(snap *domain.ProgressSnapshot) *domain.ProgressSnapshot {
	cp := *snap
	if snap.Total != nil {
		t := *snap.Total
		cp.Total = &t
	}
	if snap.Percentage != nil {
		p := *snap.Percentage
		cp.Percentage = &p
	}
	if snap.ETASeconds != nil {
		e := *snap.ETASeconds
		cp.ETASeconds = &e
	}
	if snap.ExpiresAt != nil {
		t := *snap.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}

// CreateJob persists a new pending job and assigns the next enqueue sequence.
func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return store.NewStoreError("job", "create", "duplicate job ID", nil)
	}

	s.seq++
	job.EnqueueSeq = s.seq
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	s.jobs[job.ID] = copyJob(job)
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return copyJob(job), nil
}

// DequeueNextPending atomically claims the best pending job, or returns
// (nil, nil) when the queue is empty.
func (s *Store) DequeueNextPending(ctx context.Context) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *domain.Job
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusPending {
			continue
		}
		if best == nil ||
			job.Priority < best.Priority ||
			(job.Priority == best.Priority && job.EnqueueSeq < best.EnqueueSeq) {
			best = job
		}
	}
	if best == nil {
		return nil, nil
	}

	now := s.now()
	best.Status = domain.JobStatusInProgress
	if best.StartedAt == nil {
		t := now
		best.StartedAt = &t
	}
	best.AttemptCount++
	hb := now
	best.HeartbeatAt = &hb
	best.UpdatedAt = now

	return copyJob(best), nil
}

// RequeueForResume re-admits a job as pending with a fresh sequence number,
// preserving its cursor.
func (s *Store) RequeueForResume(ctx context.Context, id uuid.UUID, priority domain.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", store.ErrUpdateFailed, id, job.Status)
	}

	s.seq++
	job.EnqueueSeq = s.seq
	job.Priority = priority
	job.Status = domain.JobStatusPending
	job.HeartbeatAt = nil
	job.UpdatedAt = s.now()
	return nil
}

// SetTotal records the enumerated target count.
func (s *Store) SetTotal(ctx context.Context, id uuid.UUID, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Total = &total
	job.UpdatedAt = s.now()
	return nil
}

// AdvanceCursor persists checkpoint state. The cursor never moves backwards.
func (s *Store) AdvanceCursor(ctx context.Context, id uuid.UUID, cursor, failedUnitCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if cursor < job.Cursor {
		return fmt.Errorf("%w: cursor would move backwards (%d < %d)",
			store.ErrUpdateFailed, cursor, job.Cursor)
	}
	job.Cursor = cursor
	job.FailedUnitCount = failedUnitCount
	job.UpdatedAt = s.now()
	return nil
}

// UpdateHeartbeat stamps heartbeat_at for a claimed job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	hb := s.now()
	job.HeartbeatAt = &hb
	return nil
}

// MarkStatus transitions a job to the given status.
func (s *Store) MarkStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Status = status
	job.ErrorMessage = errorMessage
	job.UpdatedAt = s.now()
	return nil
}

// RequestCancel cancels a pending job outright or flags a claimed one.
func (s *Store) RequestCancel(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	if job.Status.IsTerminal() {
		return false, nil
	}

	if job.Status == domain.JobStatusPending {
		job.Status = domain.JobStatusCancelled
	} else {
		job.CancelRequested = true
	}
	job.UpdatedAt = s.now()
	return true, nil
}

// HasHigherPriorityPending reports whether a strictly higher-priority
// pending job exists.
func (s *Store) HasHigherPriorityPending(ctx context.Context, than domain.Priority) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.Status == domain.JobStatusPending && job.Priority < than {
			return true, nil
		}
	}
	return false, nil
}

// RequeueOrphans re-admits in-progress jobs with stale heartbeats.
func (s *Store) RequeueOrphans(ctx context.Context, staleAfter time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	requeued := 0
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusInProgress {
			continue
		}
		if job.HeartbeatAt == nil || now.Sub(*job.HeartbeatAt) <= staleAfter {
			continue
		}
		s.seq++
		job.EnqueueSeq = s.seq
		job.Status = domain.JobStatusPending
		job.HeartbeatAt = nil
		job.UpdatedAt = now
		requeued++
	}
	return requeued, nil
}

// QueueHealth summarizes queue state.
func (s *Store) QueueHealth(ctx context.Context) (*domain.QueueHealth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	health := &domain.QueueHealth{
		PendingByPriority: map[domain.Priority]int{
			domain.PriorityHigh:   0,
			domain.PriorityMedium: 0,
			domain.PriorityLow:    0,
		},
	}

	now := s.now()
	var oldest *time.Time
	for _, job := range s.jobs {
		switch job.Status {
		case domain.JobStatusPending:
			health.PendingByPriority[job.Priority]++
			if oldest == nil || job.CreatedAt.Before(*oldest) {
				t := job.CreatedAt
				oldest = &t
			}
		case domain.JobStatusInProgress:
			health.ActiveJobIDs = append(health.ActiveJobIDs, job.ID)
		}
	}
	if oldest != nil {
		age := now.Sub(*oldest)
		health.OldestPendingAge = &age
	}
	return health, nil
}

// UpsertSnapshot creates or replaces the snapshot for a job.
func (s *Store) UpsertSnapshot(ctx context.Context, snap *domain.ProgressSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copySnapshot(snap)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = s.now()
	}
	s.snaps[snap.JobID] = cp
	return nil
}

// GetSnapshot retrieves the snapshot for a job.
func (s *Store) GetSnapshot(ctx context.Context, jobID uuid.UUID) (*domain.ProgressSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snaps[jobID]
	if !ok {
		return nil, store.ErrSnapshotNotFound
	}
	if snap.ExpiresAt != nil && !snap.ExpiresAt.After(s.now()) {
		return nil, store.ErrSnapshotNotFound
	}
	return copySnapshot(snap), nil
}

// ExpireSnapshot schedules the snapshot for deletion after the grace period.
func (s *Store) ExpireSnapshot(ctx context.Context, jobID uuid.UUID, grace time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snaps[jobID]
	if !ok {
		return nil
	}
	expires := s.now().Add(grace)
	snap.ExpiresAt = &expires
	return nil
}

// DeleteExpired removes snapshots past their expiry.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	deleted := 0
	for id, snap := range s.snaps {
		if snap.ExpiresAt != nil && !snap.ExpiresAt.After(now) {
			delete(s.snaps, id)
			deleted++
		}
	}
	return deleted, nil
}
