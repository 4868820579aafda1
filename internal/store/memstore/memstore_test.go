package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyricwatch/lyricwatch/internal/domain"
	"github.com/lyricwatch/lyricwatch/internal/store"
)

// Compile-time interface checks.
var (
	_ store.JobStore      = (*Store)(nil)
	_ store.ProgressStore = (*Store)(nil)
)

func newJob(jobType domain.JobType, priority domain.Priority) *domain.Job {
	return &domain.Job{
		ID:       uuid.New(),
		Type:     jobType,
		Priority: priority,
		Owner:    "tester",
		Status:   domain.JobStatusPending,
	}
}

func TestCreateJobAssignsMonotonicSequence(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := newJob(domain.JobTypeSingleItem, domain.PriorityHigh)
	second := newJob(domain.JobTypeSingleItem, domain.PriorityHigh)

	require.NoError(t, s.CreateJob(ctx, first))
	require.NoError(t, s.CreateJob(ctx, second))

	assert.Less(t, first.EnqueueSeq, second.EnqueueSeq)
}

func TestDequeueOrdersByPriorityThenFIFO(t *testing.T) {
	s := New()
	ctx := context.Background()

	lowA := newJob(domain.JobTypeBackgroundSweep, domain.PriorityLow)
	highA := newJob(domain.JobTypeSingleItem, domain.PriorityHigh)
	highB := newJob(domain.JobTypeSingleItem, domain.PriorityHigh)
	medium := newJob(domain.JobTypeBatchItem, domain.PriorityMedium)

	for _, j := range []*domain.Job{lowA, highA, highB, medium} {
		require.NoError(t, s.CreateJob(ctx, j))
	}

	expected := []uuid.UUID{highA.ID, highB.ID, medium.ID, lowA.ID}
	for _, want := range expected {
		got, err := s.DequeueNextPending(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want, got.ID)
		assert.Equal(t, domain.JobStatusInProgress, got.Status)
		assert.Equal(t, 1, got.AttemptCount)
		assert.NotNil(t, got.StartedAt)
		assert.NotNil(t, got.HeartbeatAt)
	}

	// Queue drained
	got, err := s.DequeueNextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDequeueHasExactlyOneWinner(t *testing.T) {
	s := New()
	ctx := context.Background()

	job := newJob(domain.JobTypeSingleItem, domain.PriorityHigh)
	require.NoError(t, s.CreateJob(ctx, job))

	const racers = 16
	var wg sync.WaitGroup
	winners := make(chan uuid.UUID, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.DequeueNextPending(ctx)
			if err == nil && got != nil {
				winners <- got.ID
			}
		}()
	}
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	assert.Equal(t, 1, count, "exactly one racer must claim the job")
}

func TestRequeueForResumePreservesCursorAndRefreshesSeq(t *testing.T) {
	s := New()
	ctx := context.Background()

	job := newJob(domain.JobTypeBatchItem, domain.PriorityLow)
	require.NoError(t, s.CreateJob(ctx, job))

	claimed, err := s.DequeueNextPending(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AdvanceCursor(ctx, claimed.ID, 11, 0))
	require.NoError(t, s.MarkStatus(ctx, claimed.ID, domain.JobStatusInterrupted, ""))
	require.NoError(t, s.RequeueForResume(ctx, claimed.ID, claimed.Priority))

	resumed, err := s.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, resumed.Status)
	assert.Equal(t, 11, resumed.Cursor)
	assert.Greater(t, resumed.EnqueueSeq, claimed.EnqueueSeq,
		"requeued job must lose queue-position seniority")
}

func TestRequeueForResumeCanElevatePriority(t *testing.T) {
	s := New()
	ctx := context.Background()

	job := newJob(domain.JobTypeBatchItem, domain.PriorityLow)
	require.NoError(t, s.CreateJob(ctx, job))
	_, err := s.DequeueNextPending(ctx)
	require.NoError(t, err)

	require.NoError(t, s.RequeueForResume(ctx, job.ID, domain.PriorityHigh))

	resumed, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, resumed.Priority)
}

func TestAdvanceCursorNeverDecreases(t *testing.T) {
	s := New()
	ctx := context.Background()

	job := newJob(domain.JobTypeBatchItem, domain.PriorityMedium)
	require.NoError(t, s.CreateJob(ctx, job))

	require.NoError(t, s.AdvanceCursor(ctx, job.ID, 5, 1))
	err := s.AdvanceCursor(ctx, job.ID, 4, 1)
	assert.ErrorIs(t, err, store.ErrUpdateFailed)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Cursor)
	assert.Equal(t, 1, got.FailedUnitCount)
}

func TestRequestCancelPendingAndInProgress(t *testing.T) {
	s := New()
	ctx := context.Background()

	pending := newJob(domain.JobTypeSingleItem, domain.PriorityHigh)
	running := newJob(domain.JobTypeSingleItem, domain.PriorityHigh)
	require.NoError(t, s.CreateJob(ctx, running))
	_, err := s.DequeueNextPending(ctx)
	require.NoError(t, err)
	require.NoError(t, s.CreateJob(ctx, pending))

	// Pending job is cancelled outright.
	ok, err := s.RequestCancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := s.GetJob(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, got.Status)

	// In-progress job only gets the cooperative flag.
	ok, err = s.RequestCancel(ctx, running.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = s.GetJob(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusInProgress, got.Status)
	assert.True(t, got.CancelRequested)

	// Terminal and unknown jobs report false.
	require.NoError(t, s.MarkStatus(ctx, running.ID, domain.JobStatusCancelled, ""))
	ok, err = s.RequestCancel(ctx, running.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.RequestCancel(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasHigherPriorityPending(t *testing.T) {
	s := New()
	ctx := context.Background()

	low := newJob(domain.JobTypeBackgroundSweep, domain.PriorityLow)
	require.NoError(t, s.CreateJob(ctx, low))

	yield, err := s.HasHigherPriorityPending(ctx, domain.PriorityLow)
	require.NoError(t, err)
	assert.False(t, yield, "equal priority must not preempt")

	high := newJob(domain.JobTypeSingleItem, domain.PriorityHigh)
	require.NoError(t, s.CreateJob(ctx, high))

	yield, err = s.HasHigherPriorityPending(ctx, domain.PriorityLow)
	require.NoError(t, err)
	assert.True(t, yield)

	yield, err = s.HasHigherPriorityPending(ctx, domain.PriorityHigh)
	require.NoError(t, err)
	assert.False(t, yield)
}

func TestRequeueOrphansUsesHeartbeatAge(t *testing.T) {
	s := New()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	job := newJob(domain.JobTypeBatchItem, domain.PriorityMedium)
	require.NoError(t, s.CreateJob(ctx, job))
	claimed, err := s.DequeueNextPending(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AdvanceCursor(ctx, claimed.ID, 3, 0))

	// Heartbeat is fresh: nothing to recover.
	n, err := s.RequeueOrphans(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Age the heartbeat past the staleness bound.
	now = now.Add(30 * time.Second)
	n, err = s.RequeueOrphans(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recovered, err := s.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, recovered.Status)
	assert.Equal(t, 3, recovered.Cursor, "orphan recovery must resume from the persisted cursor")
}

func TestQueueHealth(t *testing.T) {
	s := New()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	oldLow := newJob(domain.JobTypeBackgroundSweep, domain.PriorityLow)
	require.NoError(t, s.CreateJob(ctx, oldLow))

	now = now.Add(45 * time.Second)
	high := newJob(domain.JobTypeSingleItem, domain.PriorityHigh)
	require.NoError(t, s.CreateJob(ctx, high))

	active, err := s.DequeueNextPending(ctx)
	require.NoError(t, err)
	require.Equal(t, high.ID, active.ID)

	health, err := s.QueueHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, health.PendingByPriority[domain.PriorityHigh])
	assert.Equal(t, 0, health.PendingByPriority[domain.PriorityMedium])
	assert.Equal(t, 1, health.PendingByPriority[domain.PriorityLow])
	require.NotNil(t, health.OldestPendingAge)
	assert.Equal(t, 45*time.Second, *health.OldestPendingAge)
	assert.Equal(t, []uuid.UUID{high.ID}, health.ActiveJobIDs)
}

func TestSnapshotLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	jobID := uuid.New()
	total := 40
	pct := 25.0
	snap := &domain.ProgressSnapshot{
		JobID:            jobID,
		Current:          10,
		Total:            &total,
		Percentage:       &pct,
		CurrentItemLabel: "track-10",
	}
	require.NoError(t, s.UpsertSnapshot(ctx, snap))

	got, err := s.GetSnapshot(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Current)
	assert.Equal(t, "track-10", got.CurrentItemLabel)

	// Repeated reads with no intervening writes return identical values.
	again, err := s.GetSnapshot(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	// Terminal grace period, then TTL reaping.
	require.NoError(t, s.ExpireSnapshot(ctx, jobID, time.Minute))
	_, err = s.GetSnapshot(ctx, jobID)
	require.NoError(t, err, "snapshot readable during the grace period")

	now = now.Add(2 * time.Minute)
	_, err = s.GetSnapshot(ctx, jobID)
	assert.ErrorIs(t, err, store.ErrSnapshotNotFound)

	deleted, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestGetSnapshotUnknownJob(t *testing.T) {
	s := New()
	_, err := s.GetSnapshot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrSnapshotNotFound)
}
