package events

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyricwatch/lyricwatch/internal/domain"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []*JobEvent
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *JobEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func sampleJob() *domain.Job {
	return &domain.Job{
		ID:       uuid.New(),
		Type:     domain.JobTypeBatchItem,
		Priority: domain.PriorityMedium,
	}
}

func TestNewJobEventCarriesJobFields(t *testing.T) {
	job := sampleJob()
	event := NewJobEvent(EventJobInterrupted, job, "cursor=11")

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, EventJobInterrupted, event.Type)
	assert.Equal(t, job.ID, event.JobID)
	assert.Equal(t, job.Type, event.JobType)
	assert.Equal(t, job.Priority, event.Priority)
	assert.Equal(t, "cursor=11", event.Detail)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestEmitEventReachesAllHandlers(t *testing.T) {
	emitter := NewInMemoryEventEmitter(testLogger())
	first := &recordingHandler{}
	second := &recordingHandler{}
	emitter.RegisterHandler(first)
	emitter.RegisterHandler(second)

	event := NewJobEvent(EventJobCompleted, sampleJob(), "")
	require.NoError(t, emitter.EmitEvent(context.Background(), event))

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}

func TestEmitEventContinuesPastFailingHandler(t *testing.T) {
	emitter := NewInMemoryEventEmitter(testLogger())
	failing := &recordingHandler{err: errors.New("handler broken")}
	healthy := &recordingHandler{}
	emitter.RegisterHandler(failing)
	emitter.RegisterHandler(healthy)

	err := emitter.EmitEvent(context.Background(), NewJobEvent(EventJobFailed, sampleJob(), "boom"))
	require.Error(t, err)
	assert.Equal(t, 1, healthy.count(), "later handlers still receive the event")
}

func TestEmitEventWithNoHandlers(t *testing.T) {
	emitter := NewInMemoryEventEmitter(testLogger())
	assert.NoError(t, emitter.EmitEvent(context.Background(), NewJobEvent(EventJobEnqueued, sampleJob(), "")))
}

func TestLogHandler(t *testing.T) {
	handler := NewLogHandler(testLogger())
	assert.NoError(t, handler.HandleEvent(context.Background(), NewJobEvent(EventJobStarted, sampleJob(), "")))
}
