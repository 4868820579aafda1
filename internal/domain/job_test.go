package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobTypeIsValid(t *testing.T) {
	tests := []struct {
		name    string
		jobType JobType
		valid   bool
	}{
		{"single item", JobTypeSingleItem, true},
		{"batch item", JobTypeBatchItem, true},
		{"background sweep", JobTypeBackgroundSweep, true},
		{"empty", JobType(""), false},
		{"unknown", JobType("reindex"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.jobType.IsValid())
		})
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input    string
		expected Priority
		ok       bool
	}{
		{"high", PriorityHigh, true},
		{"medium", PriorityMedium, true},
		{"low", PriorityLow, true},
		{"urgent", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, ok := ParsePriority(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, p)
				assert.Equal(t, tt.input, p.String())
			}
		})
	}
}

func TestPriorityOrdering(t *testing.T) {
	// Lower numeric value means higher precedence, so the ordering key can
	// be compared directly.
	assert.Less(t, int(PriorityHigh), int(PriorityMedium))
	assert.Less(t, int(PriorityMedium), int(PriorityLow))
}

func TestJobStatusIsTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "expected %s to be terminal", s)
	}

	nonTerminal := []JobStatus{JobStatusPending, JobStatusInProgress, JobStatusInterrupted}
	for _, s := range nonTerminal {
		assert.False(t, s.IsTerminal(), "expected %s to be non-terminal", s)
	}
}

func TestJobStatusPublic(t *testing.T) {
	tests := []struct {
		status   JobStatus
		expected string
	}{
		{JobStatusPending, "queued"},
		{JobStatusInProgress, "running"},
		// Interrupted is transient and self-resolving, so it is always
		// reported externally as running.
		{JobStatusInterrupted, "running"},
		{JobStatusCompleted, "completed"},
		{JobStatusFailed, "failed"},
		{JobStatusCancelled, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.Public())
		})
	}
}

func TestJobRemainingUnits(t *testing.T) {
	t.Run("unknown total", func(t *testing.T) {
		job := &Job{Cursor: 5}
		assert.Nil(t, job.RemainingUnits())
	})

	t.Run("known total", func(t *testing.T) {
		total := 100
		job := &Job{Cursor: 30, Total: &total}
		remaining := job.RemainingUnits()
		assert.NotNil(t, remaining)
		assert.Equal(t, 70, *remaining)
	})

	t.Run("cursor past total clamps to zero", func(t *testing.T) {
		total := 10
		job := &Job{Cursor: 12, Total: &total}
		remaining := job.RemainingUnits()
		assert.NotNil(t, remaining)
		assert.Equal(t, 0, *remaining)
	})
}
