// Package poller implements the client-side tracking loop for a job. It
// adapts its polling interval to the job's phase (fast at the start, slow
// near the end, always slow for open-ended background work), backs off on
// transport failures and guarantees exactly one terminal callback per
// tracked job.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lyricwatch/lyricwatch/internal/config"
	"github.com/lyricwatch/lyricwatch/internal/domain"
)

// ErrUntrackable is returned when tracking gave up after too many
// consecutive transport failures. The job itself may still be running.
var ErrUntrackable = errors.New("job status is untrackable")

// Status is one observed snapshot of a tracked job.
type Status struct {
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

// StatusSource fetches the current status of a job, typically over HTTP
// from the progress endpoint.
type StatusSource interface {
	JobStatus(ctx context.Context, jobID uuid.UUID) (*Status, error)
}

// Outcome is the reason tracking ended.
type Outcome string

// Tracking outcomes. OutcomeUntrackable means the poller lost contact, not
// that the job failed.
const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeFailed      Outcome = "failed"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeUntrackable Outcome = "untrackable"
)

// Callbacks receive tracking updates. Nil callbacks are skipped.
// OnTerminal is invoked exactly once per Track call that reaches an
// outcome; cancellation through the context invokes neither.
type Callbacks struct {
	OnProgress func(*Status)
	OnTerminal func(Outcome, *Status)
}

// Poller tracks jobs against a StatusSource.
type Poller struct {
	source StatusSource
	cfg    config.PollerConfig
	logger *slog.Logger
}

// New creates a Poller.
func New(source StatusSource, cfg config.PollerConfig, logger *slog.Logger) *Poller {
	return &Poller{
		source: source,
		cfg:    cfg,
		logger: logger.With("component", "poller"),
	}
}

// Track polls the job until it reaches a terminal state, tracking is
// abandoned as untrackable, or the context is cancelled. It blocks for the
// lifetime of the tracking loop; run it in its own goroutine when the
// caller has other work.
func (p *Poller) Track(ctx context.Context, jobID uuid.UUID, cb Callbacks) error {
	log := p.logger.With("job_id", jobID)
	start := time.Now()
	interval := p.cfg.FastInterval
	consecutiveErrors := 0

	for {
		status, err := p.source.JobStatus(ctx, jobID)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()

		case err != nil:
			consecutiveErrors++
			if consecutiveErrors >= p.cfg.MaxConsecutiveErrors {
				log.Warn("giving up on job tracking", "consecutive_errors", consecutiveErrors, "error", err)
				if cb.OnTerminal != nil {
					cb.OnTerminal(OutcomeUntrackable, nil)
				}
				return fmt.Errorf("%w: %d consecutive failures, last: %v",
					ErrUntrackable, consecutiveErrors, err)
			}
			interval = p.backoff(interval)
			log.Debug("status poll failed, backing off", "error", err, "next_interval", interval)

		default:
			consecutiveErrors = 0
			if outcome, terminal := outcomeFor(status.State); terminal {
				if cb.OnTerminal != nil {
					cb.OnTerminal(outcome, status)
				}
				return nil
			}
			if cb.OnProgress != nil {
				cb.OnProgress(status)
			}
			interval = p.intervalFor(status, start)
		}

		if !sleep(ctx, interval) {
			return ctx.Err()
		}
	}
}

// intervalFor picks the next polling interval from the job's phase.
// Background sweeps are always polled slowly: they are long-lived and
// nobody is watching a spinner. Interactive jobs poll fast during the
// warmup window and while early progress comes in, then relax as the job
// approaches completion. An unknown percentage outside a sweep settles on
// the medium interval.
func (p *Poller) intervalFor(status *Status, start time.Time) time.Duration {
	if status.JobType == domain.JobTypeBackgroundSweep {
		return p.cfg.SlowInterval
	}
	if time.Since(start) < p.cfg.WarmupWindow {
		return p.cfg.FastInterval
	}
	if status.Percentage == nil {
		return p.cfg.MediumInterval
	}
	switch pct := *status.Percentage; {
	case pct < 10:
		return p.cfg.FastInterval
	case pct < 90:
		return p.cfg.MediumInterval
	default:
		return p.cfg.SlowInterval
	}
}

// backoff grows the interval by the configured factor, capped at the
// maximum.
func (p *Poller) backoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * p.cfg.BackoffFactor)
	if next > p.cfg.MaxInterval {
		next = p.cfg.MaxInterval
	}
	return next
}

func outcomeFor(state string) (Outcome, bool) {
	switch state {
	case string(domain.JobStatusCompleted):
		return OutcomeCompleted, true
	case string(domain.JobStatusFailed):
		return OutcomeFailed, true
	case string(domain.JobStatusCancelled):
		return OutcomeCancelled, true
	}
	return "", false
}

// sleep waits for d or until the context is cancelled, reporting false on
// cancellation so the caller releases its timer promptly.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
