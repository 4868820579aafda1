// Package progress derives percentage and time-remaining estimates from
// raw unit counters.
package progress

import (
	"time"

	"github.com/google/uuid"
	"github.com/lyricwatch/lyricwatch/internal/domain"
)

// minSamplesForETA is the number of completed units required before an ETA
// is reported. Below this the estimate would be a misleading extrapolation,
// so it is reported as unavailable instead.
const minSamplesForETA = 3

// DefaultWindow is the default number of recent unit durations the rolling
// average uses.
const DefaultWindow = 20

// Calculator tracks recent per-unit durations for one job and derives
// percentage and ETA values. The rolling window (rather than a whole-job
// average) lets the estimate adapt to changing per-unit cost, e.g. cache
// hits versus cold external calls.
//
// Not safe for concurrent use; each running job owns one Calculator.
type Calculator struct {
	window    []time.Duration
	maxWindow int
	completed int
}

// NewCalculator creates a Calculator with the given rolling window size.
// A non-positive size falls back to DefaultWindow.
func NewCalculator(windowSize int) *Calculator {
	if windowSize <= 0 {
		windowSize = DefaultWindow
	}
	return &Calculator{
		window:    make([]time.Duration, 0, windowSize),
		maxWindow: windowSize,
	}
}

// RecordUnit adds one completed unit's duration to the rolling window.
func (c *Calculator) RecordUnit(d time.Duration) {
	c.completed++
	if len(c.window) == c.maxWindow {
		copy(c.window, c.window[1:])
		c.window[len(c.window)-1] = d
		return
	}
	c.window = append(c.window, d)
}

// CompletedUnits returns the number of units recorded so far.
func (c *Calculator) CompletedUnits() int {
	return c.completed
}

// Percentage returns current/total clamped to [0, 100], or nil when the
// total is unknown (open-ended sweeps report only a raw count). A zero
// total means there is nothing to do, which is 100% done; no division is
// performed.
func Percentage(current int, total *int) *float64 {
	if total == nil {
		return nil
	}
	var pct float64
	if *total == 0 {
		pct = 100
	} else {
		pct = float64(current) / float64(*total) * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
	}
	return &pct
}

// ETASeconds estimates seconds remaining as remaining_units times the
// rolling average unit duration. It returns nil when the total is unknown
// or fewer than three units have completed. A zero total reports an
// immediate zero.
func (c *Calculator) ETASeconds(current int, total *int) *float64 {
	if total == nil {
		return nil
	}
	if *total == 0 {
		zero := 0.0
		return &zero
	}
	if c.completed < minSamplesForETA || len(c.window) == 0 {
		return nil
	}

	var sum time.Duration
	for _, d := range c.window {
		sum += d
	}
	avg := sum / time.Duration(len(c.window))

	remaining := *total - current
	if remaining < 0 {
		remaining = 0
	}
	eta := float64(remaining) * avg.Seconds()
	return &eta
}

// Snapshot builds a ProgressSnapshot for the given counters using the
// calculator's current window.
func (c *Calculator) Snapshot(jobID uuid.UUID, current int, total *int, label string) *domain.ProgressSnapshot {
	return &domain.ProgressSnapshot{
		JobID:            jobID,
		Current:          current,
		Total:            total,
		Percentage:       Percentage(current, total),
		ETASeconds:       c.ETASeconds(current, total),
		CurrentItemLabel: label,
		UpdatedAt:        time.Now().UTC(),
	}
}
