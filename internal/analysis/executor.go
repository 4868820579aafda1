package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lyricwatch/lyricwatch/internal/domain"
)

// Common executor errors.
var (
	ErrNilLyricsProvider = errors.New("lyrics provider cannot be nil")
	ErrNilScorer         = errors.New("content scorer cannot be nil")
	ErrNilLogger         = errors.New("logger cannot be nil")
	ErrEmptyTargetRef    = errors.New("target reference cannot be empty")
)

// Executor implements UnitExecutor by fetching lyrics for a target and
// scoring them. Failures of either collaborator are classified as
// transient unit errors: the worker records them and moves on, and the
// failure-ratio threshold decides whether the job as a whole fails.
type Executor struct {
	lyrics LyricsProvider
	scorer ContentScorer
	logger *slog.Logger
}

// NewExecutor creates an Executor from its collaborators.
func NewExecutor(lyrics LyricsProvider, scorer ContentScorer, logger *slog.Logger) (*Executor, error) {
	if lyrics == nil {
		return nil, ErrNilLyricsProvider
	}
	if scorer == nil {
		return nil, ErrNilScorer
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Executor{
		lyrics: lyrics,
		scorer: scorer,
		logger: logger.With("component", "analysis_executor"),
	}, nil
}

// ExecuteUnit fetches and scores one target. Re-invoking it for the same
// target is safe: both collaborators are read-only from this system's
// point of view.
func (e *Executor) ExecuteUnit(ctx context.Context, target Target, index int) (*UnitResult, error) {
	if target.Ref == "" {
		return nil, &domain.TransientUnitError{
			UnitIndex: index,
			Err:       ErrEmptyTargetRef,
		}
	}

	lyrics, err := e.lyrics.FetchLyrics(ctx, target.Ref)
	if err != nil {
		return nil, &domain.TransientUnitError{
			UnitIndex: index,
			Err:       fmt.Errorf("fetching lyrics for %q: %w", target.Ref, err),
		}
	}

	score, err := e.scorer.ScoreContent(ctx, lyrics)
	if err != nil {
		return nil, &domain.TransientUnitError{
			UnitIndex: index,
			Err:       fmt.Errorf("scoring %q: %w", target.Ref, err),
		}
	}

	e.logger.Debug("unit analyzed",
		"target_ref", target.Ref,
		"unit_index", index,
		"explicit", score.Explicit,
		"score", score.Score)

	return &UnitResult{
		TargetRef:  target.Ref,
		Explicit:   score.Explicit,
		Score:      score.Score,
		Categories: score.Categories,
	}, nil
}
