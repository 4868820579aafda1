package analysis

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyricwatch/lyricwatch/internal/domain"
)

type fakeLyricsProvider struct {
	lyrics map[string]string
	err    error
	calls  int
}

func (p *fakeLyricsProvider) FetchLyrics(ctx context.Context, ref string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	text, ok := p.lyrics[ref]
	if !ok {
		return "", ErrLyricsNotFound
	}
	return text, nil
}

type fakeScorer struct {
	score *ContentScore
	err   error
}

func (s *fakeScorer) ScoreContent(ctx context.Context, lyrics string) (*ContentScore, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.score, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewExecutorValidatesDependencies(t *testing.T) {
	lyrics := &fakeLyricsProvider{}
	scorer := &fakeScorer{}
	logger := testLogger()

	_, err := NewExecutor(nil, scorer, logger)
	assert.ErrorIs(t, err, ErrNilLyricsProvider)

	_, err = NewExecutor(lyrics, nil, logger)
	assert.ErrorIs(t, err, ErrNilScorer)

	_, err = NewExecutor(lyrics, scorer, nil)
	assert.ErrorIs(t, err, ErrNilLogger)

	exec, err := NewExecutor(lyrics, scorer, logger)
	require.NoError(t, err)
	assert.NotNil(t, exec)
}

func TestExecuteUnitSuccess(t *testing.T) {
	lyrics := &fakeLyricsProvider{lyrics: map[string]string{"trk-1": "some clean lyrics"}}
	scorer := &fakeScorer{score: &ContentScore{Explicit: true, Score: 0.83, Categories: []string{"profanity"}}}
	exec, err := NewExecutor(lyrics, scorer, testLogger())
	require.NoError(t, err)

	result, err := exec.ExecuteUnit(context.Background(), Target{Ref: "trk-1", Label: "Song"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "trk-1", result.TargetRef)
	assert.True(t, result.Explicit)
	assert.InDelta(t, 0.83, result.Score, 1e-9)
	assert.Equal(t, []string{"profanity"}, result.Categories)
}

func TestExecuteUnitClassifiesFailuresAsTransient(t *testing.T) {
	t.Run("lyrics failure", func(t *testing.T) {
		lyrics := &fakeLyricsProvider{err: errors.New("service unavailable")}
		exec, err := NewExecutor(lyrics, &fakeScorer{score: &ContentScore{}}, testLogger())
		require.NoError(t, err)

		_, err = exec.ExecuteUnit(context.Background(), Target{Ref: "trk-1"}, 4)
		require.Error(t, err)

		var transient *domain.TransientUnitError
		require.ErrorAs(t, err, &transient)
		assert.Equal(t, 4, transient.UnitIndex)
		assert.False(t, domain.IsFatalJobError(err))
	})

	t.Run("scorer failure", func(t *testing.T) {
		lyrics := &fakeLyricsProvider{lyrics: map[string]string{"trk-1": "text"}}
		exec, err := NewExecutor(lyrics, &fakeScorer{err: errors.New("quota exceeded")}, testLogger())
		require.NoError(t, err)

		_, err = exec.ExecuteUnit(context.Background(), Target{Ref: "trk-1"}, 9)
		var transient *domain.TransientUnitError
		require.ErrorAs(t, err, &transient)
		assert.Equal(t, 9, transient.UnitIndex)
	})

	t.Run("empty target ref", func(t *testing.T) {
		exec, err := NewExecutor(&fakeLyricsProvider{}, &fakeScorer{score: &ContentScore{}}, testLogger())
		require.NoError(t, err)

		_, err = exec.ExecuteUnit(context.Background(), Target{}, 0)
		var transient *domain.TransientUnitError
		require.ErrorAs(t, err, &transient)
		assert.ErrorIs(t, err, ErrEmptyTargetRef)
	})
}

func TestExecuteUnitIsReinvokable(t *testing.T) {
	// Re-running the same unit, as a resume after interruption does, must
	// be safe and yield the same outcome.
	lyrics := &fakeLyricsProvider{lyrics: map[string]string{"trk-1": "text"}}
	scorer := &fakeScorer{score: &ContentScore{Score: 0.2}}
	exec, err := NewExecutor(lyrics, scorer, testLogger())
	require.NoError(t, err)

	first, err := exec.ExecuteUnit(context.Background(), Target{Ref: "trk-1"}, 3)
	require.NoError(t, err)
	second, err := exec.ExecuteUnit(context.Background(), Target{Ref: "trk-1"}, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, lyrics.calls)
}
