package analysis

import (
	"context"
	"errors"
	"strings"
)

// Scorer errors. ErrContentBlocked and ErrInvalidResponse are permanent for
// a given lyrics text; transport-level failures are reported as-is and
// treated as transient by callers.
var (
	ErrInvalidScorerConfig = errors.New("invalid scorer configuration")
	ErrContentBlocked      = errors.New("content blocked by safety filters")
	ErrInvalidResponse     = errors.New("invalid scorer response")
	ErrEmptyLyrics         = errors.New("lyrics text cannot be empty")
)

// KeywordScorer is a trivial offline ContentScorer for development and
// tests: it flags lyrics containing any of a fixed word list. Production
// deployments wire GeminiScorer instead.
type KeywordScorer struct {
	words []string
}

// NewKeywordScorer creates a KeywordScorer with a small default word list.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{
		words: []string{"explicit", "violence", "profanity"},
	}
}

// ScoreContent flags lyrics that contain any listed keyword.
func (s *KeywordScorer) ScoreContent(ctx context.Context, lyrics string) (*ContentScore, error) {
	if lyrics == "" {
		return nil, ErrEmptyLyrics
	}

	lower := strings.ToLower(lyrics)
	var hits []string
	for _, word := range s.words {
		if strings.Contains(lower, word) {
			hits = append(hits, word)
		}
	}

	score := &ContentScore{Categories: hits}
	if len(hits) > 0 {
		score.Explicit = true
		score.Score = 0.9
	}
	return score, nil
}
