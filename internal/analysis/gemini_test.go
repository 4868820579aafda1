package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/lyricwatch/lyricwatch/internal/config"
)

func TestNewGeminiScorerValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil logger", func(t *testing.T) {
		_, err := NewGeminiScorer(ctx, nil, config.ScoringConfig{
			GeminiAPIKey: "key",
			ModelName:    "gemini-2.0-flash",
		})
		assert.Error(t, err)
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewGeminiScorer(ctx, testLogger(), config.ScoringConfig{
			ModelName: "gemini-2.0-flash",
		})
		assert.ErrorIs(t, err, ErrInvalidScorerConfig)
	})

	t.Run("missing model name", func(t *testing.T) {
		_, err := NewGeminiScorer(ctx, testLogger(), config.ScoringConfig{
			GeminiAPIKey: "key",
		})
		assert.ErrorIs(t, err, ErrInvalidScorerConfig)
	})
}

func TestScoreFromResponse(t *testing.T) {
	verdictResponse := func(parts ...string) *genai.GenerateContentResponse {
		content := &genai.Content{}
		for _, text := range parts {
			content.Parts = append(content.Parts, &genai.Part{Text: text})
		}
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: content}},
		}
	}

	t.Run("valid verdict", func(t *testing.T) {
		resp := verdictResponse(`{"explicit":true,"score":0.9,"categories":["violence"]}`)
		score, err := scoreFromResponse(resp)
		require.NoError(t, err)
		assert.True(t, score.Explicit)
		assert.InDelta(t, 0.9, score.Score, 0.001)
		assert.Equal(t, []string{"violence"}, score.Categories)
	})

	t.Run("verdict split across parts", func(t *testing.T) {
		resp := verdictResponse(`{"explicit":false,`, `"score":0.1,"categories":[]}`)
		score, err := scoreFromResponse(resp)
		require.NoError(t, err)
		assert.False(t, score.Explicit)
	})

	t.Run("nil response", func(t *testing.T) {
		_, err := scoreFromResponse(nil)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := scoreFromResponse(&genai.GenerateContentResponse{})
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("safety block", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}
		_, err := scoreFromResponse(resp)
		assert.ErrorIs(t, err, ErrContentBlocked)
	})

	t.Run("nil content", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{}},
		}
		_, err := scoreFromResponse(resp)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("unparseable text", func(t *testing.T) {
		_, err := scoreFromResponse(verdictResponse("the lyrics seem fine to me"))
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("score out of range", func(t *testing.T) {
		_, err := scoreFromResponse(verdictResponse(`{"explicit":true,"score":1.5,"categories":[]}`))
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})
}
