package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/lyricwatch/lyricwatch/internal/config"
)

// scorePromptTemplate instructs the model to return a strict JSON verdict.
const scorePromptTemplate = `You are a content moderation assistant for a music catalog.
Analyze the following song lyrics for explicit content (profanity, violence,
sexual content, substance abuse). Respond with ONLY a JSON object of the form
{"explicit": bool, "score": number between 0 and 1, "categories": [strings]}.

Lyrics:
{{.Lyrics}}`

// promptData carries the template inputs.
type promptData struct {
	Lyrics string
}

// GeminiScorer implements the ContentScorer interface using Google's
// Gemini API to score lyrics for explicit content.
type GeminiScorer struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains scoring-specific configuration
	config config.ScoringConfig

	// promptTemplate is the parsed template for creating prompts
	promptTemplate *template.Template

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string
}

// NewGeminiScorer creates a new GeminiScorer with the provided dependencies.
func NewGeminiScorer(ctx context.Context, logger *slog.Logger, cfg config.ScoringConfig) (*GeminiScorer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidScorerConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidScorerConfig)
	}

	promptTemplate, err := template.New("score").Parse(scorePromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidScorerConfig, err)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidScorerConfig, err)
	}

	return &GeminiScorer{
		logger:         logger.With("component", "gemini_scorer"),
		config:         cfg,
		promptTemplate: promptTemplate,
		client:         client,
		model:          cfg.ModelName,
	}, nil
}

// ScoreContent evaluates lyrics text, retrying transient API failures with
// exponential backoff. Permanent failures (safety blocks, unparseable
// responses) are returned immediately without retrying.
func (g *GeminiScorer) ScoreContent(ctx context.Context, lyrics string) (*ContentScore, error) {
	if lyrics == "" {
		return nil, ErrEmptyLyrics
	}

	prompt, err := g.createPrompt(lyrics)
	if err != nil {
		return nil, err
	}

	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	baseDelaySeconds := g.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		score, transient, err := g.callGemini(ctx, prompt)
		if err == nil {
			return score, nil
		}
		lastErr = err

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1,
			"transient", transient,
			"error", err)

		if !transient {
			return nil, err
		}
		if attempt == maxRetries {
			break
		}

		// Exponential backoff with jitter
		delay := time.Duration(float64(baseDelaySeconds)*math.Pow(2, float64(attempt))) * time.Second
		delay += time.Duration(rng.Int63n(int64(time.Second)))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("gemini scoring failed after %d attempts: %w", maxRetries+1, lastErr)
}

// createPrompt renders the scoring prompt for the given lyrics.
func (g *GeminiScorer) createPrompt(lyrics string) (string, error) {
	var buf bytes.Buffer
	if err := g.promptTemplate.Execute(&buf, promptData{Lyrics: lyrics}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callGemini makes a single API call. The second return value reports
// whether a failure is transient and worth retrying.
func (g *GeminiScorer) callGemini(ctx context.Context, prompt string) (*ContentScore, bool, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		// Transport-level errors are assumed transient.
		return nil, true, fmt.Errorf("gemini API call error: %w", err)
	}

	score, err := scoreFromResponse(resp)
	if err != nil {
		return nil, false, err
	}
	return score, false, nil
}

// scoreFromResponse extracts and validates the JSON verdict from a model
// response. Safety blocks, empty responses and out-of-range scores are all
// permanent failures.
func scoreFromResponse(resp *genai.GenerateContentResponse) (*ContentScore, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, ErrContentBlocked
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}

	var text string
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text += part.Text
		}
	}

	var score ContentScore
	if err := json.Unmarshal([]byte(text), &score); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", ErrInvalidResponse, err)
	}
	if score.Score < 0 || score.Score > 1 {
		return nil, fmt.Errorf("%w: score %f outside [0,1]", ErrInvalidResponse, score.Score)
	}
	return &score, nil
}
