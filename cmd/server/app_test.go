package main

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyricwatch/lyricwatch/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:     8080,
			LogLevel: "info",
		},
		Database: config.DatabaseConfig{
			URL: "postgres://localhost:5432/lyricwatch",
		},
		Auth: config.AuthConfig{
			JWTSecret: "0123456789abcdef0123456789abcdef",
		},
		Worker: config.WorkerConfig{
			Count:             2,
			IdlePollInterval:  time.Second,
			HeartbeatInterval: 5 * time.Second,
			JobTimeout:        30 * time.Minute,
			MaxAttempts:       3,
			FailureRatio:      0.1,
			ETAWindow:         20,
			SnapshotGrace:     10 * time.Minute,
			RecoveryInterval:  30 * time.Second,
		},
		Poller: config.PollerConfig{
			FastInterval:         time.Second,
			MediumInterval:       3 * time.Second,
			SlowInterval:         10 * time.Second,
			WarmupWindow:         10 * time.Second,
			BackoffFactor:        2.0,
			MaxInterval:          time.Minute,
			MaxConsecutiveErrors: 5,
		},
		Scoring: config.ScoringConfig{
			LyricsBaseURL: "http://localhost:9090",
		},
	}
}

func TestNewApplicationWiresDependencies(t *testing.T) {
	cfg := testConfig()
	app, err := newApplication(context.Background(), cfg, slog.Default(), &sql.DB{})
	require.NoError(t, err)

	assert.NotNil(t, app.jobStore)
	assert.NotNil(t, app.progressStore)
	assert.NotNil(t, app.jwtService)
	assert.NotNil(t, app.eventEmitter)
	assert.NotNil(t, app.jobQueue)
	assert.NotNil(t, app.analysisService)
	assert.NotNil(t, app.recovery)
	assert.NotNil(t, app.reaper)
	assert.Len(t, app.workers, cfg.Worker.Count)
}

func TestNewApplicationRequiresLyricsBaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.Scoring.LyricsBaseURL = ""

	_, err := newApplication(context.Background(), cfg, slog.Default(), &sql.DB{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lyrics_base_url")
}

func TestNewApplicationRejectsShortJWTSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "too-short"

	_, err := newApplication(context.Background(), cfg, slog.Default(), &sql.DB{})
	assert.Error(t, err)
}

func TestSetupRouter(t *testing.T) {
	cfg := testConfig()
	app, err := newApplication(context.Background(), cfg, slog.Default(), &sql.DB{})
	require.NoError(t, err)

	assert.NotNil(t, app.setupRouter())
}
