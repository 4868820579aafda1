package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal required settings not covered by defaults
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LYRICWATCH_DATABASE_URL", "postgres://localhost:5432/lyricwatch")
	t.Setenv("LYRICWATCH_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 2, cfg.Worker.Count)
	assert.Equal(t, 5*time.Second, cfg.Worker.HeartbeatInterval)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.InDelta(t, 0.1, cfg.Worker.FailureRatio, 1e-9)
	assert.Equal(t, 20, cfg.Worker.ETAWindow)
	assert.Equal(t, time.Second, cfg.Poller.FastInterval)
	assert.Equal(t, 10*time.Second, cfg.Poller.WarmupWindow)
	assert.Equal(t, 5, cfg.Poller.MaxConsecutiveErrors)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LYRICWATCH_SERVER_PORT", "9090")
	t.Setenv("LYRICWATCH_SERVER_LOG_LEVEL", "debug")
	t.Setenv("LYRICWATCH_WORKER_COUNT", "4")
	t.Setenv("LYRICWATCH_WORKER_JOB_TIMEOUT", "45m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, 45*time.Minute, cfg.Worker.JobTimeout)
}

func TestLoadRejectsMissingDatabaseURL(t *testing.T) {
	t.Setenv("LYRICWATCH_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadRejectsShortJWTSecret(t *testing.T) {
	t.Setenv("LYRICWATCH_DATABASE_URL", "postgres://localhost:5432/lyricwatch")
	t.Setenv("LYRICWATCH_AUTH_JWT_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LYRICWATCH_SERVER_LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
}
