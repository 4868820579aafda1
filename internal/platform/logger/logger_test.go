package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupParsesLevels(t *testing.T) {
	tests := []struct {
		level string
	}{
		{"debug"},
		{"info"},
		{"warn"},
		{"error"},
		{"WARN"}, // case-insensitive
		{"bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log, err := Setup(tt.level)
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestWithLoggerAndFromContext(t *testing.T) {
	base := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "test")
	ctx := WithLogger(context.Background(), base)

	assert.Same(t, base, FromContext(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestFromContextOrDefault(t *testing.T) {
	def := slog.New(slog.NewTextHandler(os.Stderr, nil))

	t.Run("empty context returns provided default", func(t *testing.T) {
		assert.Same(t, def, FromContextOrDefault(context.Background(), def))
	})

	t.Run("context logger wins", func(t *testing.T) {
		stored := slog.New(slog.NewTextHandler(os.Stderr, nil))
		ctx := WithLogger(context.Background(), stored)
		assert.Same(t, stored, FromContextOrDefault(ctx, def))
	})
}
