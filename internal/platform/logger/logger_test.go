package logger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := logger.ParseLevel(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

// Setup replaces the slog default, so these tests do not run in parallel.
func TestSetupWithWriter(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &logger.TestLogBuffer{}
	l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "warn"}, buf)
	require.NoError(t, err)
	require.NotNil(t, l)

	l.Info("hidden")
	l.Warn("shown", slog.String("component", "test"))

	assert.NotContains(t, buf.String(), "hidden")
	logger.AssertLogField(t, buf, "msg", "shown")
	logger.AssertLogField(t, buf, "component", "test")
	assert.Same(t, l, slog.Default())
}

func TestSetupWithInvalidLevel(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &logger.TestLogBuffer{}
	l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "loud"}, buf)
	require.NoError(t, err)
	logger.AssertLogContains(t, buf, "invalid log level configured")
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))

	_, err = logger.SetupWithWriter(config.ServerConfig{}, nil)
	assert.Error(t, err)
}

func TestFromContextOrDefault(t *testing.T) {
	t.Parallel()
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	custom := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		ctx      context.Context
		expected *slog.Logger
	}{
		{"nil_context_returns_default", nil, fallback},
		{"context_without_logger_returns_default", context.Background(), fallback},
		{"context_with_logger_returns_context_logger", logger.WithLogger(context.Background(), custom), custom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Same(t, tt.expected, logger.FromContextOrDefault(tt.ctx, fallback))
		})
	}
}

func TestWithLogger(t *testing.T) {
	t.Parallel()

	t.Run("valid_logger", func(t *testing.T) {
		t.Parallel()
		custom := slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx := logger.WithLogger(context.Background(), custom)
		assert.Same(t, custom, logger.FromContext(ctx))
	})

	t.Run("nil_logger_panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			logger.WithLogger(context.Background(), nil)
		})
	})
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	ctx := logger.WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", logger.RequestIDFromContext(ctx))
	assert.Empty(t, logger.RequestIDFromContext(context.Background()))
}
