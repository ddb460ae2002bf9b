package config

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"  ", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level "+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	assert.Equal(t, slog.LevelWarn, GetLogLevel())

	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, slog.LevelInfo, GetLogLevel())
}

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")

	assert.NotNil(t, NewLogger(true))
	assert.NotNil(t, NewLogger(false))
	assert.True(t, NewLogger(false).Enabled(context.Background(), slog.LevelDebug))
}

func TestNewTextLogger_RespectsLogLevel(t *testing.T) {
	tests := []struct {
		level  string
		logged map[string]bool
	}{
		{"DEBUG", map[string]bool{"debug": true, "info": true, "warn": true, "error": true}},
		{"INFO", map[string]bool{"debug": false, "info": true, "warn": true, "error": true}},
		{"WARN", map[string]bool{"debug": false, "info": false, "warn": true, "error": true}},
		{"ERROR", map[string]bool{"debug": false, "info": false, "warn": false, "error": true}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)

			var buf bytes.Buffer
			logger := NewTextLogger(&buf)
			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")

			for level, shouldLog := range tt.logged {
				if shouldLog {
					assert.Contains(t, buf.String(), level+" message")
				} else {
					assert.NotContains(t, buf.String(), level+" message")
				}
			}
		})
	}
}

func TestNewTestLogger(t *testing.T) {
	t.Run("explicit level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewTestLogger(&buf, "ERROR")
		logger.Debug("debug message")
		logger.Error("error message")

		assert.NotContains(t, buf.String(), "debug message")
		assert.Contains(t, buf.String(), "error message")
	})

	t.Run("empty level falls back to LOG_LEVEL", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "DEBUG")

		var buf bytes.Buffer
		NewTestLogger(&buf, "").Debug("debug message")
		assert.Contains(t, buf.String(), "debug message")
	})
}
