package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ServiceName tags every record written by the server loggers
const ServiceName = "food-emissions"

// parseLogLevel converts a string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo // Default to INFO if invalid/empty
	}
}

// GetLogLevel returns the log level from LOG_LEVEL environment variable
// Defaults to INFO if not set or invalid
func GetLogLevel() slog.Level {
	return parseLogLevel(os.Getenv("LOG_LEVEL"))
}

// NewLogger creates the server logger: JSON to stdout in HTTP mode,
// text to stderr in stdio mode
func NewLogger(isStdioMode bool) *slog.Logger {
	level := GetLogLevel()

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if isStdioMode {
		// stdout carries the MCP protocol in stdio mode
		return slog.New(slog.NewTextHandler(os.Stderr, opts)).With("service", ServiceName)
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)).With("service", ServiceName)
}

// NewTextLogger creates a text-based logger with the configured log level
// Used by the fetch and calculate commands
func NewTextLogger(output io.Writer) *slog.Logger {
	level := GetLogLevel()

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewTextHandler(output, opts))
}

// NewTestLogger creates a logger for testing with configurable level and output
// If level is empty, uses LOG_LEVEL environment variable
func NewTestLogger(output io.Writer, level string) *slog.Logger {
	var logLevel slog.Level
	if level == "" {
		logLevel = GetLogLevel()
	} else {
		logLevel = parseLogLevel(level)
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	return slog.New(slog.NewTextHandler(output, opts))
}
