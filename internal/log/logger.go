// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides structured logging for the journey runtime core.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format represents the log output format.
type Format string

const (
	// FormatJSON outputs logs in JSON format for machine parsing.
	FormatJSON Format = "json"
	// FormatText outputs logs in human-readable text format.
	FormatText Format = "text"
)

// LevelTrace is more verbose than Debug; used for wire-level detail such as
// bridge envelopes and API client request/response bodies.
const LevelTrace = slog.Level(-8)

// Standard field keys for structured logging. Keeping these as constants
// ensures every subsystem spells a given concept the same way.
const (
	// JourneyIDKey is the field key for the journey identifier.
	JourneyIDKey = "journey_id"
	// StepIDKey is the field key for the current step identifier.
	StepIDKey = "step_id"
	// CorrelationIDKey is the field key for the session correlation identifier.
	CorrelationIDKey = "correlation_id"
	// OperationIDKey is the field key for an OpenAPI operation identifier.
	OperationIDKey = "operation_id"
	// EventKey is the field key for bridge/state-machine event names.
	EventKey = "event"
	// DurationKey is the field key for duration in milliseconds.
	DurationKey = "duration_ms"
)

// Config holds the logging configuration.
type Config struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format sets the output format (json, text).
	Format Format

	// Output is the writer for log output. Defaults to os.Stderr.
	Output io.Writer

	// AddSource adds source file and line information to logs.
	AddSource bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:     "info",
		Format:    FormatJSON,
		Output:    os.Stderr,
		AddSource: false,
	}
}

// FromEnv creates a Config from environment variables.
//
// Supported environment variables:
//   - JOURNEYCORE_DEBUG: true/1 enables debug level and source logging (takes precedence)
//   - JOURNEYCORE_LOG_LEVEL: trace, debug, info, warn, error (takes precedence over LOG_LEVEL)
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, text (default: json)
//   - LOG_SOURCE: 1 enables source file/line (default: 0)
func FromEnv() *Config {
	cfg := DefaultConfig()

	debug := os.Getenv("JOURNEYCORE_DEBUG")
	if debug == "true" || debug == "1" {
		cfg.Level = "debug"
		cfg.AddSource = true
	}

	if debug == "" {
		if level := os.Getenv("JOURNEYCORE_LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		} else if level := os.Getenv("LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		}
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}

	if os.Getenv("LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}

	return cfg
}

// New creates a new structured logger from the given configuration.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(cfg.Output, opts)
	case FormatJSON:
		fallthrough
	default:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithCorrelationID returns a logger annotated with the session correlation ID.
// Every emitted event in the runtime carries this identifier (§3 Session).
func WithCorrelationID(logger *slog.Logger, correlationID string) *slog.Logger {
	return logger.With(slog.String(CorrelationIDKey, correlationID))
}

// WithJourney returns a logger annotated with the journey identifier.
func WithJourney(logger *slog.Logger, journeyID string) *slog.Logger {
	return logger.With(slog.String(JourneyIDKey, journeyID))
}

// WithStep returns a logger annotated with the current step identifier.
func WithStep(logger *slog.Logger, journeyID, stepID string) *slog.Logger {
	return logger.With(
		slog.String(JourneyIDKey, journeyID),
		slog.String(StepIDKey, stepID),
	)
}

// WithOperation returns a logger annotated with an OpenAPI operation identifier.
func WithOperation(logger *slog.Logger, operationID string) *slog.Logger {
	return logger.With(slog.String(OperationIDKey, operationID))
}

// SanitizeToken masks a bearer token, showing only the last 4 characters.
// Used when logging the manifest loader's Authorization header and the
// session's contextToken.
func SanitizeToken(token string) string {
	if len(token) <= 4 {
		return "[REDACTED]"
	}
	return "..." + token[len(token)-4:]
}

// Trace logs a message at trace level. Used for bridge envelope bodies and
// raw API client wire data that should never appear at info/debug level.
func Trace(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if !logger.Enabled(nil, LevelTrace) {
		return
	}
	logger.LogAttrs(nil, LevelTrace, msg, attrs...)
}
