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

// Package log builds the slog loggers used across cortensor.
//
// Loggers write JSON by default. Attributes that carry credentials are
// masked by the handler itself, so a stray slog.String("api_key", k)
// never prints the key.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// LevelTrace sits below debug; request bodies are logged here.
const LevelTrace = slog.Level(-8)

// Attribute keys shared by the dispatcher, the server and the CLI.
const (
	CorrelationIDKey = "correlation_id"
	ComponentKey     = "component"
	URLKey           = "url"
	DurationKey      = "duration_ms"
)

// maskedKeys are attribute keys whose string values are masked with
// SanitizeAPIKey.
var maskedKeys = map[string]bool{
	"api_key":       true,
	"authorization": true,
	"jwt_secret":    true,
	"token":         true,
}

// Config holds the logging configuration.
type Config struct {
	// Level is trace, debug, info, warn or error. Unknown values mean info.
	Level string

	// Format defaults to json.
	Format Format

	// Output defaults to os.Stderr.
	Output io.Writer

	AddSource bool
}

// New creates a logger from cfg. A nil cfg logs JSON at info to stderr.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = &Config{}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level, _ := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: maskCredentials,
	}

	if cfg.Format == FormatText {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// ParseLevel maps a level name to its slog level. ok is false, and the
// level info, for an unknown name.
func ParseLevel(name string) (level slog.Level, ok bool) {
	switch strings.ToLower(name) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, name != ""
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func maskCredentials(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString && maskedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, SanitizeAPIKey(a.Value.String()))
	}
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			return slog.String(slog.LevelKey, "TRACE")
		}
	}
	return a
}

// WithCorrelationID tags every record with the completion run's ID.
func WithCorrelationID(logger *slog.Logger, id string) *slog.Logger {
	return logger.With(CorrelationIDKey, id)
}

func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(ComponentKey, component)
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// SanitizeAPIKey keeps the last four characters of a credential. Keys of
// four characters or fewer are fully hidden.
func SanitizeAPIKey(key string) string {
	if len(key) <= 4 {
		return "[REDACTED]"
	}
	return "..." + key[len(key)-4:]
}

// Trace logs at LevelTrace, skipping attribute evaluation when disabled.
func Trace(ctx context.Context, logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if logger.Enabled(ctx, LevelTrace) {
		logger.LogAttrs(ctx, LevelTrace, msg, attrs...)
	}
}
