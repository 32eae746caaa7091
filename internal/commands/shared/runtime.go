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

package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel"

	"github.com/tombee/cortensor/internal/config"
	"github.com/tombee/cortensor/internal/history"
	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/tracing"
	"github.com/tombee/cortensor/pkg/completion"
)

// Runtime holds everything a command needs to run completions.
type Runtime struct {
	Config     *config.Config
	Logger     *slog.Logger
	Telemetry  *tracing.Provider
	Metrics    *tracing.MetricsCollector
	Dispatcher *completion.Dispatcher

	// History is nil unless history recording is enabled.
	History *history.Store
}

// LoadConfig loads configuration from the --config path, the
// environment and the secret backends.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger. --verbose forces debug and
// --quiet forces error.
func NewLogger(cfg *config.Config) *slog.Logger {
	lc := cfg.LoggerConfig()
	switch {
	case GetVerbose():
		lc.Level = "debug"
	case GetQuiet():
		lc.Level = "error"
	}
	return log.New(lc)
}

// NewRuntime loads and validates configuration and builds the runtime.
// Callers must Close it.
func NewRuntime(ctx context.Context, opts ...completion.Option) (*Runtime, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigError("invalid configuration", err)
	}
	return NewRuntimeFromConfig(ctx, cfg, opts...)
}

// NewRuntimeFromConfig builds a runtime from an already validated config.
func NewRuntimeFromConfig(ctx context.Context, cfg *config.Config, opts ...completion.Option) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: NewLogger(cfg)}

	tcfg := cfg.Tracing
	tcfg.ServiceVersion = build.version
	tp, err := tracing.NewProvider(ctx, tcfg)
	if err != nil {
		return nil, NewConfigError("failed to initialise telemetry", err)
	}
	rt.Telemetry = tp

	rt.Metrics, err = tracing.NewMetricsCollector(otel.GetMeterProvider())
	if err != nil {
		rt.Close(ctx)
		return nil, NewFailedError("failed to create metrics", err)
	}

	rt.Dispatcher, err = BuildDispatcher(cfg, rt.Logger, rt.Metrics, opts...)
	if err != nil {
		rt.Close(ctx)
		return nil, NewConfigError("failed to create completion client", err)
	}

	if cfg.History.Enabled {
		rt.History, err = OpenHistory(cfg)
		if err != nil {
			rt.Close(ctx)
			return nil, NewFailedError("failed to open history", err)
		}
	}

	rt.Logger.Debug("runtime ready",
		slog.String("config", cfg.Path),
		slog.String("api_key_source", cfg.APIKeySource),
		slog.Int("candidates", rt.Dispatcher.Plan().Len()),
	)
	return rt, nil
}

// BuildDispatcher creates a completion dispatcher for cfg. Extra options
// are applied after the logger and metrics.
func BuildDispatcher(cfg *config.Config, logger *slog.Logger, metrics *tracing.MetricsCollector, extra ...completion.Option) (*completion.Dispatcher, error) {
	hc := cfg.HTTPClientConfig()
	hc.Logger = logger.With(slog.String("component", "http"))
	transport, err := completion.NewHTTPTransport(hc)
	if err != nil {
		return nil, err
	}
	opts := append([]completion.Option{
		completion.WithLogger(logger),
		completion.WithMetrics(metrics),
	}, extra...)
	return completion.NewDispatcher(cfg.CompletionSettings(), transport, opts...)
}

// OpenHistory opens the history database named by cfg, creating its
// directory if needed.
func OpenHistory(cfg *config.Config) (*history.Store, error) {
	if cfg.History.Path == "" {
		return nil, fmt.Errorf("history path is not set")
	}
	if err := config.EnsureDir(filepath.Dir(cfg.History.Path)); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return history.Open(history.Config{Path: cfg.History.Path})
}

// Close flushes telemetry and closes the history database.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.History != nil {
		errs = append(errs, r.History.Close())
	}
	if r.Telemetry != nil {
		errs = append(errs, r.Telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
