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

package serve

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/cortensor/internal/auth"
	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/config"
	"github.com/tombee/cortensor/internal/filewatcher"
	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/server"
)

// DefaultClockSkew is the leeway applied to token expiry checks.
const DefaultClockSkew = 30 * time.Second

// NewCommand creates the serve command.
func NewCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve completions over HTTP",
		Annotations: map[string]string{
			"group": "server",
		},
		Long: `Serve exposes the completion client as a small HTTP service.

Endpoints:
  POST /v1/completions  {"prompt": "...", "provider": "", "model": "", "jq": ""}
  GET  /v1/candidates   Endpoint probe order for the configured URL
  GET  /healthz         Liveness and version
  GET  /metrics         Prometheus metrics (tracing.exporter: prometheus)

When serve.jwt_secret is set, /v1 endpoints require a bearer token
carrying the "completions" scope. Create one with 'cortensor token'.

When serve.watch_config is set, edits to the config file are applied
without a restart. A config that fails validation is ignored and the
previous settings stay in effect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides serve.addr)")

	return cmd
}

func runServe(ctx context.Context, addr string) error {
	rt, err := shared.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	cfg := rt.Config
	if addr != "" {
		cfg.Serve.Addr = addr
	}

	opts := Options(cfg, rt.Logger)
	opts.Metrics = rt.Metrics
	opts.MetricsHandler = rt.Telemetry.MetricsHandler()
	if rt.History != nil {
		opts.History = rt.History
	}

	srv, err := server.New(rt.Dispatcher, opts)
	if err != nil {
		return shared.NewFailedError("failed to create server", err)
	}

	if cfg.Serve.WatchConfig && cfg.Path != "" {
		w, err := filewatcher.NewWatcher(cfg.Path, 0, rt.Logger)
		if err != nil {
			return shared.NewFailedError("failed to watch config file", err)
		}
		w.Start(ctx)
		defer w.Stop()

		go srv.WatchReload(ctx, w.Changes(), ReloadFunc(cfg.Path, rt.Logger, rt.Metrics))
		rt.Logger.Info("watching config file", slog.String("path", cfg.Path))
	}

	rt.Logger.Info("starting server",
		slog.String("addr", cfg.Serve.Addr),
		slog.String("api_url", cfg.API.URL),
		slog.Bool("auth", opts.Auth != nil),
	)

	if err := srv.Run(ctx); err != nil {
		rt.Logger.Error("server stopped", log.Error(err))
		return shared.NewFailedError("server failed", err)
	}
	return nil
}

// Options maps the serve section of cfg onto server options.
func Options(cfg *config.Config, logger *slog.Logger) server.Options {
	v, _, _ := shared.GetVersion()
	opts := server.Options{
		Addr:            cfg.Serve.Addr,
		RateLimit:       cfg.Serve.RateLimit,
		Burst:           cfg.Serve.Burst,
		MaxBodyBytes:    cfg.Serve.MaxBodyBytes,
		ShutdownTimeout: cfg.Serve.ShutdownTimeout,
		Logger:          logger,
		Version:         v,
	}
	if cfg.Serve.JWTSecret != "" {
		opts.Auth = JWTConfig(cfg)
	}
	return opts
}

// JWTConfig returns the token settings of the serve section.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:    []byte(cfg.Serve.JWTSecret),
		Issuer:    cfg.Serve.JWTIssuer,
		ClockSkew: DefaultClockSkew,
	}
}
