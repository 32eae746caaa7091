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

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/config"
	"github.com/tombee/cortensor/internal/server"
	"github.com/tombee/cortensor/internal/tracing"
)

// ReloadFunc rebuilds the dispatcher from the config file at path.
// Secrets and environment overrides are re-read too.
func ReloadFunc(path string, logger *slog.Logger, metrics *tracing.MetricsCollector) server.BuildFunc {
	return reloadFunc(config.Load, path, logger, metrics)
}

func reloadFunc(load func(string) (*config.Config, error), path string, logger *slog.Logger, metrics *tracing.MetricsCollector) server.BuildFunc {
	return func(ctx context.Context) (server.Completer, error) {
		cfg, err := load(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		logger.Debug("rebuilding completion client",
			slog.String("api_url", cfg.API.URL),
			slog.String("api_key_source", cfg.APIKeySource),
		)
		return shared.BuildDispatcher(cfg, logger, metrics)
	}
}
