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

package server

import (
	"context"
	"log/slog"

	"github.com/tombee/cortensor/internal/log"
)

// BuildFunc constructs a fresh Completer, typically by reloading the
// config file.
type BuildFunc func(ctx context.Context) (Completer, error)

// Reload swaps in a completer built by build. On error the current
// completer stays in place.
func (s *Server) Reload(ctx context.Context, build BuildFunc) error {
	c, err := build(ctx)
	if err != nil {
		s.logger.Warn("configuration reload failed, keeping previous settings", log.Error(err))
		return err
	}
	s.SetCompleter(c)
	n := s.reloads.Add(1)
	s.logger.Info("configuration reloaded", slog.Int64("reloads", n))
	return nil
}

// WatchReload calls Reload for every value received on changes until ctx
// is done or changes is closed.
func (s *Server) WatchReload(ctx context.Context, changes <-chan struct{}, build BuildFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			_ = s.Reload(ctx, build)
		}
	}
}
