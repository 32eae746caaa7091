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

package mcpserver

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/mcp/server"
)

// NewCommand creates the mcp-server command.
func NewCommand() *cobra.Command {
	var callsPerMinute int

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve completions to MCP clients over stdio",
		Annotations: map[string]string{
			"group": "server",
		},
		Long: `Start a Model Context Protocol server on stdin and stdout.

AI assistants can then request completions from the configured Cortensor
session as a tool call.

Configuration example (mcpServers section of the client config):
  {
    "mcpServers": {
      "cortensor": {
        "command": "cortensor",
        "args": ["mcp-server"]
      }
    }
  }

The server exposes these tools:
  - cortensor_complete:   Send a prompt, optionally filtered with jq
  - cortensor_candidates: List the endpoint probe order

Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMCPServer(ctx, callsPerMinute)
		},
	}

	cmd.Flags().IntVar(&callsPerMinute, "calls-per-minute", server.DefaultCallsPerMinute, "Maximum tool calls per minute")

	return cmd
}

func runMCPServer(ctx context.Context, callsPerMinute int) error {
	rt, err := shared.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	version, _, _ := shared.GetVersion()
	cfg := server.ServerConfig{
		Version:        version,
		CallsPerMinute: callsPerMinute,
		Logger:         rt.Logger,
	}
	if rt.History != nil {
		cfg.History = rt.History
	}

	srv, err := server.NewServer(rt.Dispatcher, cfg)
	if err != nil {
		return shared.NewFailedError("failed to create MCP server", err)
	}

	rt.Logger.Info("starting MCP server", slog.String("version", version))
	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return shared.NewFailedError("MCP server failed", err)
	}
	return nil
}
