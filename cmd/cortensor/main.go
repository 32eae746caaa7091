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

package main

import (
	"github.com/tombee/cortensor/internal/cli"
	"github.com/tombee/cortensor/internal/commands/complete"
	"github.com/tombee/cortensor/internal/commands/config"
	"github.com/tombee/cortensor/internal/commands/diagnostics"
	"github.com/tombee/cortensor/internal/commands/management"
	"github.com/tombee/cortensor/internal/commands/mcpserver"
	"github.com/tombee/cortensor/internal/commands/secrets"
	"github.com/tombee/cortensor/internal/commands/serve"
	versioncmd "github.com/tombee/cortensor/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	cli.Register(rootCmd,
		complete.NewCommand(),
		complete.NewBatchCommand(),
		serve.NewCommand(),
		serve.NewTokenCommand(),
		mcpserver.NewCommand(),
		config.NewConfigCommand(),
		secrets.NewCommand(),
		management.NewHistoryCommand(),
		versioncmd.NewVersionCommand(),
		diagnostics.NewCandidatesCommand(),
		diagnostics.NewDoctorCommand(),
		diagnostics.NewCompletionCommand(),
	)

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
