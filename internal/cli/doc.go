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

// Package cli assembles the cortensor root command.
//
// Subcommands live under internal/commands and are attached by
// cmd/cortensor through Register, which files each one under the help
// group named by its "group" annotation:
//
//	Completions:    complete, batch
//	Server:         serve, token, mcp-server
//	Configuration:  config, key
//	Management:     history, version
//	Diagnostics:    candidates, doctor, shell-completion
//
// Persistent flags (--verbose, --quiet, --json, --no-interactive and
// --config) are bound by shared.BindGlobalFlags. A command's error is
// turned into the process exit status by HandleExitError:
//
//	0 ok, 1 failed, 2 config, 3 input, 4 remote
package cli
