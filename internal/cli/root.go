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

package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/cortensor/internal/commands/shared"
)

// groups lists the help sections in display order. Commands pick one
// with Annotations["group"].
var groups = []*cobra.Group{
	{ID: "completion", Title: "Completions:"},
	{ID: "server", Title: "Serving:"},
	{ID: "configuration", Title: "Configuration:"},
	{ID: "management", Title: "Management:"},
	{ID: "diagnostics", Title: "Diagnostics:"},
}

// SetVersion records build information injected by main.
func SetVersion(version, commit, date string) {
	shared.SetVersion(version, commit, date)
}

// GetVersion returns the recorded build information.
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// NewRootCommand creates the cortensor root command with its global flags.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cortensor",
		Short: "cortensor - resilient Cortensor completion client",
		Long: `cortensor sends prompts to a Cortensor router session and returns the
JSON response.

The configured URL may omit its scheme, its API prefix or both. Every
scheme variant and endpoint shape is tried in turn, so a misconfigured
URL costs an extra attempt instead of a failed call.

Run 'cortensor config init' and 'cortensor key set' to get started.
Run 'cortensor doctor' to check your setup.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	shared.BindGlobalFlags(cmd.PersistentFlags())
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	cmd.AddGroup(groups...)

	return cmd
}

// Register adds cmds to root, placing each under the help group named by
// its "group" annotation.
func Register(root *cobra.Command, cmds ...*cobra.Command) {
	for _, c := range cmds {
		if g := c.Annotations["group"]; g != "" && root.ContainsGroup(g) {
			c.GroupID = g
		}
		root.AddCommand(c)
	}
}

// HandleExitError prints err and exits with its mapped code.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
