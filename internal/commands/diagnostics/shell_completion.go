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

package diagnostics

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

// shells maps a shell name to the cobra generator for it.
var shells = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash": func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":  func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish": func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error {
		return root.GenPowerShellCompletionWithDesc(w)
	},
}

func shellNames() []string {
	names := make([]string, 0, len(shells))
	for name := range shells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewCompletionCommand returns "shell-completion", which prints a tab
// completion script. It is named apart from "complete" so the two are
// not confused.
func NewCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell-completion <shell>",
		Short: "Print a tab-completion script for your shell",
		Long: `Print a tab-completion script for bash, zsh, fish or powershell.

  source <(cortensor shell-completion bash)
  cortensor shell-completion zsh > "${fpath[1]}/_cortensor"
  cortensor shell-completion fish > ~/.config/fish/completions/cortensor.fish`,
		Annotations:           map[string]string{"group": "diagnostics"},
		DisableFlagsInUseLine: true,
		ValidArgs:             shellNames(),
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, ok := shells[args[0]]
			if !ok {
				return fmt.Errorf("unsupported shell %q", args[0])
			}
			return gen(cmd.Root(), cmd.OutOrStdout())
		},
	}
}
