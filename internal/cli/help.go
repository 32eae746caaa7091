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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/cortensor/internal/commands/shared"
)

// CommandInfo describes one command in `help --json` output.
type CommandInfo struct {
	Path        string     `json:"path"`
	Short       string     `json:"short"`
	Long        string     `json:"long,omitempty"`
	Usage       string     `json:"usage"`
	Example     string     `json:"example,omitempty"`
	Group       string     `json:"group,omitempty"`
	Aliases     []string   `json:"aliases,omitempty"`
	Flags       []FlagInfo `json:"flags,omitempty"`
	Subcommands []string   `json:"subcommands,omitempty"`
}

// FlagInfo describes one flag.
type FlagInfo struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
	Required  bool   `json:"required"`
}

// HelpResponse is the `help --json` envelope. Commands is the flattened
// tree when no command is named; Command is set otherwise.
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandInfo `json:"commands,omitempty"`
	Command     *CommandInfo  `json:"command,omitempty"`
	GlobalFlags []FlagInfo    `json:"global_flags,omitempty"`
}

// NewHelpCommand replaces cobra's help with one that also speaks JSON.
func NewHelpCommand(root *cobra.Command) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Help shows usage for cortensor or one of its commands.

With --json the whole command tree, or the named command, is written as
JSON for scripts and agents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := root
			if len(args) > 0 {
				found, rest, err := root.Find(args)
				if err != nil || len(rest) > 0 {
					return shared.NewInputError("unknown command "+strings.Join(args, " "), err)
				}
				target = found
			}

			if !asJSON && !shared.GetJSON() {
				target.SetOut(cmd.OutOrStdout())
				return target.Help()
			}

			resp := HelpResponse{
				JSONResponse: shared.NewJSONResponse("help"),
				GlobalFlags:  flagInfos(root.PersistentFlags()),
			}
			if target == root {
				resp.Commands = walk(root)
			} else {
				info := describe(target)
				resp.Command = &info
				resp.Command.Flags = flagInfos(target.LocalFlags())
			}
			return shared.EmitJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON")
	return cmd
}

// walk lists every visible command under c, depth first.
func walk(c *cobra.Command) []CommandInfo {
	var out []CommandInfo
	for _, sub := range c.Commands() {
		if sub.Hidden || sub.Name() == "help" {
			continue
		}
		info := describe(sub)
		info.Flags = flagInfos(sub.LocalFlags())
		out = append(out, info)
		out = append(out, walk(sub)...)
	}
	return out
}

func describe(c *cobra.Command) CommandInfo {
	info := CommandInfo{
		Path:    strings.TrimPrefix(c.CommandPath(), c.Root().Name()+" "),
		Short:   c.Short,
		Long:    c.Long,
		Usage:   c.UseLine(),
		Example: c.Example,
		Group:   c.Annotations["group"],
		Aliases: c.Aliases,
	}
	for _, sub := range c.Commands() {
		if !sub.Hidden {
			info.Subcommands = append(info.Subcommands, sub.Name())
		}
	}
	return info
}

func flagInfos(fs *pflag.FlagSet) []FlagInfo {
	var out []FlagInfo
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		req := f.Annotations[cobra.BashCompOneRequiredFlag]
		out = append(out, FlagInfo{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
			Required:  len(req) > 0 && req[0] == "true",
		})
	})
	return out
}
