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
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/cortensor/internal/commands/shared"
)

func testTree() *cobra.Command {
	root := NewRootCommand()

	key := &cobra.Command{
		Use:         "key",
		Short:       "Manage credentials",
		Annotations: map[string]string{"group": "configuration"},
	}
	key.PersistentFlags().String("credential", "api_key", "Credential to manage")
	set := &cobra.Command{Use: "set", Short: "Store a credential", RunE: func(*cobra.Command, []string) error { return nil }}
	set.Flags().String("backend", "", "Target backend")
	key.AddCommand(set)

	complete := &cobra.Command{
		Use:         "complete [prompt...]",
		Short:       "Send a prompt",
		Example:     "  cortensor complete hello",
		Annotations: map[string]string{"group": "completion"},
		RunE:        func(*cobra.Command, []string) error { return nil },
	}
	complete.Flags().String("provider", "", "Provider")
	complete.Flags().String("session", "", "Session id")
	_ = complete.MarkFlagRequired("session")

	Register(root, key, complete)
	root.SetHelpCommand(NewHelpCommand(root))
	return root
}

func runHelp(t *testing.T, root *cobra.Command, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"help"}, args...))
	return &buf, root.Execute()
}

func TestHelp_JSONTree(t *testing.T) {
	buf, err := runHelp(t, testTree(), "--json")
	require.NoError(t, err)

	var resp HelpResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "1.0", resp.Version)
	assert.Nil(t, resp.Command)

	paths := map[string]CommandInfo{}
	for _, c := range resp.Commands {
		paths[c.Path] = c
	}
	require.Contains(t, paths, "key")
	require.Contains(t, paths, "key set")
	require.Contains(t, paths, "complete")
	assert.NotContains(t, paths, "help")

	assert.Equal(t, []string{"set"}, paths["key"].Subcommands)
	assert.Equal(t, "credential", paths["key"].Flags[0].Name)

	var globals []string
	for _, f := range resp.GlobalFlags {
		globals = append(globals, f.Name)
	}
	assert.Subset(t, globals, []string{"verbose", "quiet", "json", "no-interactive", "config"})
}

func TestHelp_JSONSingleCommand(t *testing.T) {
	buf, err := runHelp(t, testTree(), "complete", "--json")
	require.NoError(t, err)

	var resp HelpResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Command)
	assert.Empty(t, resp.Commands)

	c := resp.Command
	assert.Equal(t, "complete", c.Path)
	assert.Equal(t, "completion", c.Group)
	assert.Equal(t, "  cortensor complete hello", c.Example)

	flags := map[string]FlagInfo{}
	for _, f := range c.Flags {
		flags[f.Name] = f
	}
	assert.True(t, flags["session"].Required)
	assert.False(t, flags["provider"].Required)
	assert.Equal(t, "string", flags["provider"].Type)
}

func TestHelp_NestedCommand(t *testing.T) {
	buf, err := runHelp(t, testTree(), "key", "set", "--json")
	require.NoError(t, err)

	var resp HelpResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Command)
	assert.Equal(t, "key set", resp.Command.Path)
}

func TestHelp_HumanOutput(t *testing.T) {
	buf, err := runHelp(t, testTree(), "complete")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Send a prompt")
	assert.Contains(t, buf.String(), "--provider")
}

func TestHelp_UnknownCommand(t *testing.T) {
	_, err := runHelp(t, testTree(), "nope")
	require.Error(t, err)
	assert.Equal(t, shared.ExitInput, shared.ExitCode(err))
}
