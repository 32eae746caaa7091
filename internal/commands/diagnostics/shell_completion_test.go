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
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellCompletion(t *testing.T) {
	for _, shell := range shellNames() {
		t.Run(shell, func(t *testing.T) {
			root := &cobra.Command{Use: "cortensor"}
			root.AddCommand(NewCompletionCommand())

			var buf bytes.Buffer
			root.SetOut(&buf)
			root.SetArgs([]string{"shell-completion", shell})
			require.NoError(t, root.Execute())
			assert.Contains(t, buf.String(), "cortensor")
		})
	}
}

func TestShellCompletion_RejectsUnknownShell(t *testing.T) {
	root := &cobra.Command{Use: "cortensor", SilenceErrors: true, SilenceUsage: true}
	root.AddCommand(NewCompletionCommand())
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"shell-completion", "tcsh"})
	assert.Error(t, root.Execute())
}
