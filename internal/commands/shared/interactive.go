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

package shared

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// ciMarkers are set by common CI runners.
var ciMarkers = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE"}

func envTrue(name string) bool {
	on, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && on
}

// IsNonInteractive is true when prompts must not be shown: under
// --no-interactive, CORTENSOR_NON_INTERACTIVE, a CI runner, or when
// stdin is not a terminal.
func IsNonInteractive() bool {
	if globals.noInteractive || envTrue("CORTENSOR_NON_INTERACTIVE") {
		return true
	}
	for _, name := range ciMarkers {
		if envTrue(name) {
			return true
		}
	}
	return !StdinIsTerminal()
}

// StdinIsTerminal reports whether stdin is a TTY.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
