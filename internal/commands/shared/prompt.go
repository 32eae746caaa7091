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
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
)

// ReadPrompt returns the prompt from args, or from in when args are
// empty and in is not a terminal. An empty result is an input error.
func ReadPrompt(args []string, in io.Reader, inIsTerminal bool) (string, error) {
	if len(args) > 0 {
		prompt := strings.Join(args, " ")
		if strings.TrimSpace(prompt) == "" {
			return "", NewInputError("prompt must not be empty", nil)
		}
		return prompt, nil
	}

	if inIsTerminal {
		return "", NewInputError("no prompt given; pass it as an argument or pipe it on stdin", nil)
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", NewInputError("failed to read prompt from stdin", err)
	}
	prompt := strings.TrimRight(string(data), "\r\n")
	if strings.TrimSpace(prompt) == "" {
		return "", NewInputError("prompt must not be empty", nil)
	}
	return prompt, nil
}

// PromptSecret asks for a secret with masked input.
func PromptSecret(title, description string) (string, error) {
	var value string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Description(description).
				EchoMode(huh.EchoModePassword).
				Value(&value).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("value is required")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return "", err
	}
	return value, nil
}

// Confirm asks a yes/no question. It defaults to no.
func Confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).Run()
	return ok, err
}
