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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/config"
)

// starterConfig is the subset of settings written by 'config init'.
// The API key is never written; it belongs in a secret backend.
type starterConfig struct {
	API struct {
		URL       string `yaml:"url"`
		SessionID string `yaml:"session_id"`
		Provider  string `yaml:"provider,omitempty"`
		Model     string `yaml:"model,omitempty"`
	} `yaml:"api"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

type initOptions struct {
	url       string
	sessionID string
	provider  string
	model     string
	force     bool
}

func newConfigInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Init writes a config file with the router URL and session id.

Values missing from the flags are asked for interactively when stdin is a
terminal. Store the API key separately with 'cortensor key set'.`,
		Example: `  cortensor config init --url https://router.example:5010 --session-id 7`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}

			if (opts.url == "" || opts.sessionID == "") && !shared.IsNonInteractive() && shared.StdinIsTerminal() {
				if err := askInit(&opts); err != nil {
					return shared.NewInputError("setup cancelled", err)
				}
			}

			if err := writeStarter(path, opts); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("Wrote "+path))
			fmt.Fprintln(cmd.OutOrStdout(), shared.Muted.Render("Next: cortensor key set"))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "Router base URL")
	cmd.Flags().StringVar(&opts.sessionID, "session-id", "", "Session identifier")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Default provider")
	cmd.Flags().StringVar(&opts.model, "model", "", "Default model")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func askInit(opts *initOptions) error {
	required := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("value is required")
		}
		return nil
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Router URL").
				Description("With or without scheme, e.g. router.example:5010").
				Value(&opts.url).
				Validate(required),
			huh.NewInput().
				Title("Session id").
				Value(&opts.sessionID).
				Validate(required),
			huh.NewInput().
				Title("Model").
				Description("Optional").
				Value(&opts.model),
		),
	).Run()
}

func writeStarter(path string, opts initOptions) error {
	if strings.TrimSpace(opts.url) == "" {
		return shared.NewInputError("--url is required", nil)
	}
	if strings.TrimSpace(opts.sessionID) == "" {
		return shared.NewInputError("--session-id is required", nil)
	}

	if _, err := os.Stat(path); err == nil && !opts.force {
		return shared.NewInputError(fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return shared.NewFailedError("failed to check config file", err)
	}

	var sc starterConfig
	sc.API.URL = strings.TrimSpace(opts.url)
	sc.API.SessionID = strings.TrimSpace(opts.sessionID)
	sc.API.Provider = opts.provider
	sc.API.Model = opts.model
	sc.Log.Level = "info"
	sc.Log.Format = "text"

	data, err := yaml.Marshal(sc)
	if err != nil {
		return shared.NewFailedError("failed to marshal config", err)
	}

	if err := config.EnsureDir(filepath.Dir(path)); err != nil {
		return shared.NewFailedError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return shared.NewFailedError("failed to write config", err)
	}
	return nil
}
