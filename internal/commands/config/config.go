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
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/config"
)

// NewConfigCommand creates the config command with subcommands.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Annotations: map[string]string{
			"group": "configuration",
		},
		Long: `View and manage cortensor configuration.

Settings are read, in increasing precedence, from built-in defaults, the
config file, .env in the working directory and CORTENSOR_* environment
variables. The API key falls back to the OS keychain and the encrypted
secrets file.

Subcommands:
  show     - Display the effective configuration
  path     - Show config file location
  validate - Check the effective configuration
  init     - Write a starter config file`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigValidateCommand())
	cmd.AddCommand(newConfigInitCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, args)
	}

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the effective configuration after defaults, file, .env,
environment and secret backends are applied.

The API key, JWT secret and exporter headers are masked.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the effective configuration",
		Long:  `Validate loads the configuration and reports every missing or invalid value.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return shared.NewConfigError("invalid configuration", err)
			}
			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), shared.NewJSONResponse("config validate"))
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("Configuration is valid"))
			return nil
		},
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		return outputConfigJSON(cmd.OutOrStdout(), cfg)
	}
	return outputConfigYAML(cmd.OutOrStdout(), cfg)
}

// configPath returns the --config path or the default location.
func configPath() (string, error) {
	if p := shared.GetConfigPath(); p != "" {
		return p, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", shared.NewConfigError("failed to determine config path", err)
	}
	return p, nil
}

func outputConfigYAML(w io.Writer, cfg *config.Config) error {
	source := cfg.Path
	if source == "" {
		source = "(no config file)"
	}
	fmt.Fprintf(w, "# Configuration from: %s\n", source)
	if cfg.APIKeySource != "" {
		fmt.Fprintf(w, "# API key from: %s\n", cfg.APIKeySource)
	}
	fmt.Fprintln(w)

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// outputConfigJSON goes through YAML so keys and durations match the
// config file.
func outputConfigJSON(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to convert config: %w", err)
	}

	return shared.EmitJSON(w, struct {
		shared.JSONResponse
		Path         string         `json:"path,omitempty"`
		APIKeySource string         `json:"api_key_source,omitempty"`
		Config       map[string]any `json:"config"`
	}{shared.NewJSONResponse("config show"), cfg.Path, cfg.APIKeySource, generic})
}
