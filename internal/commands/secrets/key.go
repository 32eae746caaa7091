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

package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/secrets"
)

// store is the subset of *secrets.Resolver the key commands use.
type store interface {
	Lookup(ctx context.Context, name string) (string, string, error)
	Set(ctx context.Context, name, value, target string) (string, error)
	Delete(ctx context.Context, name, target string) error
	Backends() []secrets.Backend
}

// newStore returns the default backend chain.
var newStore = func() (store, error) {
	return secrets.NewDefaultResolver()
}

// NewCommand creates the key command for credential management.
func NewCommand() *cobra.Command {
	var credential string

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API key and JWT secret",
		Annotations: map[string]string{
			"group": "configuration",
		},
		Long: `Manage cortensor credentials in a secret backend.

--credential selects api_key (default) or jwt_secret. A credential is
looked up in this order when the config file does not set it:
  1. CORTENSOR_API_KEY or CORTENSOR_SERVE_JWT_SECRET (read-only)
  2. System keychain (macOS Keychain, Linux Secret Service, Windows Credential Manager)
  3. Encrypted file (needs CORTENSOR_MASTER_KEY or ~/.config/cortensor/master.key)

Commands:
  set     Store the credential
  status  Show where the credential comes from
  delete  Remove the stored credential`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.CheckName(credential); err != nil {
				return shared.NewInputError(err.Error(), nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&credential, "credential", secrets.APIKey, "Credential to manage (api_key, jwt_secret)")

	cmd.AddCommand(newKeySetCommand(&credential))
	cmd.AddCommand(newKeyStatusCommand(&credential))
	cmd.AddCommand(newKeyDeleteCommand(&credential))

	return cmd
}

func newKeySetCommand(credential *string) *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a credential",
		Long: `Store a credential in a writable backend.

The value is read from stdin when stdin is not a terminal, and asked for
with hidden input otherwise.`,
		Example: `  cortensor key set
  cortensor key set --backend file < key.txt
  openssl rand -hex 32 | cortensor key set --credential jwt_secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readKey(cmd.InOrStdin(), shared.StdinIsTerminal(), *credential)
			if err != nil {
				return err
			}

			s, err := newStore()
			if err != nil {
				return shared.NewConfigError("failed to initialise secret backends", err)
			}
			return setKey(cmd.Context(), cmd.OutOrStdout(), s, *credential, value, backend)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Target backend (keychain, file)")

	return cmd
}

func newKeyStatusCommand(credential *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where a credential comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStore()
			if err != nil {
				return shared.NewConfigError("failed to initialise secret backends", err)
			}
			return keyStatus(cmd.Context(), cmd.OutOrStdout(), s, *credential)
		},
	}
}

func newKeyDeleteCommand(credential *string) *cobra.Command {
	var (
		backend string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a stored credential",
		Long: `Remove a credential from the named backend, or from every writable
backend holding it.

Requires confirmation unless --force is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if shared.IsNonInteractive() || !shared.StdinIsTerminal() {
					return shared.NewInputError("refusing to delete without --force in non-interactive mode", nil)
				}
				ok, err := shared.Confirm(fmt.Sprintf("Delete the stored %s?", label(*credential)))
				if err != nil {
					return shared.NewInputError("confirmation cancelled", err)
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}

			s, err := newStore()
			if err != nil {
				return shared.NewConfigError("failed to initialise secret backends", err)
			}
			return deleteKey(cmd.Context(), cmd.OutOrStdout(), s, *credential, backend)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Target backend (keychain, file)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

// label names a credential in prose.
func label(credential string) string {
	if credential == secrets.JWTSecret {
		return "JWT secret"
	}
	return "API key"
}

// readKey reads the credential from in, or asks for it when in is a terminal.
func readKey(in io.Reader, inIsTerminal bool, credential string) (string, error) {
	what := label(credential)

	var value string
	if inIsTerminal {
		if shared.IsNonInteractive() {
			return "", shared.NewInputError("pipe the "+what+" on stdin in non-interactive mode", nil)
		}
		v, err := shared.PromptSecret("Cortensor "+what, "Stored in your keychain or the encrypted secrets file")
		if err != nil {
			return "", shared.NewInputError("failed to read "+what, err)
		}
		value = v
	} else {
		data, err := io.ReadAll(io.LimitReader(in, 64*1024))
		if err != nil {
			return "", shared.NewInputError("failed to read "+what+" from stdin", err)
		}
		value = string(data)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", shared.NewInputError(what+" must not be empty", nil)
	}
	return value, nil
}

func setKey(ctx context.Context, w io.Writer, s store, credential, value, backend string) error {
	used, err := s.Set(ctx, credential, value, backend)
	if err != nil {
		if errors.Is(err, secrets.ErrUnavailable) || errors.Is(err, secrets.ErrReadOnly) {
			return shared.NewConfigError("no writable secret backend", err)
		}
		return shared.NewFailedError("failed to store "+label(credential), err)
	}
	fmt.Fprintln(w, shared.RenderOK(fmt.Sprintf("%s %s stored in %s", label(credential), log.SanitizeAPIKey(value), used)))
	return nil
}

func keyStatus(ctx context.Context, w io.Writer, s store, credential string) error {
	value, backend, err := s.Lookup(ctx, credential)
	found := err == nil
	if err != nil && !errors.Is(err, secrets.ErrNotFound) {
		return shared.NewFailedError("failed to look up "+label(credential), err)
	}

	names := make([]string, 0, len(s.Backends()))
	for _, b := range s.Backends() {
		names = append(names, b.Name())
	}

	if shared.GetJSON() {
		resp := struct {
			shared.JSONResponse
			Name     string   `json:"credential"`
			Found    bool     `json:"found"`
			Backend  string   `json:"backend,omitempty"`
			Key      string   `json:"key,omitempty"`
			Backends []string `json:"backends"`
		}{JSONResponse: shared.NewJSONResponse("key status"), Name: credential, Found: found, Backends: names}
		if found {
			resp.Backend = backend
			resp.Key = log.SanitizeAPIKey(value)
		}
		return shared.EmitJSON(w, resp)
	}

	if found {
		fmt.Fprintln(w, shared.RenderKV(label(credential), 10, log.SanitizeAPIKey(value)))
		fmt.Fprintln(w, shared.RenderKV("Backend", 10, backend))
	} else {
		hint := "cortensor key set"
		if credential != secrets.APIKey {
			hint += " --credential " + credential
		}
		fmt.Fprintln(w, shared.RenderWarn(fmt.Sprintf("No %s stored. Run '%s'.", label(credential), hint)))
	}
	fmt.Fprintln(w, shared.RenderKV("Available", 10, strings.Join(names, ", ")))
	return nil
}

func deleteKey(ctx context.Context, w io.Writer, s store, credential, backend string) error {
	if err := s.Delete(ctx, credential, backend); err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return shared.NewInputError("no stored "+label(credential), err)
		}
		return shared.NewFailedError("failed to delete "+label(credential), err)
	}
	fmt.Fprintln(w, shared.RenderOK(label(credential)+" deleted"))
	return nil
}
