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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/config"
	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/secrets"
	"github.com/tombee/cortensor/pkg/completion"
)

// Check is the outcome of one doctor check.
type Check struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// DoctorResult contains the overall health check results.
type DoctorResult struct {
	ConfigPath string  `json:"config_path"`
	Checks     []Check `json:"checks"`
	Healthy    bool    `json:"healthy"`
}

func (r *DoctorResult) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.OK {
		r.Healthy = false
	}
}

// doctor holds the dependencies of the checks so tests can replace them.
type doctor struct {
	load     func(path string) (*config.Config, error)
	backends []secrets.Backend
	dial     func(ctx context.Context, network, address string) (net.Conn, error)
	probe    bool
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity",
		Annotations: map[string]string{
			"group": "diagnostics",
		},
		Long: `Doctor checks that cortensor is ready to run completions:

  - the config file can be read and is valid
  - an API key is available and where it came from
  - which secret backends are usable
  - the history database opens, when enabled
  - with --probe, that every candidate host accepts TCP connections

No completion requests are sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			d := &doctor{load: config.Load, probe: probe}
			if resolver, err := secrets.NewDefaultResolver(); err == nil {
				d.backends = resolver.Backends()
			}
			var dialer net.Dialer
			d.dial = dialer.DialContext

			result := d.run(ctx, shared.GetConfigPath())
			if shared.GetJSON() {
				if err := shared.EmitJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				writeDoctor(cmd.OutOrStdout(), result)
			}
			if !result.Healthy {
				return shared.NewConfigError("health check found issues", nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Open a TCP connection to every candidate host")

	return cmd
}

func (d *doctor) run(ctx context.Context, cfgPath string) DoctorResult {
	result := DoctorResult{ConfigPath: cfgPath, Healthy: true}

	cfg, err := d.load(cfgPath)
	if err != nil {
		result.add(Check{
			Name:       "config file",
			Detail:     err.Error(),
			Suggestion: "Fix the YAML or pass a different file with --config",
		})
		return result
	}
	if cfg.Path != "" {
		result.ConfigPath = cfg.Path
		result.add(Check{Name: "config file", OK: true, Detail: cfg.Path})
	} else {
		result.add(Check{Name: "config file", OK: true, Detail: "none, using environment"})
	}

	if err := cfg.Validate(); err != nil {
		result.add(Check{
			Name:       "configuration",
			Detail:     err.Error(),
			Suggestion: "Set the missing values in the config file or CORTENSOR_* variables",
		})
	} else {
		result.add(Check{Name: "configuration", OK: true})
	}

	if cfg.API.Key != "" {
		result.add(Check{
			Name:   "api key",
			OK:     true,
			Detail: fmt.Sprintf("%s (from %s)", log.SanitizeAPIKey(cfg.API.Key), cfg.APIKeySource),
		})
	} else {
		result.add(Check{
			Name:       "api key",
			Detail:     "not found",
			Suggestion: "Run 'cortensor key set' or set CORTENSOR_API_KEY",
		})
	}

	names := make([]string, 0, len(d.backends))
	for _, b := range d.backends {
		names = append(names, b.Name())
	}
	result.add(Check{Name: "secret backends", OK: len(names) > 0, Detail: strings.Join(names, ", ")})

	if cfg.History.Enabled {
		result.add(checkHistory(cfg))
	}

	if cfg.API.URL != "" {
		plan := completion.NewPlan(cfg.API.URL, cfg.API.SessionID)
		result.add(Check{Name: "candidates", OK: true, Detail: fmt.Sprintf("%d endpoints", plan.Len())})
		if d.probe {
			for _, c := range d.probeHosts(ctx, plan) {
				result.add(c)
			}
		}
	}

	return result
}

func checkHistory(cfg *config.Config) Check {
	store, err := shared.OpenHistory(cfg)
	if err != nil {
		return Check{
			Name:       "history",
			Detail:     err.Error(),
			Suggestion: "Check history.path or disable history",
		}
	}
	_ = store.Close()
	return Check{Name: "history", OK: true, Detail: cfg.History.Path}
}

// probeHosts dials each distinct scheme/host pair in plan once.
func (d *doctor) probeHosts(ctx context.Context, plan completion.Plan) []Check {
	var checks []Check
	seen := make(map[string]bool)
	for _, cands := range plan {
		for _, c := range cands {
			u, err := url.Parse(c.URL)
			if err != nil {
				continue
			}
			addr := hostPort(u)
			key := u.Scheme + "://" + addr
			if seen[key] {
				continue
			}
			seen[key] = true

			check := Check{Name: "reach " + key, OK: true}
			dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			conn, err := d.dial(dialCtx, "tcp", addr)
			cancel()
			if err != nil {
				check.OK = false
				check.Detail = err.Error()
				if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
					check.Detail = "timed out"
				}
			} else {
				conn.Close()
			}
			checks = append(checks, check)
		}
	}
	return checks
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}

func writeDoctor(w io.Writer, result DoctorResult) {
	fmt.Fprintln(w, shared.Header.Render("cortensor doctor"))
	fmt.Fprintln(w)
	for _, c := range result.Checks {
		status := shared.RenderOK("ok")
		if !c.OK {
			status = shared.RenderError("fail")
		}
		line := fmt.Sprintf("  %-4s %s", status, c.Name)
		if c.Detail != "" {
			line += shared.Muted.Render(": " + c.Detail)
		}
		fmt.Fprintln(w, line)
		if !c.OK && c.Suggestion != "" {
			fmt.Fprintf(w, "       %s\n", c.Suggestion)
		}
	}
	fmt.Fprintln(w)
	if result.Healthy {
		fmt.Fprintln(w, shared.RenderOK("All checks passed"))
	} else {
		fmt.Fprintln(w, shared.RenderError("Issues found"))
	}
}
