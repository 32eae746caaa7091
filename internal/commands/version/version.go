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

// Package version implements "cortensor version".
package version

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/pkg/httpclient"
)

// Info is what the command reports.
type Info struct {
	shared.JSONResponse
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	UserAgent string `json:"user_agent"`
}

func current() Info {
	v, c, d := shared.GetVersion()
	return Info{
		JSONResponse: shared.NewJSONResponse("version"),
		Version:      v,
		Commit:       c,
		BuildDate:    d,
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		UserAgent:    httpclient.DefaultUserAgent,
	}
}

// NewVersionCommand returns the version command.
func NewVersionCommand() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"group": "management"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(cmd.OutOrStdout(), current(), short, shared.GetJSON())
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print the version number only")
	return cmd
}

func report(w io.Writer, info Info, short, asJSON bool) error {
	switch {
	case asJSON:
		return shared.EmitJSON(w, info)
	case short:
		_, err := fmt.Fprintln(w, info.Version)
		return err
	}
	rows := [][2]string{
		{"commit", info.Commit},
		{"built", info.BuildDate},
		{"go", info.GoVersion},
		{"platform", info.Platform},
		{"user agent", info.UserAgent},
	}
	fmt.Fprintf(w, "cortensor %s\n", info.Version)
	for _, r := range rows {
		fmt.Fprintln(w, "  "+shared.RenderKV(r[0], 11, r[1]))
	}
	return nil
}
