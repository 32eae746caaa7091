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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/pkg/completion"
)

// CandidateInfo is one row of the candidates output.
type CandidateInfo struct {
	Order     int    `json:"order"`
	Scheme    int    `json:"scheme"`
	URL       string `json:"url"`
	Placement string `json:"placement"`
}

// NewCandidatesCommand creates the candidates command.
func NewCandidatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Show the endpoint probe order",
		Annotations: map[string]string{
			"group": "diagnostics",
		},
		Long: `Candidates lists every URL a completion may be sent to, in the order
they are tried, for the configured api.url and api.session_id.

No requests are made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.API.URL == "" {
				return shared.NewConfigError("api.url is not set", nil)
			}

			rows := candidateRows(completion.NewPlan(cfg.API.URL, cfg.API.SessionID))
			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), struct {
					shared.JSONResponse
					Candidates []CandidateInfo `json:"candidates"`
				}{shared.NewJSONResponse("candidates"), rows})
			}
			writeCandidates(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	return cmd
}

func candidateRows(plan completion.Plan) []CandidateInfo {
	var rows []CandidateInfo
	for i, cands := range plan {
		for _, c := range cands {
			rows = append(rows, CandidateInfo{
				Order:     len(rows) + 1,
				Scheme:    i + 1,
				URL:       c.URL,
				Placement: c.Placement.String(),
			})
		}
	}
	return rows
}

func writeCandidates(w io.Writer, rows []CandidateInfo) {
	for _, r := range rows {
		fmt.Fprintf(w, "%d. %-5s %s\n", r.Order, r.Placement, r.URL)
	}
}
