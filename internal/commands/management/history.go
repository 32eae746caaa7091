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

package management

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/history"
)

// historyStore is the subset of *history.Store the commands use.
type historyStore interface {
	Get(ctx context.Context, id string) (*history.Entry, error)
	List(ctx context.Context, filter history.Filter) ([]*history.Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// openStore opens the configured history database.
var openStore = func() (historyStore, error) {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return nil, err
	}
	store, err := shared.OpenHistory(cfg)
	if err != nil {
		return nil, shared.NewFailedError("failed to open history", err)
	}
	return store, nil
}

// NewHistoryCommand creates the history command group.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "history",
		Annotations: map[string]string{
			"group": "management",
		},
		Short: "View past completions",
		Long: `Commands for listing, viewing and pruning recorded completions.

Recording is off by default. Enable it with history.enabled: true in the
config file or CORTENSOR_HISTORY=true.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var (
		limit  int
		failed bool
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded completions, newest first",
		Example: `  cortensor history list --limit 10
  cortensor history list --failed --since 24h
  cortensor history list --json | jq '.entries[] | select(.attempts > 2)'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := history.Filter{Limit: limit}
			if failed {
				success := false
				filter.Success = &success
			}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			return historyList(cmd.Context(), cmd.OutOrStdout(), store, filter)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&failed, "failed", false, "Show only failed completions")
	cmd.Flags().DurationVar(&since, "since", 0, "Show only completions newer than this, e.g. 24h")

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			return historyShow(cmd.Context(), cmd.OutOrStdout(), store, args[0])
		},
	}
}

func newHistoryPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:     "prune",
		Short:   "Delete old completions",
		Example: `  cortensor history prune --older-than 720h`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return shared.NewInputError("--older-than must be positive", nil)
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return shared.NewFailedError("failed to prune history", err)
			}
			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), struct {
					shared.JSONResponse
					Deleted int64 `json:"deleted"`
				}{shared.NewJSONResponse("history prune"), n})
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("Deleted %d entries", n)))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete completions older than this")

	return cmd
}

func historyList(ctx context.Context, w io.Writer, store historyStore, filter history.Filter) error {
	entries, err := store.List(ctx, filter)
	if err != nil {
		return shared.NewFailedError("failed to list history", err)
	}

	if shared.GetJSON() {
		if entries == nil {
			entries = []*history.Entry{}
		}
		return shared.EmitJSON(w, struct {
			shared.JSONResponse
			Entries []*history.Entry `json:"entries"`
		}{shared.NewJSONResponse("history list"), entries})
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No completions found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tATTEMPTS\tDURATION\tCREATED\tPROMPT")
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.ID,
			status,
			e.Attempts,
			e.Duration.Round(time.Millisecond),
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(oneLine(e.Prompt), 40),
		)
	}
	return tw.Flush()
}

func historyShow(ctx context.Context, w io.Writer, store historyStore, id string) error {
	e, err := store.Get(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		return shared.NewInputError(fmt.Sprintf("no completion with id %q", id), err)
	}
	if err != nil {
		return shared.NewFailedError("failed to read history", err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(w, e)
	}

	const width = 15
	fmt.Fprintln(w, shared.RenderKV("ID", width, e.ID))
	fmt.Fprintln(w, shared.RenderKV("Correlation ID", width, e.CorrelationID))
	fmt.Fprintln(w, shared.RenderKV("Created", width, e.CreatedAt.Local().Format(time.RFC3339)))
	if e.Success {
		fmt.Fprintln(w, shared.RenderKV("Status", width, shared.StatusOK.Render("ok")))
	} else {
		fmt.Fprintln(w, shared.RenderKV("Status", width, shared.StatusError.Render("failed")))
	}
	fmt.Fprintln(w, shared.RenderKV("Attempts", width, fmt.Sprint(e.Attempts)))
	fmt.Fprintln(w, shared.RenderKV("Duration", width, e.Duration.Round(time.Millisecond).String()))
	if e.Provider != "" || e.Model != "" {
		fmt.Fprintln(w, shared.RenderKV("Model", width, strings.Trim(e.Provider+"/"+e.Model, "/")))
	}
	if e.URL != "" {
		fmt.Fprintln(w, shared.RenderKV("URL", width, fmt.Sprintf("%s (%s, %d)", e.URL, e.Placement, e.StatusCode)))
	}
	if e.Error != "" {
		fmt.Fprintln(w, shared.RenderKV("Error", width, e.Error))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, shared.Bold.Render("Prompt"))
	fmt.Fprintln(w, e.Prompt)
	if len(e.Response) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, shared.Bold.Render("Response"))
		fmt.Fprintln(w, string(e.Response))
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
