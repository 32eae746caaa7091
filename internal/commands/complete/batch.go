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

package complete

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/history"
	"github.com/tombee/cortensor/internal/jq"
	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/tracing"
	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

// DefaultConcurrency is the number of prompts completed at once.
const DefaultConcurrency = 4

// BatchItem is the outcome of one prompt file.
type BatchItem struct {
	File          string `json:"file"`
	Success       bool   `json:"success"`
	CorrelationID string `json:"correlation_id"`
	URL           string `json:"url,omitempty"`
	Attempts      int    `json:"attempts"`
	DurationMs    int64  `json:"duration_ms"`
	Result        any    `json:"result,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorType     string `json:"error_type,omitempty"`
}

type batchOptions struct {
	options
	concurrency int
	outputDir   string
}

// NewBatchCommand creates the batch command.
func NewBatchCommand() *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "batch <pattern>...",
		Short: "Complete every prompt file matching a glob",
		Annotations: map[string]string{
			"group": "completion",
		},
		Long: `Batch reads each file matching the given glob patterns, sends its
contents as a prompt and reports one JSON line per file in pattern order.

Patterns support ** for recursive matching. With --output-dir each result
is written to <output-dir>/<file name>.json instead of stdout.

The command exits 4 when any prompt fails.`,
		Example: `  cortensor batch 'prompts/**/*.txt'
  cortensor batch --concurrency 8 --jq '.choices[0].text' prompts/*.md
  cortensor batch --output-dir out/ 'prompts/*.txt'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, opts)
		},
	}

	addFlags(cmd, &opts.options)
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", DefaultConcurrency, "Number of prompts to complete at once")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Write one result file per prompt into this directory")

	return cmd
}

func runBatch(cmd *cobra.Command, patterns []string, opts batchOptions) error {
	if opts.concurrency < 1 {
		return shared.NewInputError("--concurrency must be at least 1", nil)
	}

	files, err := expandPatterns(patterns)
	if err != nil {
		return shared.NewInputError("invalid pattern", err)
	}
	if len(files) == 0 {
		return shared.NewInputError(fmt.Sprintf("no files match %s", strings.Join(patterns, " ")), nil)
	}

	query, err := compileQuery(opts.jq)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := shared.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	r := &runner{
		completer: rt.Dispatcher,
		executor:  jq.NewExecutor(0, 0),
		logger:    rt.Logger,
		out:       cmd.OutOrStdout(),
	}
	if rt.History != nil {
		r.history = rt.History
	}

	items := r.batch(ctx, files, opts, query)
	return reportBatch(cmd.OutOrStdout(), cmd.ErrOrStderr(), items, opts.outputDir)
}

// expandPatterns returns the sorted, de-duplicated files matching patterns.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// batch completes every file with at most opts.concurrency in flight.
// Results keep the order of files.
func (r *runner) batch(ctx context.Context, files []string, opts batchOptions, query *jq.Query) []BatchItem {
	items := make([]BatchItem, len(files))

	var g errgroup.Group
	g.SetLimit(opts.concurrency)
	for i, file := range files {
		g.Go(func() error {
			items[i] = r.completeFile(ctx, file, opts.options, query)
			return nil
		})
	}
	_ = g.Wait()

	return items
}

func (r *runner) completeFile(ctx context.Context, file string, opts options, query *jq.Query) BatchItem {
	ctx, id := tracing.EnsureContext(ctx)
	correlationID := id.String()
	item := BatchItem{File: file, CorrelationID: correlationID}

	data, err := os.ReadFile(file)
	if err != nil {
		item.Error = err.Error()
		item.ErrorType = "io"
		return item
	}
	prompt := strings.TrimSpace(string(data))

	start := time.Now()
	res, err := r.completer.Complete(ctx, prompt, opts.provider, opts.model)
	elapsed := time.Since(start)
	item.DurationMs = elapsed.Milliseconds()

	r.record(ctx, history.Request{
		CorrelationID: correlationID,
		Prompt:        prompt,
		Provider:      opts.provider,
		Model:         opts.model,
	}, res, err, elapsed)

	if err != nil {
		item.Error = err.Error()
		item.ErrorType = cortensorerrors.TypeOf(err)
		item.Attempts = cortensorerrors.Attempts(err)
		r.logger.Warn("prompt failed",
			slog.String("file", file),
			slog.String(log.CorrelationIDKey, correlationID),
			log.Error(err),
		)
		return item
	}

	item.Success = true
	item.URL = res.URL
	item.Attempts = res.Attempts
	item.Result = res.Value

	if query != nil {
		v, err := r.executor.Eval(ctx, query, jq.FromResult(res))
		if err != nil {
			item.Success = false
			item.Result = nil
			item.Error = fmt.Sprintf("jq: %v", err)
			item.ErrorType = "jq"
			return item
		}
		item.Result = v
	}
	return item
}

// reportBatch writes items as JSON lines, or into outputDir, and returns
// an error when any item failed.
func reportBatch(out, errOut io.Writer, items []BatchItem, outputDir string) error {
	failed := 0
	for _, item := range items {
		if !item.Success {
			failed++
		}
	}

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return shared.NewFailedError("failed to create output directory", err)
		}
		names := outputNames(items)
		for i, item := range items {
			if err := writeItemFile(filepath.Join(outputDir, names[i]), item); err != nil {
				return shared.NewFailedError("failed to write result", err)
			}
		}
		fmt.Fprintf(errOut, "%s %d succeeded, %d failed\n",
			shared.RenderOK("Done:"), len(items)-failed, failed)
	} else {
		for _, item := range items {
			if err := writeJSONLine(out, item); err != nil {
				return shared.NewFailedError("failed to write result", err)
			}
		}
	}

	if failed > 0 {
		return shared.NewRemoteError(fmt.Sprintf("%d of %d prompts failed", failed, len(items)), nil)
	}
	return nil
}

func writeJSONLine(w io.Writer, item BatchItem) error {
	return shared.EmitJSONLine(w, item)
}

// outputNames picks one result file name per item. The prompt's base
// name is used when it is unique in the batch; otherwise the whole
// cleaned path is flattened, and a numeric suffix breaks any remaining tie.
func outputNames(items []BatchItem) []string {
	bases := make(map[string]int, len(items))
	for _, item := range items {
		bases[filepath.Base(item.File)]++
	}

	taken := make(map[string]bool, len(items))
	names := make([]string, len(items))
	for i, item := range items {
		stem := filepath.Base(item.File)
		if bases[stem] > 1 {
			stem = flattenPath(item.File)
		}
		name := stem + ".json"
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s-%d.json", stem, n)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

func flattenPath(path string) string {
	clean := strings.TrimLeft(filepath.ToSlash(filepath.Clean(path)), "/")
	clean = strings.ReplaceAll(clean, "../", "")
	return strings.ReplaceAll(clean, "/", "_")
}

func writeItemFile(path string, item BatchItem) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := shared.EmitJSON(f, item); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
