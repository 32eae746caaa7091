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
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/history"
	"github.com/tombee/cortensor/internal/jq"
	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/tracing"
	"github.com/tombee/cortensor/pkg/completion"
)

// Completer runs one completion. *completion.Dispatcher implements it.
type Completer interface {
	Complete(ctx context.Context, prompt, provider, model string) (*completion.Result, error)
}

// Recorder stores completion history. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
}

// options are the flags shared by complete and batch.
type options struct {
	provider string
	model    string
	jq       string
	raw      bool
}

// NewCommand creates the complete command.
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "complete [prompt...]",
		Short: "Send a prompt to the completion service",
		Annotations: map[string]string{
			"group": "completion",
		},
		Long: `Complete sends a prompt to the configured Cortensor session and prints
the decoded JSON response.

The prompt is taken from the arguments, or read from stdin when no
arguments are given and stdin is not a terminal.

Every scheme variant and endpoint shape of the configured URL is tried in
order until one answers. Use 'cortensor candidates' to see that order.

Output:
  (default)  Pretty-printed response body
  --raw      Response body exactly as received
  --jq EXPR  Result of a jq expression over the response
  --json     Envelope with the response and attempt metadata

Exit codes:
  0  success
  1  unexpected failure
  2  missing or invalid configuration
  3  invalid input
  4  the completion service could not be reached or failed`,
		Example: `  cortensor complete "Summarise the plot of Hamlet"
  echo "Hello" | cortensor complete --model llama-3
  cortensor complete --jq '.choices[0].text' "Write a haiku"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd, args, opts)
		},
	}

	addFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print the response body exactly as received")

	return cmd
}

func addFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Provider name sent with the request")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model name sent with the request")
	cmd.Flags().StringVar(&opts.jq, "jq", "", "jq expression applied to the response")
}

func runComplete(cmd *cobra.Command, args []string, opts options) error {
	in := cmd.InOrStdin()
	prompt, err := shared.ReadPrompt(args, in, isTerminal(in))
	if err != nil {
		return shared.NewInputError("no prompt", err)
	}

	query, err := compileQuery(opts.jq)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var progress *shared.Progress
	var extra []completion.Option
	if !shared.GetQuiet() && !shared.GetJSON() {
		progress = shared.NewProgress("Waiting for completion")
		extra = append(extra, progress.Hook())
	}

	rt, err := shared.NewRuntime(ctx, extra...)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	r := &runner{
		completer: rt.Dispatcher,
		executor:  jq.NewExecutor(0, 0),
		logger:    rt.Logger,
		out:       cmd.OutOrStdout(),
		json:      shared.GetJSON(),
		progress:  progress,
	}
	if rt.History != nil {
		r.history = rt.History
	}

	return r.complete(ctx, prompt, opts, query)
}

// compileQuery returns nil for an empty expression.
func compileQuery(expr string) (*jq.Query, error) {
	if expr == "" {
		return nil, nil
	}
	q, err := jq.Compile(expr)
	if err != nil {
		return nil, shared.NewInputError("invalid --jq expression", err)
	}
	return q, nil
}

// runner holds what a single completion needs. Tests build it directly.
type runner struct {
	completer Completer
	history   Recorder
	executor  *jq.Executor
	logger    *slog.Logger
	out       io.Writer
	json      bool
	progress  *shared.Progress
}

func (r *runner) complete(ctx context.Context, prompt string, opts options, query *jq.Query) error {
	ctx, id := tracing.EnsureContext(ctx)

	if r.progress != nil {
		r.progress.Start()
	}

	start := time.Now()
	res, err := r.completer.Complete(ctx, prompt, opts.provider, opts.model)
	elapsed := time.Since(start)

	if r.progress != nil {
		r.progress.Stop()
	}

	r.record(ctx, history.Request{
		CorrelationID: id.String(),
		Prompt:        prompt,
		Provider:      opts.provider,
		Model:         opts.model,
	}, res, err, elapsed)

	if err != nil {
		if r.json {
			_ = shared.EmitJSONError(r.out, "complete", jsonErrors(err))
		}
		return shared.CompletionError(err)
	}

	value := res.Value
	if query != nil {
		value, err = r.executor.Eval(ctx, query, jq.FromResult(res))
		if err != nil {
			return shared.NewInputError("jq evaluation failed", err)
		}
	}

	if r.json {
		return shared.EmitJSON(r.out, newCompleteResponse(res, value, elapsed))
	}
	if opts.raw && query == nil {
		return writeRaw(r.out, res.Raw)
	}
	return writeValue(r.out, value)
}

func (r *runner) record(ctx context.Context, req history.Request, res *completion.Result, err error, elapsed time.Duration) {
	if r.history == nil {
		return
	}
	if recErr := r.history.Record(context.WithoutCancel(ctx), history.NewEntry(req, res, err, elapsed)); recErr != nil {
		r.logger.Warn("failed to record history", log.Error(recErr))
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
