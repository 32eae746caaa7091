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

// Package server implements an MCP server that exposes the completion
// client as tools over stdio.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/tombee/cortensor/internal/history"
	"github.com/tombee/cortensor/internal/jq"
	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/tracing"
	"github.com/tombee/cortensor/pkg/completion"
)

// Tool names.
const (
	ToolComplete   = "cortensor_complete"
	ToolCandidates = "cortensor_candidates"
)

// DefaultCallsPerMinute is the tool call rate limit when none is configured.
const DefaultCallsPerMinute = 60

// Completer runs completions. *completion.Dispatcher implements it.
type Completer interface {
	Complete(ctx context.Context, prompt, provider, model string) (*completion.Result, error)
	Plan() completion.Plan
}

// Recorder stores completion history. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
}

// Server wraps the MCP server and provides the cortensor tools.
type Server struct {
	mcpServer *server.MCPServer
	completer Completer
	history   Recorder
	limiter   *rate.Limiter
	jq        *jq.Executor
	name      string
	version   string
	logger    *slog.Logger
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Name is the server name (default: "cortensor").
	Name string

	// Version is the cortensor version (default: "dev").
	Version string

	// CallsPerMinute limits tool calls (default: 60).
	CallsPerMinute int

	// History records completions when non-nil.
	History Recorder

	// Logger must not write to stdout, which carries the protocol.
	Logger *slog.Logger
}

// NewServer creates an MCP server backed by c.
func NewServer(c Completer, config ServerConfig) (*Server, error) {
	if c == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if config.Name == "" {
		config.Name = "cortensor"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	if config.CallsPerMinute <= 0 {
		config.CallsPerMinute = DefaultCallsPerMinute
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		mcpServer: server.NewMCPServer(config.Name, config.Version),
		completer: c,
		history:   config.History,
		limiter:   rate.NewLimiter(rate.Limit(float64(config.CallsPerMinute)/60.0), config.CallsPerMinute),
		jq:        jq.NewExecutor(0, 0),
		name:      config.Name,
		version:   config.Version,
		logger:    log.WithComponent(config.Logger, "mcp"),
	}
	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        ToolComplete,
		Description: "Send a prompt to the Cortensor completion service. Endpoint shapes and http/https are tried automatically. Returns the service response as JSON.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "The prompt text",
				},
				"provider": map[string]any{
					"type":        "string",
					"description": "Provider name; the configured default when omitted",
				},
				"model": map[string]any{
					"type":        "string",
					"description": "Model name; the configured default when omitted",
				},
				"jq": map[string]any{
					"type":        "string",
					"description": "Optional jq expression applied to the response, e.g. '.choices[0].text'",
				},
			},
			Required: []string{"prompt"},
		},
	}, s.handleComplete)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        ToolCandidates,
		Description: "List the endpoint URLs that would be tried, in order.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, s.handleCandidates)
}

// Run serves the MCP protocol on in and out until ctx is done or in is
// closed.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting MCP server", slog.String("version", s.version))

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// CompleteResult is the JSON returned by the cortensor_complete tool.
type CompleteResult struct {
	CorrelationID string          `json:"correlation_id"`
	URL           string          `json:"url"`
	Placement     string          `json:"placement"`
	Attempts      int             `json:"attempts"`
	Response      json.RawMessage `json:"response,omitempty"`
	Result        any             `json:"result,omitempty"`
}

func (s *Server) handleComplete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.limiter.Allow() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	prompt, err := request.RequireString("prompt")
	if err != nil {
		return errorResponse("Missing or invalid 'prompt' argument"), nil
	}
	provider := request.GetString("provider", "")
	model := request.GetString("model", "")

	var query *jq.Query
	if expr := request.GetString("jq", ""); expr != "" {
		query, err = jq.Compile(expr)
		if err != nil {
			return errorResponse(err.Error()), nil
		}
	}

	ctx, correlationID := tracing.EnsureContext(ctx)
	start := time.Now()
	res, err := s.completer.Complete(ctx, prompt, provider, model)
	s.record(ctx, history.Request{
		CorrelationID: correlationID.String(),
		Prompt:        prompt,
		Provider:      provider,
		Model:         model,
	}, res, err, time.Since(start))
	if err != nil {
		return errorResponse(fmt.Sprintf("Completion failed: %v", err)), nil
	}

	out := CompleteResult{
		CorrelationID: res.CorrelationID,
		URL:           res.URL,
		Placement:     res.Placement.String(),
		Attempts:      res.Attempts,
	}
	if query != nil {
		v, err := s.jq.Eval(ctx, query, jq.FromResult(res))
		if err != nil {
			return errorResponse(fmt.Sprintf("jq failed: %v", err)), nil
		}
		out.Result = v
	} else {
		out.Response = res.Raw
	}

	return jsonResponse(out)
}

func (s *Server) handleCandidates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type candidate struct {
		URL       string `json:"url"`
		Placement string `json:"placement"`
	}
	var out []candidate
	for _, scheme := range s.completer.Plan() {
		for _, c := range scheme {
			out = append(out, candidate{URL: c.URL, Placement: c.Placement.String()})
		}
	}
	return jsonResponse(out)
}

func (s *Server) record(ctx context.Context, req history.Request, res *completion.Result, err error, elapsed time.Duration) {
	if s.history == nil {
		return
	}
	if rerr := s.history.Record(context.WithoutCancel(ctx), history.NewEntry(req, res, err, elapsed)); rerr != nil {
		s.logger.Warn("failed to record history", log.Error(rerr))
	}
}

func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

func jsonResponse(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(data)),
		},
	}, nil
}
