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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/tombee/cortensor/internal/history"
	"github.com/tombee/cortensor/internal/jq"
	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/tracing"
	"github.com/tombee/cortensor/pkg/completion"
	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

// CompletionRequest is the body of POST /v1/completions.
type CompletionRequest struct {
	Prompt   string `json:"prompt"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	// JQ, when set, is applied to the service response and the output
	// returned in Result.
	JQ string `json:"jq,omitempty"`
}

// CompletionResponse is returned on success.
type CompletionResponse struct {
	CorrelationID string          `json:"correlation_id"`
	URL           string          `json:"url"`
	Placement     string          `json:"placement"`
	StatusCode    int             `json:"status_code"`
	Attempts      int             `json:"attempts"`
	Response      json.RawMessage `json:"response"`
	Result        any             `json:"result,omitempty"`
}

// ErrorResponse is returned for every failure.
type ErrorResponse struct {
	Error         string `json:"error"`
	Type          string `json:"type"`
	Suggestion    string `json:"suggestion,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Attempts      int    `json:"attempts,omitempty"`

	// UpstreamStatus is the router's HTTP status when one was received.
	UpstreamStatus int `json:"upstream_status,omitempty"`
}

// CandidateInfo describes one entry of the endpoint plan.
type CandidateInfo struct {
	Scheme    int    `json:"scheme"`
	URL       string `json:"url"`
	Placement string `json:"placement"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithCorrelationID(s.logger, tracing.FromContextOrEmpty(ctx).String())

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	var req CompletionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "validation", "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "validation", "invalid JSON body: "+err.Error())
		return
	}

	var query *jq.Query
	if strings.TrimSpace(req.JQ) != "" {
		q, err := jq.Compile(req.JQ)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "validation", err.Error())
			return
		}
		query = q
	}

	start := time.Now()
	res, err := s.current().Complete(ctx, req.Prompt, req.Provider, req.Model)
	s.record(ctx, logger, req, res, err, time.Since(start))
	if err != nil {
		s.writeCompletionError(w, r, err)
		return
	}

	out := CompletionResponse{
		CorrelationID: res.CorrelationID,
		URL:           res.URL,
		Placement:     res.Placement.String(),
		StatusCode:    res.StatusCode,
		Attempts:      res.Attempts,
		Response:      res.Raw,
	}
	if query != nil {
		v, err := s.jq.Eval(ctx, query, jq.FromResult(res))
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "jq", err.Error())
			return
		}
		out.Result = v
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) record(ctx context.Context, logger *slog.Logger, req CompletionRequest, res *completion.Result, err error, elapsed time.Duration) {
	if s.opts.History == nil {
		return
	}
	entry := history.NewEntry(history.Request{
		CorrelationID: tracing.FromContextOrEmpty(ctx).String(),
		Prompt:        req.Prompt,
		Provider:      req.Provider,
		Model:         req.Model,
	}, res, err, elapsed)
	if rerr := s.opts.History.Record(context.WithoutCancel(ctx), entry); rerr != nil {
		logger.Warn("failed to record history", log.Error(rerr))
	}
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	plan := s.current().Plan()
	out := make([]CandidateInfo, 0, plan.Len())
	for i, scheme := range plan {
		for _, c := range scheme {
			out = append(out, CandidateInfo{Scheme: i, URL: c.URL, Placement: c.Placement.String()})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"runtime":    runtime.Version(),
		"candidates": "ok",
	}
	if s.current().Plan().Len() == 0 {
		checks["candidates"] = "none"
	}
	if s.limiter != nil {
		checks["rate_limit"] = "enabled"
	}
	if s.opts.Auth != nil {
		checks["auth"] = "jwt"
	}
	if n := s.reloads.Load(); n > 0 {
		checks["reloads"] = strconv.FormatInt(n, 10)
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Version:   s.opts.Version,
		Checks:    checks,
	})
}

func (s *Server) writeCompletionError(w http.ResponseWriter, r *http.Request, err error) {
	body := ErrorResponse{
		Error:         err.Error(),
		Type:          cortensorerrors.TypeOf(err),
		CorrelationID: tracing.FromContextOrEmpty(r.Context()).String(),
	}

	body.Suggestion = cortensorerrors.SuggestionOf(err)
	body.Attempts = cortensorerrors.Attempts(err)
	body.UpstreamStatus = cortensorerrors.UpstreamStatus(err)

	status := StatusFor(err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		body.Type = "timeout"
	case errors.Is(err, context.Canceled):
		body.Type = "canceled"
	}
	writeJSON(w, status, body)
}

// StatusFor maps a completion error to the HTTP status returned to the
// caller.
func StatusFor(err error) int {
	var (
		validation *cortensorerrors.ValidationError
		config     *cortensorerrors.ConfigError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &config):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}

	switch cortensorerrors.TypeOf(err) {
	case "exhausted", "http_status", "not_found", "decode", "tls", "connection":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:         message,
		Type:          kind,
		CorrelationID: tracing.FromContextOrEmpty(r.Context()).String(),
	})
}
