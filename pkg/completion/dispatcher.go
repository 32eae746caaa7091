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

package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/tracing"
	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

// Result is a successful completion.
type Result struct {
	// Value is the decoded JSON body.
	Value any
	// Raw is the response body exactly as received.
	Raw json.RawMessage
	// URL is the candidate that answered.
	URL string
	// Placement is where that candidate carried the session id.
	Placement Placement
	// StatusCode is the 2xx status returned.
	StatusCode int
	// Attempts counts every request issued, including the successful one.
	Attempts int
	// CorrelationID is the id sent with every attempt of this run.
	CorrelationID string
	// Provider and Model are the values sent, after configured defaults
	// were applied. Either may be empty when neither side set one.
	Provider string
	Model    string
}

// Dispatcher walks the endpoint plan for one configured service.
// It is safe for concurrent use; each Complete call keeps its own state.
type Dispatcher struct {
	settings  Settings
	transport Transport
	plan      Plan
	headers   http.Header
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *tracing.MetricsCollector
	onAttempt AttemptHook
}

// AttemptHook is called before each request with the 1-based attempt
// number and the candidate about to be tried. It runs on the calling
// goroutine and must not block.
type AttemptHook func(n int, cand Candidate)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithTracer sets the tracer used for run and attempt spans.
// Defaults to the global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithMetrics enables metric recording.
func WithMetrics(metrics *tracing.MetricsCollector) Option {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// WithAttemptHook registers a callback fired before every attempt.
func WithAttemptHook(hook AttemptHook) Option {
	return func(d *Dispatcher) {
		d.onAttempt = hook
	}
}

// NewDispatcher validates settings and precomputes the endpoint plan.
func NewDispatcher(settings Settings, transport Transport, opts ...Option) (*Dispatcher, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, &cortensorerrors.ConfigError{
			Key:    "transport",
			Reason: "a transport is required",
		}
	}

	d := &Dispatcher{
		settings:  settings,
		transport: transport,
		plan:      NewPlan(strings.TrimSpace(settings.BaseURL), settings.SessionID),
		headers:   BuildHeaders(settings),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer("github.com/tombee/cortensor/pkg/completion")
	}
	d.logger = log.WithComponent(d.logger, "dispatcher")

	return d, nil
}

// Plan returns the probe order this Dispatcher follows.
func (d *Dispatcher) Plan() Plan {
	plan := make(Plan, len(d.plan))
	for i, cands := range d.plan {
		plan[i] = append([]Candidate(nil), cands...)
	}
	return plan
}

// cursor is a position in the plan.
type cursor struct {
	scheme    int
	candidate int
}

// advance returns the position to try after an attempt at c ended with kind,
// and false when nothing is left to try. A scheme failure abandons the rest
// of the current scheme's candidates.
func (c cursor) advance(kind OutcomeKind, plan Plan) (cursor, bool) {
	if kind == OutcomeSchemeFailure {
		c = cursor{scheme: c.scheme + 1}
	} else {
		c.candidate++
		if c.candidate >= len(plan[c.scheme]) {
			c = cursor{scheme: c.scheme + 1}
		}
	}
	for c.scheme < len(plan) && len(plan[c.scheme]) == 0 {
		c.scheme++
	}
	return c, c.scheme < len(plan)
}

// Complete sends prompt to the first candidate that accepts it. Empty
// provider and model fall back to the configured defaults and are omitted
// from the payload when those are empty too.
//
// Errors:
//   - *errors.ValidationError for an empty prompt
//   - *errors.HTTPStatusError for a non-404 error status
//   - *errors.ResponseDecodeError for a 2xx body that is not JSON
//   - *errors.ExhaustedError when every candidate failed
//   - the context's error when ctx ends first
func (d *Dispatcher) Complete(ctx context.Context, prompt, provider, model string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, &cortensorerrors.ValidationError{
			Field:      "prompt",
			Message:    "prompt must not be empty",
			Suggestion: "Pass the prompt as an argument or on stdin",
		}
	}
	if provider == "" {
		provider = d.settings.DefaultProvider
	}
	if model == "" {
		model = d.settings.DefaultModel
	}

	ctx, corrID := tracing.EnsureContext(ctx)
	logger := log.WithCorrelationID(d.logger, corrID.String())

	bodies, err := d.encodeBodies(BuildPayload(d.settings, prompt, provider, model))
	if err != nil {
		return nil, err
	}

	ctx, span := d.tracer.Start(ctx, "completion.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cortensor.correlation_id", corrID.String()),
			attribute.Int("cortensor.candidates", d.plan.Len()),
			attribute.String("cortensor.provider", provider),
			attribute.String("cortensor.model", model),
		),
	)
	defer span.End()

	start := time.Now()
	if d.metrics != nil {
		d.metrics.RecordCompletionStart(ctx)
	}
	finish := func(result string) {
		if d.metrics != nil {
			d.metrics.RecordCompletionEnd(ctx, result, time.Since(start))
		}
	}

	var (
		pos      cursor
		attempts int
		lastErr  error
		more     = d.plan.Len() > 0
	)
	for more {
		if err := ctx.Err(); err != nil {
			finish("canceled")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		cand := d.plan[pos.scheme][pos.candidate]
		attempts++
		outcome := d.attempt(ctx, logger, cand, bodies[cand.Placement], attempts)

		// a transport error caused by the caller's context is not a
		// candidate failure
		if outcome.Kind == OutcomeTransientConnection || outcome.Kind == OutcomeSchemeFailure {
			if err := ctx.Err(); err != nil {
				finish("canceled")
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}

		switch outcome.Kind {
		case OutcomeSuccess:
			finish(outcome.Kind.String())
			span.SetAttributes(
				attribute.String("cortensor.url", cand.URL),
				attribute.Int("cortensor.attempts", attempts),
			)
			span.SetStatus(codes.Ok, "")
			logger.Info("completion succeeded",
				slog.String(log.URLKey, cand.URL),
				slog.String("placement", cand.Placement.String()),
				slog.Int("attempts", attempts),
				slog.Int64(log.DurationKey, time.Since(start).Milliseconds()),
			)
			return &Result{
				Value:         outcome.Value,
				Raw:           outcome.Raw,
				URL:           cand.URL,
				Placement:     cand.Placement,
				StatusCode:    outcome.StatusCode,
				Attempts:      attempts,
				CorrelationID: corrID.String(),
				Provider:      provider,
				Model:         model,
			}, nil

		case OutcomeFatalHTTP, OutcomeFatalDecode:
			finish(outcome.Kind.String())
			span.RecordError(outcome.Err)
			span.SetStatus(codes.Error, outcome.Err.Error())
			logger.Warn("completion failed",
				slog.String(log.URLKey, cand.URL),
				slog.Int("attempts", attempts),
				log.Error(outcome.Err),
			)
			return nil, outcome.Err
		}

		lastErr = outcome.Err
		pos, more = pos.advance(outcome.Kind, d.plan)
	}

	exhausted := &cortensorerrors.ExhaustedError{Attempts: attempts, Last: lastErr}
	finish("exhausted")
	span.RecordError(exhausted)
	span.SetStatus(codes.Error, exhausted.Error())
	logger.Warn("all endpoint candidates failed",
		slog.Int("attempts", attempts),
		log.Error(lastErr),
	)
	return nil, exhausted
}

// attempt issues one request and classifies the result.
func (d *Dispatcher) attempt(ctx context.Context, logger *slog.Logger, cand Candidate, body []byte, n int) Outcome {
	scheme := schemeOf(cand.URL)
	ctx, span := d.tracer.Start(ctx, "completion.attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodPost),
			attribute.String("url.full", cand.URL),
			attribute.String("cortensor.scheme", scheme),
			attribute.String("cortensor.placement", cand.Placement.String()),
			attribute.Int("cortensor.attempt", n),
		),
	)
	defer span.End()

	logger.Info("POST "+cand.URL,
		slog.String("placement", cand.Placement.String()),
		slog.Int("attempt", n),
	)
	log.Trace(ctx, logger, "request body", slog.Int("bytes", len(body)))
	if d.onAttempt != nil {
		d.onAttempt(n, cand)
	}

	start := time.Now()
	resp, err := d.transport.Post(ctx, Request{
		URL:       cand.URL,
		Header:    d.headers,
		Body:      body,
		Timeout:   d.settings.callTimeout(),
		VerifyTLS: !d.settings.TLSInsecure,
	})
	outcome := Classify(cand.URL, resp, err)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.String("cortensor.outcome", outcome.Kind.String()))
	if outcome.StatusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", outcome.StatusCode))
	}
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
	}
	if d.metrics != nil {
		d.metrics.RecordAttempt(ctx, scheme, cand.Placement.String(), outcome.Kind.String(), elapsed)
	}

	attrs := []any{
		slog.String(log.URLKey, cand.URL),
		slog.String("outcome", outcome.Kind.String()),
		slog.Int64(log.DurationKey, elapsed.Milliseconds()),
	}
	switch outcome.Kind {
	case OutcomeNotFound:
		logger.Warn("endpoint not found, trying next candidate", attrs...)
	case OutcomeSchemeFailure:
		logger.Warn("tls error, switching scheme",
			append(attrs, slog.String("scheme", scheme), log.Error(outcome.Err))...)
	case OutcomeTransientConnection:
		logger.Warn("request error, trying next candidate",
			append(attrs, log.Error(outcome.Err))...)
	}

	return outcome
}

func (d *Dispatcher) encodeBodies(payload Payload) (map[Placement][]byte, error) {
	bodies := make(map[Placement][]byte, 2)
	for _, placement := range []Placement{PlacementBody, PlacementPath} {
		b, err := json.Marshal(payload.ForPlacement(placement))
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", placement, err)
		}
		bodies[placement] = b
	}
	return bodies, nil
}
