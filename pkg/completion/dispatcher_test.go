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
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/cortensor/internal/tracing"
	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

type step struct {
	status int
	body   string
	err    error
}

// fakeTransport replays scripted steps in order and records every request.
type fakeTransport struct {
	mu       sync.Mutex
	steps    []step
	requests []Request
	onPost   func()
}

func (f *fakeTransport) Post(ctx context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.onPost != nil {
		f.onPost()
	}
	if len(f.steps) == 0 {
		return nil, errors.New("no scripted response")
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	if s.err != nil {
		return nil, s.err
	}
	return &Response{StatusCode: s.status, Body: []byte(s.body)}, nil
}

func (f *fakeTransport) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.URL
	}
	return out
}

func testSettings() Settings {
	return Settings{
		BaseURL:   "h",
		APIKey:    "k",
		SessionID: "7",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(t *testing.T, s Settings, steps ...step) (*Dispatcher, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{steps: steps}
	d, err := NewDispatcher(s, ft, WithLogger(quietLogger()))
	require.NoError(t, err)
	return d, ft
}

var (
	tlsErr  = &url.Error{Op: "Post", URL: "https://h", Err: x509.UnknownAuthorityError{}}
	connErr = &url.Error{Op: "Post", URL: "http://h", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
)

func TestNewDispatcher_Validation(t *testing.T) {
	ft := &fakeTransport{}

	_, err := NewDispatcher(Settings{APIKey: "k", SessionID: "1"}, ft)
	var verr *cortensorerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "base_url", verr.Field)

	_, err = NewDispatcher(Settings{BaseURL: "h", SessionID: "1"}, ft)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "api_key", verr.Field)

	_, err = NewDispatcher(Settings{BaseURL: "h", APIKey: "k"}, ft)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "session_id", verr.Field)

	_, err = NewDispatcher(testSettings(), nil)
	var cerr *cortensorerrors.ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestComplete_NotFoundThenSuccess(t *testing.T) {
	d, ft := newTestDispatcher(t, testSettings(),
		step{status: 404},
		step{status: 404},
		step{status: 200, body: `{"text":"hi"}`},
	)

	res, err := d.Complete(context.Background(), "hello", "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://h/api/v1/completions",
		"http://h/api/v1/completions/7",
		"https://h/api/v1/completions",
	}, ft.urls())
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "https://h/api/v1/completions", res.URL)
	assert.Equal(t, PlacementBody, res.Placement)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, map[string]any{"text": "hi"}, res.Value)
	assert.JSONEq(t, `{"text":"hi"}`, string(res.Raw))
	assert.NotEmpty(t, res.CorrelationID)
}

func TestComplete_SchemeFailureSkipsRemainingCandidates(t *testing.T) {
	s := testSettings()
	s.BaseURL = "https://h"
	d, ft := newTestDispatcher(t, s,
		step{err: tlsErr},
		step{status: 200, body: `{}`},
	)

	res, err := d.Complete(context.Background(), "hello", "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://h/api/v1/completions",
		"http://h/api/v1/completions",
	}, ft.urls())
	assert.Equal(t, 2, res.Attempts)
}

func TestComplete_SchemeFailureOnPathCandidate(t *testing.T) {
	d, ft := newTestDispatcher(t, testSettings(),
		step{status: 404},
		step{err: tlsErr},
		step{status: 404},
		step{status: 200, body: `1`},
	)

	res, err := d.Complete(context.Background(), "hello", "", "")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, "https://h/api/v1/completions/7", res.URL)
	assert.Equal(t, PlacementPath, res.Placement)
	assert.Len(t, ft.urls(), 4)
}

func TestComplete_FatalStatusStopsImmediately(t *testing.T) {
	d, ft := newTestDispatcher(t, testSettings(),
		step{status: 500, body: "boom"},
		step{status: 200, body: `{}`},
	)

	_, err := d.Complete(context.Background(), "hello", "", "")
	require.Error(t, err)

	var statusErr *cortensorerrors.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 500, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Body)

	var exhausted *cortensorerrors.ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
	assert.Len(t, ft.urls(), 1)
}

func TestComplete_FatalAfterNotFound(t *testing.T) {
	d, ft := newTestDispatcher(t, testSettings(),
		step{status: 404},
		step{status: 401},
	)

	_, err := d.Complete(context.Background(), "hello", "", "")
	var statusErr *cortensorerrors.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 401, statusErr.StatusCode)
	assert.Len(t, ft.urls(), 2)
}

func TestComplete_DecodeErrorIsFatal(t *testing.T) {
	d, ft := newTestDispatcher(t, testSettings(),
		step{status: 200, body: "not json"},
		step{status: 200, body: `{}`},
	)

	_, err := d.Complete(context.Background(), "hello", "", "")
	var decodeErr *cortensorerrors.ResponseDecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Len(t, ft.urls(), 1)
}

func TestComplete_ConnectionFailuresExhaust(t *testing.T) {
	d, ft := newTestDispatcher(t, testSettings(),
		step{err: connErr},
		step{err: connErr},
		step{err: connErr},
		step{err: connErr},
	)

	_, err := d.Complete(context.Background(), "hello", "", "")
	require.Error(t, err)

	var exhausted *cortensorerrors.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 4, exhausted.Attempts)

	var cerr *cortensorerrors.ConnectionError
	assert.True(t, errors.As(err, &cerr))
	assert.Len(t, ft.urls(), 4)
}

func TestComplete_AllNotFoundExhausts(t *testing.T) {
	d, _ := newTestDispatcher(t, testSettings(),
		step{status: 404}, step{status: 404}, step{status: 404}, step{status: 404},
	)

	_, err := d.Complete(context.Background(), "hello", "", "")

	var exhausted *cortensorerrors.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	var statusErr *cortensorerrors.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 404, statusErr.StatusCode)
}

func TestComplete_BothSchemesFailTLS(t *testing.T) {
	d, ft := newTestDispatcher(t, testSettings(),
		step{err: tlsErr},
		step{err: tlsErr},
	)

	_, err := d.Complete(context.Background(), "hello", "", "")

	var exhausted *cortensorerrors.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 2, exhausted.Attempts)
	var schemeErr *cortensorerrors.SchemeError
	assert.True(t, errors.As(err, &schemeErr))
	assert.Equal(t, []string{
		"http://h/api/v1/completions",
		"https://h/api/v1/completions",
	}, ft.urls())
}

func TestComplete_RequestShape(t *testing.T) {
	s := testSettings()
	s.TLSInsecure = true
	s.HostHeader = "router.internal"
	s.PromptType = "abc"
	d, ft := newTestDispatcher(t, s,
		step{status: 404},
		step{status: 200, body: `{}`},
	)

	_, err := d.Complete(context.Background(), "hello", "p", "m")
	require.NoError(t, err)
	require.Len(t, ft.requests, 2)

	for _, req := range ft.requests {
		assert.Equal(t, "Bearer k", req.Header.Get("Authorization"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.Equal(t, "router.internal", req.Header.Get(HeaderHost))
		assert.False(t, req.VerifyTLS)
		assert.Equal(t, DefaultCallTimeout, req.Timeout)
	}

	var body, path map[string]any
	require.NoError(t, json.Unmarshal(ft.requests[0].Body, &body))
	require.NoError(t, json.Unmarshal(ft.requests[1].Body, &path))

	assert.Equal(t, "7", body["session_id"])
	assert.Equal(t, float64(1), body["prompt_type"])
	assert.Equal(t, float64(180), body["timeout"])
	assert.Equal(t, "p", body["provider"])
	assert.Equal(t, "m", body["model"])

	assert.NotContains(t, path, "session_id")
	assert.Equal(t, "hello", path["prompt"])
}

func TestComplete_VerifiesTLSByDefault(t *testing.T) {
	s := testSettings()
	s.CallTimeout = 5 * time.Second
	d, ft := newTestDispatcher(t, s, step{status: 200, body: `{}`})

	_, err := d.Complete(context.Background(), "hello", "", "")
	require.NoError(t, err)
	require.Len(t, ft.requests, 1)
	assert.True(t, ft.requests[0].VerifyTLS)
	assert.Equal(t, 5*time.Second, ft.requests[0].Timeout)
}

func TestComplete_DefaultProviderAndModel(t *testing.T) {
	s := testSettings()
	s.DefaultProvider = "dp"
	s.DefaultModel = "dm"
	d, ft := newTestDispatcher(t, s, step{status: 200, body: `{}`}, step{status: 200, body: `{}`})

	res, err := d.Complete(context.Background(), "hello", "", "")
	require.NoError(t, err)
	assert.Equal(t, "dp", res.Provider)
	assert.Equal(t, "dm", res.Model)
	res, err = d.Complete(context.Background(), "hello", "override", "")
	require.NoError(t, err)
	assert.Equal(t, "override", res.Provider)
	assert.Equal(t, "dm", res.Model)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(ft.requests[0].Body, &first))
	require.NoError(t, json.Unmarshal(ft.requests[1].Body, &second))
	assert.Equal(t, "dp", first["provider"])
	assert.Equal(t, "dm", first["model"])
	assert.Equal(t, "override", second["provider"])
	assert.Equal(t, "dm", second["model"])
}

func TestComplete_EmptyPrompt(t *testing.T) {
	d, ft := newTestDispatcher(t, testSettings())

	_, err := d.Complete(context.Background(), "  ", "", "")
	var verr *cortensorerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "prompt", verr.Field)
	assert.Empty(t, ft.urls())
}

func TestComplete_CanceledContext(t *testing.T) {
	d, ft := newTestDispatcher(t, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Complete(ctx, "hello", "", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ft.urls())
}

func TestComplete_CanceledDuringAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ft := &fakeTransport{
		steps:  []step{{err: context.Canceled}, {status: 200, body: `{}`}},
		onPost: cancel,
	}
	d, err := NewDispatcher(testSettings(), ft, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = d.Complete(ctx, "hello", "", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, ft.urls(), 1)
}

func TestComplete_KeepsCorrelationID(t *testing.T) {
	d, _ := newTestDispatcher(t, testSettings(), step{status: 200, body: `{}`})

	id := tracing.NewCorrelationID()
	res, err := d.Complete(tracing.ToContext(context.Background(), id), "hello", "", "")
	require.NoError(t, err)
	assert.Equal(t, id.String(), res.CorrelationID)
}

func TestComplete_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ft := &fakeTransport{steps: []step{{status: 404}, {status: 200, body: `{}`}}}
	d, err := NewDispatcher(testSettings(), ft,
		WithLogger(quietLogger()),
		WithTracer(tp.Tracer("test")),
	)
	require.NoError(t, err)

	_, err = d.Complete(context.Background(), "hello", "", "")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"completion.attempt", "completion.attempt", "completion.complete"}, names)
}

func TestComplete_RecordsMetrics(t *testing.T) {
	provider := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := tracing.NewMetricsCollector(provider)
	require.NoError(t, err)

	ft := &fakeTransport{steps: []step{{status: 200, body: `{}`}}}
	d, err := NewDispatcher(testSettings(), ft, WithLogger(quietLogger()), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = d.Complete(context.Background(), "hello", "", "")
	require.NoError(t, err)
	assert.Zero(t, metrics.ActiveCompletions())
}

func TestComplete_AttemptHook(t *testing.T) {
	ft := &fakeTransport{steps: []step{{status: 404}, {status: 200, body: `{}`}}}
	var seen []string
	d, err := NewDispatcher(testSettings(), ft,
		WithLogger(quietLogger()),
		WithAttemptHook(func(n int, cand Candidate) {
			seen = append(seen, fmt.Sprintf("%d %s %s", n, cand.Placement, cand.URL))
		}),
	)
	require.NoError(t, err)

	_, err = d.Complete(context.Background(), "hi", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1 body http://h/api/v1/completions",
		"2 path http://h/api/v1/completions/7",
	}, seen)
}

func TestDispatcher_PlanIsCopy(t *testing.T) {
	d, _ := newTestDispatcher(t, testSettings())

	plan := d.Plan()
	require.Equal(t, 4, plan.Len())
	plan[0][0].URL = "mutated"

	assert.Equal(t, "http://h/api/v1/completions", d.Plan()[0][0].URL)
}

func TestCursorAdvance(t *testing.T) {
	plan := NewPlan("h", "1")

	next, ok := cursor{}.advance(OutcomeNotFound, plan)
	assert.True(t, ok)
	assert.Equal(t, cursor{scheme: 0, candidate: 1}, next)

	next, ok = cursor{scheme: 0, candidate: 1}.advance(OutcomeTransientConnection, plan)
	assert.True(t, ok)
	assert.Equal(t, cursor{scheme: 1}, next)

	next, ok = cursor{}.advance(OutcomeSchemeFailure, plan)
	assert.True(t, ok)
	assert.Equal(t, cursor{scheme: 1}, next)

	_, ok = cursor{scheme: 1}.advance(OutcomeSchemeFailure, plan)
	assert.False(t, ok)

	_, ok = cursor{scheme: 1, candidate: 1}.advance(OutcomeNotFound, plan)
	assert.False(t, ok)
}
