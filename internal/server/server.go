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

// Package server exposes the completion client over HTTP for
// 'cortensor serve'.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/cortensor/internal/auth"
	"github.com/tombee/cortensor/internal/history"
	"github.com/tombee/cortensor/internal/jq"
	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/tracing"
	"github.com/tombee/cortensor/pkg/completion"
)

// Completer runs completions. *completion.Dispatcher implements it.
type Completer interface {
	Complete(ctx context.Context, prompt, provider, model string) (*completion.Result, error)
	Plan() completion.Plan
}

// Recorder stores completion history. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
}

// Options configures a Server. Zero values disable the optional parts.
type Options struct {
	Addr            string
	RateLimit       float64
	Burst           int
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration

	// Auth enables bearer-token authentication when non-nil.
	Auth *auth.JWTConfig

	Metrics        *tracing.MetricsCollector
	MetricsHandler http.Handler
	History        Recorder
	Logger         *slog.Logger
	Version        string
}

type completerBox struct{ c Completer }

// Server serves completions over HTTP. The completer can be swapped at
// runtime with SetCompleter; in-flight requests finish on the old one.
type Server struct {
	opts      Options
	completer atomic.Pointer[completerBox]
	limiter   *rate.Limiter
	jq        *jq.Executor
	logger    *slog.Logger
	handler   http.Handler
	started   time.Time
	reloads   atomic.Int64
}

// New creates a server around c.
func New(c Completer, opts Options) (*Server, error) {
	if c == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	s := &Server{
		opts:    opts,
		jq:      jq.NewExecutor(0, 0),
		logger:  log.WithComponent(opts.Logger, "server"),
		started: time.Now(),
	}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst)
	}
	s.completer.Store(&completerBox{c: c})
	s.handler = s.routes()
	return s, nil
}

// SetCompleter replaces the completer used by new requests.
func (s *Server) SetCompleter(c Completer) {
	s.completer.Store(&completerBox{c: c})
}

func (s *Server) current() Completer {
	return s.completer.Load().c
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/completions", auth.RequireScope(auth.ScopeComplete, s.rateLimit(http.HandlerFunc(s.handleComplete))))
	mux.HandleFunc("GET /v1/candidates", s.handleCandidates)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.opts.MetricsHandler)
	}

	var h http.Handler = mux
	if s.opts.Auth != nil {
		h = auth.Middleware(*s.opts.Auth, s.logger, "/healthz", "/metrics")(h)
	}
	h = log.HTTPMiddleware(s.logger, h)
	h = tracing.SpanMiddleware(h)
	return tracing.CorrelationMiddleware(h)
}

// Run listens on opts.Addr and serves until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", slog.Duration("timeout", s.opts.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			if s.opts.Metrics != nil {
				s.opts.Metrics.RecordRateLimited(r.Context())
			}
			retry := time.Duration(float64(time.Second) / float64(s.limiter.Limit()))
			w.Header().Set("Retry-After", fmt.Sprintf("%d", max(1, int(retry.Round(time.Second).Seconds()))))
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
