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

// Package export builds the span exporter named in the tracing config.
package export

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// Exporter kinds.
const (
	KindNone     = "none"
	KindConsole  = "console"
	KindOTLP     = "otlp"
	KindOTLPHTTP = "otlp-http"
)

// Config describes where spans go.
type Config struct {
	Kind string
	// Endpoint is host:port of the collector. Required for OTLP kinds.
	Endpoint string
	// Insecure sends OTLP in plaintext.
	Insecure bool
	Headers  map[string]string
	// Writer receives console spans; stderr when nil so that stdout
	// stays reserved for completion output.
	Writer io.Writer
}

type builder func(ctx context.Context, cfg Config) (trace.SpanExporter, error)

var builders = map[string]builder{
	KindNone:     func(context.Context, Config) (trace.SpanExporter, error) { return nil, nil },
	KindConsole:  console,
	KindOTLP:     otlpGRPC,
	KindOTLPHTTP: otlpHTTP,
}

// Kinds lists the accepted exporter names.
func Kinds() []string {
	out := make([]string, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New returns the exporter for cfg.Kind. It is nil, with no error, when
// exporting is off.
func New(ctx context.Context, cfg Config) (trace.SpanExporter, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = KindNone
	}
	build, ok := builders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown trace exporter %q (want one of %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	exp, err := build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s exporter: %w", kind, err)
	}
	return exp, nil
}

func console(_ context.Context, cfg Config) (trace.SpanExporter, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
}

func collectorTLS() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

func otlpGRPC(ctx context.Context, cfg Config) (trace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return nil, errNoEndpoint
	}
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithHeaders(cfg.Headers),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(collectorTLS())))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func otlpHTTP(ctx context.Context, cfg Config) (trace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return nil, errNoEndpoint
	}
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithHeaders(cfg.Headers),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	} else {
		opts = append(opts, otlptracehttp.WithTLSClientConfig(collectorTLS()))
	}
	return otlptracehttp.New(ctx, opts...)
}

var errNoEndpoint = fmt.Errorf("requires an endpoint")
