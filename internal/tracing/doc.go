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

/*
Package tracing provides correlation IDs, OpenTelemetry spans and
Prometheus metrics for cortensor.

# Correlation IDs

Every completion run carries a correlation ID. The CLI mints one per
invocation and the serve command honours an inbound X-Correlation-ID
header:

	ctx, id := tracing.EnsureContext(ctx)
	handler = tracing.CorrelationMiddleware(handler)

# Spans

NewProvider installs the global tracer and meter providers. Spans are
always created; Exporter decides where they go:

	tracing:
	  exporter: otlp        # none, console, otlp, otlp-http
	  endpoint: localhost:4317
	  sample_rate: 0.25

Outbound completion requests carry a W3C traceparent header written by
InjectHeaders, and SpanMiddleware joins inbound requests to the
caller's trace.

# Metrics

MetricsCollector records completion and attempt counters on the meter
provider. The serve command exposes them at /metrics:

  - cortensor_completions_total{result}
  - cortensor_attempts_total{scheme,placement,outcome}
  - cortensor_completion_duration_seconds
  - cortensor_attempt_duration_seconds
  - cortensor_rate_limited_total
  - cortensor_active_completions
*/
package tracing
