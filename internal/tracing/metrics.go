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

package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector records Prometheus-compatible metrics for completion runs.
type MetricsCollector struct {
	meter metric.Meter

	// Counters
	completionsTotal metric.Int64Counter
	attemptsTotal    metric.Int64Counter
	rateLimitedTotal metric.Int64Counter

	// Histograms
	completionDuration metric.Float64Histogram
	attemptDuration    metric.Float64Histogram

	// Gauges (using observable gauges)
	activeCompletions   int64
	activeCompletionsMu sync.RWMutex
}

// NewMetricsCollector creates a metrics collector using the given meter provider.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("cortensor")

	mc := &MetricsCollector{
		meter: meter,
	}

	var err error

	mc.completionsTotal, err = meter.Int64Counter(
		"cortensor_completions_total",
		metric.WithDescription("Total number of completion runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	mc.attemptsTotal, err = meter.Int64Counter(
		"cortensor_attempts_total",
		metric.WithDescription("Total number of endpoint candidates tried"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	mc.rateLimitedTotal, err = meter.Int64Counter(
		"cortensor_rate_limited_total",
		metric.WithDescription("Total number of requests rejected by the serve rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	mc.completionDuration, err = meter.Float64Histogram(
		"cortensor_completion_duration_seconds",
		metric.WithDescription("Completion run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	mc.attemptDuration, err = meter.Float64Histogram(
		"cortensor_attempt_duration_seconds",
		metric.WithDescription("Single attempt duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"cortensor_active_completions",
		metric.WithDescription("Number of completion runs in flight"),
		metric.WithUnit("{run}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			mc.activeCompletionsMu.RLock()
			count := mc.activeCompletions
			mc.activeCompletionsMu.RUnlock()
			observer.Observe(count)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordCompletionStart marks a completion run as in flight.
func (mc *MetricsCollector) RecordCompletionStart(ctx context.Context) {
	mc.activeCompletionsMu.Lock()
	mc.activeCompletions++
	mc.activeCompletionsMu.Unlock()
}

// RecordCompletionEnd records the end of a completion run. result is the
// outcome name of the final attempt, or "exhausted".
func (mc *MetricsCollector) RecordCompletionEnd(ctx context.Context, result string, duration time.Duration) {
	mc.activeCompletionsMu.Lock()
	if mc.activeCompletions > 0 {
		mc.activeCompletions--
	}
	mc.activeCompletionsMu.Unlock()

	attrs := metric.WithAttributes(attribute.String("result", result))
	mc.completionsTotal.Add(ctx, 1, attrs)
	mc.completionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAttempt records one probe of an endpoint candidate.
func (mc *MetricsCollector) RecordAttempt(ctx context.Context, scheme, placement, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("scheme", scheme),
		attribute.String("placement", placement),
		attribute.String("outcome", outcome),
	)

	mc.attemptsTotal.Add(ctx, 1, attrs)
	mc.attemptDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRateLimited records a request rejected before dispatch.
func (mc *MetricsCollector) RecordRateLimited(ctx context.Context) {
	mc.rateLimitedTotal.Add(ctx, 1)
}

// ActiveCompletions returns the number of runs currently in flight.
func (mc *MetricsCollector) ActiveCompletions() int64 {
	mc.activeCompletionsMu.RLock()
	defer mc.activeCompletionsMu.RUnlock()
	return mc.activeCompletions
}
