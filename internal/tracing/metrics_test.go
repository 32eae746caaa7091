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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestCollector(t *testing.T) (*MetricsCollector, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	mc, err := NewMetricsCollector(provider)
	require.NoError(t, err)
	return mc, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewMetricsCollector(t *testing.T) {
	mc, _ := newTestCollector(t)
	assert.NotNil(t, mc.meter)
	assert.Zero(t, mc.ActiveCompletions())
}

func TestMetricsCollector_CompletionLifecycle(t *testing.T) {
	mc, reader := newTestCollector(t)
	ctx := context.Background()

	mc.RecordCompletionStart(ctx)
	mc.RecordCompletionStart(ctx)
	assert.Equal(t, int64(2), mc.ActiveCompletions())

	mc.RecordCompletionEnd(ctx, "success", 250*time.Millisecond)
	assert.Equal(t, int64(1), mc.ActiveCompletions())

	metrics := collect(t, reader)

	total, ok := metrics["cortensor_completions_total"]
	require.True(t, ok)
	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	result, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("result"))
	assert.Equal(t, "success", result.AsString())

	active, ok := metrics["cortensor_active_completions"]
	require.True(t, ok)
	gauge, ok := active.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1), gauge.DataPoints[0].Value)
}

func TestMetricsCollector_EndWithoutStartDoesNotGoNegative(t *testing.T) {
	mc, _ := newTestCollector(t)

	mc.RecordCompletionEnd(context.Background(), "exhausted", time.Second)
	assert.Zero(t, mc.ActiveCompletions())
}

func TestMetricsCollector_RecordAttempt(t *testing.T) {
	mc, reader := newTestCollector(t)
	ctx := context.Background()

	mc.RecordAttempt(ctx, "http", "body", "not_found", 10*time.Millisecond)
	mc.RecordAttempt(ctx, "http", "path", "not_found", 10*time.Millisecond)
	mc.RecordAttempt(ctx, "https", "body", "success", 20*time.Millisecond)

	metrics := collect(t, reader)
	attempts, ok := metrics["cortensor_attempts_total"]
	require.True(t, ok)
	sum, ok := attempts.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, sum.DataPoints, 3)

	_, ok = metrics["cortensor_attempt_duration_seconds"]
	assert.True(t, ok)
}

func TestMetricsCollector_RecordRateLimited(t *testing.T) {
	mc, reader := newTestCollector(t)

	mc.RecordRateLimited(context.Background())
	mc.RecordRateLimited(context.Background())

	metrics := collect(t, reader)
	limited, ok := metrics["cortensor_rate_limited_total"]
	require.True(t, ok)
	sum, ok := limited.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}

func TestMetricsCollector_ConcurrentAccess(t *testing.T) {
	mc, _ := newTestCollector(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mc.RecordCompletionStart(ctx)
			mc.RecordAttempt(ctx, "https", "body", "success", time.Millisecond)
			mc.RecordCompletionEnd(ctx, "success", time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Zero(t, mc.ActiveCompletions())
}
