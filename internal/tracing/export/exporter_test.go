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

package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	for _, kind := range []string{"", "none"} {
		exporter, err := New(context.Background(), Config{Kind: kind})
		require.NoError(t, err)
		assert.Nil(t, exporter)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	exporter, err := New(context.Background(), Config{Kind: "console", Writer: &buf})
	require.NoError(t, err)
	require.NotNil(t, exporter)
	assert.NoError(t, exporter.Shutdown(context.Background()))
}

func TestNew_OTLPRequiresEndpoint(t *testing.T) {
	for _, kind := range []string{"otlp", "otlp-http"} {
		_, err := New(context.Background(), Config{Kind: kind})
		assert.ErrorContains(t, err, "requires an endpoint", kind)
	}
}

func TestNew_OTLPHTTP(t *testing.T) {
	exporter, err := New(context.Background(), Config{Kind: "otlp-http", Endpoint: "localhost:4318", Insecure: true})
	require.NoError(t, err)
	require.NotNil(t, exporter)
	assert.NoError(t, exporter.Shutdown(context.Background()))
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "zipkin"})
	assert.ErrorContains(t, err, "unknown trace exporter")
}

func TestKinds(t *testing.T) {
	assert.Equal(t, []string{KindConsole, KindNone, KindOTLP, KindOTLPHTTP}, Kinds())
}

func TestNew_OTLPGRPC(t *testing.T) {
	exporter, err := New(context.Background(), Config{
		Kind:     KindOTLP,
		Endpoint: "localhost:4317",
		Insecure: true,
		Headers:  map[string]string{"x-team": "cortensor"},
	})
	require.NoError(t, err)
	require.NotNil(t, exporter)
	assert.NoError(t, exporter.Shutdown(context.Background()))
}
