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

import "github.com/tombee/cortensor/internal/tracing/export"

// Exporter names accepted by Config.Exporter.
const (
	ExporterNone     = export.KindNone
	ExporterConsole  = export.KindConsole
	ExporterOTLP     = export.KindOTLP
	ExporterOTLPHTTP = export.KindOTLPHTTP
)

// Config holds observability configuration.
type Config struct {
	// ServiceName identifies this service in traces.
	ServiceName string `yaml:"service_name,omitempty"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"-"`

	// Exporter selects the span exporter: none, console, otlp or otlp-http.
	// Default: none (spans are created but dropped).
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the collector address for the OTLP exporters.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are sent with every export request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// SampleRate is the fraction of root spans sampled (0.0 - 1.0).
	// Default: 1.0.
	SampleRate float64 `yaml:"sample_rate,omitempty"`
}

// DefaultConfig returns tracing disabled with full sampling once enabled.
func DefaultConfig() Config {
	return Config{
		ServiceName: "cortensor",
		Exporter:    ExporterNone,
		SampleRate:  1.0,
	}
}
