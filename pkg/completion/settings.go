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
	"strings"
	"time"

	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

const (
	// DefaultCallTimeout bounds one HTTP call, connect through body read.
	DefaultCallTimeout = 320 * time.Second

	// ServerTimeoutHint is the timeout value advertised to the service in
	// every payload. It is not enforced client-side.
	ServerTimeoutHint = 180

	// DefaultPromptType is used when no valid prompt type is configured.
	DefaultPromptType = 1
)

// Settings is the immutable configuration a Dispatcher works from. It is
// usually produced by the config package from the environment.
type Settings struct {
	// BaseURL is the configured service address, with or without scheme.
	BaseURL string
	// APIKey is sent as a bearer token.
	APIKey string
	// SessionID identifies the session on the service.
	SessionID string
	// TLSInsecure disables certificate verification.
	TLSInsecure bool
	// HostHeader, when set, overrides the Host sent on every request.
	HostHeader string
	// PromptType is the raw configured prompt type; see ResolvePromptType.
	PromptType string
	// CallTimeout bounds each HTTP call. Zero means DefaultCallTimeout.
	CallTimeout time.Duration
	// DefaultProvider and DefaultModel fill in absent per-call values.
	DefaultProvider string
	DefaultModel    string
}

// Validate reports the first missing required field.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return &cortensorerrors.ValidationError{
			Field:      "base_url",
			Message:    "base URL is required",
			Suggestion: "Set CORTENSOR_API_URL",
		}
	}
	if s.APIKey == "" {
		return &cortensorerrors.ValidationError{
			Field:      "api_key",
			Message:    "API key is required",
			Suggestion: "Set CORTENSOR_API_KEY or run 'cortensor key set'",
		}
	}
	if s.SessionID == "" {
		return &cortensorerrors.ValidationError{
			Field:      "session_id",
			Message:    "session id is required",
			Suggestion: "Set CORTENSOR_SESSION_ID",
		}
	}
	if s.CallTimeout < 0 {
		return &cortensorerrors.ValidationError{
			Field:   "call_timeout",
			Message: "call timeout must not be negative",
		}
	}
	return nil
}

func (s Settings) callTimeout() time.Duration {
	if s.CallTimeout <= 0 {
		return DefaultCallTimeout
	}
	return s.CallTimeout
}
