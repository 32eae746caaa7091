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

package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

func TestTypeOfAndRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  string
		retryable bool
	}{
		{"not found", &cortensorerrors.HTTPStatusError{StatusCode: 404}, "not_found", true},
		{"server error", &cortensorerrors.HTTPStatusError{StatusCode: 502}, "http_status", false},
		{"tls", &cortensorerrors.SchemeError{URL: "https://h", Cause: errors.New("x509")}, "tls", true},
		{"wrapped connection", fmt.Errorf("post: %w", &cortensorerrors.ConnectionError{URL: "http://h"}), "connection", true},
		{"exhausted", &cortensorerrors.ExhaustedError{Attempts: 4}, "exhausted", false},
		{"plain", errors.New("boom"), "unknown", false},
		{"nil", nil, "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, cortensorerrors.TypeOf(tt.err))
			assert.Equal(t, tt.retryable, cortensorerrors.IsRetryable(tt.err))
		})
	}
}

func TestAttemptsAndUpstreamStatus(t *testing.T) {
	err := fmt.Errorf("complete: %w", &cortensorerrors.ExhaustedError{
		Attempts: 4,
		Last:     &cortensorerrors.HTTPStatusError{StatusCode: 404, URL: "https://h/api/v1/completions/7"},
	})
	assert.Equal(t, 4, cortensorerrors.Attempts(err))
	assert.Equal(t, 404, cortensorerrors.UpstreamStatus(err))

	conn := &cortensorerrors.ExhaustedError{Attempts: 2, Last: &cortensorerrors.ConnectionError{URL: "http://h"}}
	assert.Equal(t, 0, cortensorerrors.UpstreamStatus(conn))
	assert.Equal(t, 0, cortensorerrors.Attempts(errors.New("plain")))
}

func TestSuggestionOf(t *testing.T) {
	assert.Equal(t, "Check CORTENSOR_API_KEY",
		cortensorerrors.SuggestionOf(&cortensorerrors.HTTPStatusError{StatusCode: 401}))
	assert.Contains(t, cortensorerrors.SuggestionOf(&cortensorerrors.ExhaustedError{}), "CORTENSOR_API_URL")
	assert.Empty(t, cortensorerrors.SuggestionOf(&cortensorerrors.ValidationError{Field: "prompt"}))
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("startup: %w", &cortensorerrors.ConfigError{Key: "api_key", Reason: "missing"})

	var cfgErr *cortensorerrors.ConfigError
	assert.True(t, cortensorerrors.As(err, &cfgErr))
	assert.Equal(t, "api_key", cfgErr.Key)
}
