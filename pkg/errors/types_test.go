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
	"strings"
	"testing"

	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *cortensorerrors.ValidationError
		wantMsg string
	}{
		{
			name:    "with field",
			err:     &cortensorerrors.ValidationError{Field: "prompt", Message: "must not be empty"},
			wantMsg: "validation failed on prompt: must not be empty",
		},
		{
			name:    "without field",
			err:     &cortensorerrors.ValidationError{Message: "invalid input"},
			wantMsg: "validation failed: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &cortensorerrors.ConfigError{Key: "api_url", Reason: "is required"}
	if got, want := err.Error(), "config error at api_url: is required"; got != want {
		t.Errorf("ConfigError.Error() = %q, want %q", got, want)
	}

	err = &cortensorerrors.ConfigError{Reason: "file not found"}
	if got, want := err.Error(), "config error: file not found"; got != want {
		t.Errorf("ConfigError.Error() = %q, want %q", got, want)
	}
}

func TestHTTPStatusError(t *testing.T) {
	tests := []struct {
		name          string
		err           *cortensorerrors.HTTPStatusError
		wantType      string
		wantRetryable bool
		wantContains  []string
	}{
		{
			name:          "not found",
			err:           &cortensorerrors.HTTPStatusError{StatusCode: 404, URL: "http://h/api/v1/completions"},
			wantType:      "not_found",
			wantRetryable: true,
			wantContains:  []string{"HTTP 404", "http://h/api/v1/completions"},
		},
		{
			name:          "server error with body",
			err:           &cortensorerrors.HTTPStatusError{StatusCode: 500, URL: "http://h", Body: "boom"},
			wantType:      "http_status",
			wantRetryable: false,
			wantContains:  []string{"HTTP 500", "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.ErrorType(); got != tt.wantType {
				t.Errorf("ErrorType() = %q, want %q", got, tt.wantType)
			}
			if got := tt.err.IsRetryable(); got != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.wantRetryable)
			}
			msg := tt.err.Error()
			for _, want := range tt.wantContains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, want to contain %q", msg, want)
				}
			}
		})
	}
}

func TestHTTPStatusError_Suggestion(t *testing.T) {
	if s := (&cortensorerrors.HTTPStatusError{StatusCode: 401}).Suggestion(); !strings.Contains(s, "API_KEY") {
		t.Errorf("401 suggestion = %q, want API key hint", s)
	}
	if s := (&cortensorerrors.HTTPStatusError{StatusCode: 422}).Suggestion(); s != "" {
		t.Errorf("422 suggestion = %q, want empty", s)
	}
}

func TestExhaustedError_UnwrapsLast(t *testing.T) {
	cause := errors.New("connection refused")
	last := &cortensorerrors.ConnectionError{URL: "http://h", Cause: cause}
	err := &cortensorerrors.ExhaustedError{Attempts: 4, Last: last}

	if !errors.Is(err, cause) {
		t.Error("ExhaustedError should match the root cause with errors.Is")
	}

	var connErr *cortensorerrors.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatal("ExhaustedError should expose the last ConnectionError with errors.As")
	}
	if connErr.URL != "http://h" {
		t.Errorf("URL = %q, want %q", connErr.URL, "http://h")
	}
	if !strings.Contains(err.Error(), "4 attempts") {
		t.Errorf("Error() = %q, want attempt count", err.Error())
	}
}

func TestSchemeAndConnectionErrors_Unwrap(t *testing.T) {
	cause := errors.New("x509: certificate signed by unknown authority")

	scheme := &cortensorerrors.SchemeError{URL: "https://h", Cause: cause}
	if scheme.Unwrap() != cause {
		t.Errorf("SchemeError.Unwrap() = %v, want %v", scheme.Unwrap(), cause)
	}

	conn := &cortensorerrors.ConnectionError{URL: "http://h", Cause: cause}
	if conn.Unwrap() != cause {
		t.Errorf("ConnectionError.Unwrap() = %v, want %v", conn.Unwrap(), cause)
	}

	decode := &cortensorerrors.ResponseDecodeError{URL: "http://h", Cause: cause}
	if decode.Unwrap() != cause {
		t.Errorf("ResponseDecodeError.Unwrap() = %v, want %v", decode.Unwrap(), cause)
	}
}
