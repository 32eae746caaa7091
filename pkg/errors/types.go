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

package errors

import (
	"fmt"
)

// ValidationError represents caller input validation failures.
// Use this for an empty prompt or other malformed arguments.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ErrorType implements ErrorClassifier.
func (e *ValidationError) ErrorType() string { return "validation" }

// IsRetryable implements ErrorClassifier.
func (e *ValidationError) IsRetryable() bool { return false }

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "api_key", "api_url")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// HTTPStatusError is returned when the remote service answered with a
// non-success status. A 404 is a routing miss; every other status is fatal.
type HTTPStatusError struct {
	// StatusCode is the HTTP status returned by the remote service
	StatusCode int

	// URL is the candidate URL that produced the status
	URL string

	// Body holds the (truncated) response body for diagnostics
	Body string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	return msg
}

// ErrorType implements ErrorClassifier.
func (e *HTTPStatusError) ErrorType() string {
	if e.IsNotFound() {
		return "not_found"
	}
	return "http_status"
}

// IsRetryable reports whether another candidate may still succeed.
func (e *HTTPStatusError) IsRetryable() bool { return e.IsNotFound() }

// IsNotFound reports whether the status was 404.
func (e *HTTPStatusError) IsNotFound() bool { return e.StatusCode == 404 }

// IsUserVisible implements UserVisibleError.
func (e *HTTPStatusError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *HTTPStatusError) UserMessage() string {
	return fmt.Sprintf("the completion service rejected the request (HTTP %d)", e.StatusCode)
}

// Suggestion implements UserVisibleError.
func (e *HTTPStatusError) Suggestion() string {
	switch {
	case e.StatusCode == 401 || e.StatusCode == 403:
		return "Check CORTENSOR_API_KEY"
	case e.IsNotFound():
		return "Check CORTENSOR_API_URL; no known endpoint shape answered"
	case e.StatusCode >= 500:
		return "The completion service is failing; try again later"
	default:
		return ""
	}
}

// SchemeError wraps a TLS-layer failure. It means the transport scheme is
// wrong for the host, not the path.
type SchemeError struct {
	// URL is the candidate URL being attempted
	URL string

	// Cause is the underlying TLS error
	Cause error
}

// Error implements the error interface.
func (e *SchemeError) Error() string {
	return fmt.Sprintf("tls error on %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SchemeError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *SchemeError) ErrorType() string { return "tls" }

// IsRetryable implements ErrorClassifier.
func (e *SchemeError) IsRetryable() bool { return true }

// ConnectionError wraps a connection-level failure such as a refused
// connection, DNS failure or timeout.
type ConnectionError struct {
	// URL is the candidate URL being attempted
	URL string

	// Cause is the underlying network error
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("request error at %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConnectionError) ErrorType() string { return "connection" }

// IsRetryable implements ErrorClassifier.
func (e *ConnectionError) IsRetryable() bool { return true }

// ResponseDecodeError is returned when a 2xx body is not valid JSON.
type ResponseDecodeError struct {
	// URL is the candidate URL that returned the body
	URL string

	// Cause is the JSON decoding error
	Cause error
}

// Error implements the error interface.
func (e *ResponseDecodeError) Error() string {
	return fmt.Sprintf("invalid JSON response from %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ResponseDecodeError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ResponseDecodeError) ErrorType() string { return "decode" }

// IsRetryable implements ErrorClassifier.
func (e *ResponseDecodeError) IsRetryable() bool { return false }

// ExhaustedError is returned after every scheme and candidate combination
// failed. Last is the most recent underlying failure.
type ExhaustedError struct {
	// Attempts is the number of requests issued
	Attempts int

	// Last is the most recent failure encountered
	Last error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("all endpoint candidates failed after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("all endpoint candidates failed after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the last failure for errors.Is/As support.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// ErrorType implements ErrorClassifier.
func (e *ExhaustedError) ErrorType() string { return "exhausted" }

// IsRetryable implements ErrorClassifier.
func (e *ExhaustedError) IsRetryable() bool { return false }

// IsUserVisible implements UserVisibleError.
func (e *ExhaustedError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *ExhaustedError) UserMessage() string {
	return "no endpoint candidate of the completion service accepted the request"
}

// Suggestion implements UserVisibleError.
func (e *ExhaustedError) Suggestion() string {
	return "Check CORTENSOR_API_URL and that the service is reachable; set CORTENSOR_TLS_INSECURE=1 for self-signed certificates"
}
