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

package shared

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitFailed  = 1
	ExitConfig  = 2
	ExitInput   = 3
	ExitRemote  = 4
)

// ExitError is an error that carries an exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewConfigError reports missing or invalid configuration.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Cause: cause}
}

// NewInputError reports bad command input such as an empty prompt.
func NewInputError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInput, Message: msg, Cause: cause}
}

// NewRemoteError reports a failure of the completion service.
func NewRemoteError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitRemote, Message: msg, Cause: cause}
}

// NewFailedError reports any other failure.
func NewFailedError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitFailed, Message: msg, Cause: cause}
}

// CompletionError wraps an error returned by a completion call with the
// matching exit code.
func CompletionError(err error) *ExitError {
	var (
		validation *cortensorerrors.ValidationError
		config     *cortensorerrors.ConfigError
	)
	switch {
	case errors.As(err, &validation):
		return NewInputError("invalid input", err)
	case errors.As(err, &config):
		return NewConfigError("invalid configuration", err)
	case errors.Is(err, context.Canceled):
		return NewFailedError("interrupted", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewRemoteError("completion timed out", err)
	}

	switch cortensorerrors.TypeOf(err) {
	case "exhausted", "http_status", "not_found", "decode", "tls", "connection":
		return NewRemoteError("completion failed", err)
	}
	return NewFailedError("completion failed", err)
}

// ExitCode returns the exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailed
}

// HandleExitError prints err and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	PrintError(os.Stderr, err)
	os.Exit(ExitCode(err))
}

// PrintError writes err and, when the chain carries one, a suggestion.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, StatusError.Render("Error:"), err.Error())

	if suggestion := cortensorerrors.SuggestionOf(err); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}
