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
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

func TestCompletionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &cortensorerrors.ValidationError{Field: "prompt", Message: "empty"}, ExitInput},
		{"config", &cortensorerrors.ConfigError{Key: "api_key", Reason: "missing"}, ExitConfig},
		{"exhausted", &cortensorerrors.ExhaustedError{Attempts: 4}, ExitRemote},
		{"fatal status", &cortensorerrors.HTTPStatusError{StatusCode: 500}, ExitRemote},
		{"decode", &cortensorerrors.ResponseDecodeError{URL: "u", Cause: errors.New("x")}, ExitRemote},
		{"wrapped exhausted", fmt.Errorf("run: %w", &cortensorerrors.ExhaustedError{}), ExitRemote},
		{"deadline", context.DeadlineExceeded, ExitRemote},
		{"canceled", context.Canceled, ExitFailed},
		{"other", errors.New("boom"), ExitFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitErr := CompletionError(tt.err)
			assert.Equal(t, tt.code, exitErr.Code)
			assert.ErrorIs(t, exitErr, tt.err)
			assert.Equal(t, tt.code, ExitCode(exitErr))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitFailed, ExitCode(errors.New("x")))
	assert.Equal(t, ExitConfig, ExitCode(fmt.Errorf("wrapped: %w", NewConfigError("bad", nil))))
	assert.Equal(t, ExitInput, ExitCode(NewInputError("bad", nil)))
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "bad", NewRemoteError("bad", nil).Error())
	assert.Equal(t, "bad: cause", NewRemoteError("bad", errors.New("cause")).Error())
}

func TestPrintError_Suggestion(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, NewRemoteError("completion failed", &cortensorerrors.ExhaustedError{Attempts: 2}))
	assert.Contains(t, buf.String(), "completion failed")
	assert.Contains(t, buf.String(), "Suggestion:")

	buf.Reset()
	PrintError(&buf, errors.New("plain"))
	assert.Contains(t, buf.String(), "plain")
	assert.NotContains(t, buf.String(), "Suggestion:")
}
