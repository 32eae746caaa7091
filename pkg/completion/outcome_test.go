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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

const testURL = "http://h/api/v1/completions"

func TestClassify_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   OutcomeKind
	}{
		{name: "ok", status: 200, body: `{"text":"hi"}`, want: OutcomeSuccess},
		{name: "created", status: 201, body: `[]`, want: OutcomeSuccess},
		{name: "json scalar", status: 200, body: `"done"`, want: OutcomeSuccess},
		{name: "not found", status: 404, want: OutcomeNotFound},
		{name: "unauthorized", status: 401, want: OutcomeFatalHTTP},
		{name: "server error", status: 500, want: OutcomeFatalHTTP},
		{name: "redirect", status: 302, want: OutcomeFatalHTTP},
		{name: "not json", status: 200, body: "<html>", want: OutcomeFatalDecode},
		{name: "empty body", status: 200, want: OutcomeFatalDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(testURL, &Response{StatusCode: tt.status, Body: []byte(tt.body)}, nil)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.status, got.StatusCode)
			if tt.want == OutcomeSuccess {
				assert.NoError(t, got.Err)
				assert.JSONEq(t, tt.body, string(got.Raw))
			} else {
				assert.Error(t, got.Err)
			}
		})
	}
}

func TestClassify_SuccessValue(t *testing.T) {
	got := Classify(testURL, &Response{StatusCode: 200, Body: []byte(`{"choices":[{"text":"x"}]}`)}, nil)
	require.Equal(t, OutcomeSuccess, got.Kind)

	m, ok := got.Value.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, m, "choices")
}

func TestClassify_ErrorTypes(t *testing.T) {
	notFound := Classify(testURL, &Response{StatusCode: 404}, nil)
	var statusErr *cortensorerrors.HTTPStatusError
	require.True(t, errors.As(notFound.Err, &statusErr))
	assert.True(t, statusErr.IsNotFound())

	fatal := Classify(testURL, &Response{StatusCode: 503, Body: []byte(strings.Repeat("x", 2000))}, nil)
	require.True(t, errors.As(fatal.Err, &statusErr))
	assert.Equal(t, 503, statusErr.StatusCode)
	assert.Equal(t, testURL, statusErr.URL)
	assert.Len(t, statusErr.Body, maxErrorBody+3)

	decodeFail := Classify(testURL, &Response{StatusCode: 200, Body: []byte("nope")}, nil)
	var decodeErr *cortensorerrors.ResponseDecodeError
	assert.True(t, errors.As(decodeFail.Err, &decodeErr))

	tlsFail := Classify(testURL, nil, &url.Error{Op: "Post", URL: testURL, Err: x509.UnknownAuthorityError{}})
	assert.Equal(t, OutcomeSchemeFailure, tlsFail.Kind)
	var schemeErr *cortensorerrors.SchemeError
	assert.True(t, errors.As(tlsFail.Err, &schemeErr))

	connFail := Classify(testURL, nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
	assert.Equal(t, OutcomeTransientConnection, connFail.Kind)
	var connErr *cortensorerrors.ConnectionError
	assert.True(t, errors.As(connFail.Err, &connErr))
}

func TestIsTLSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unknown authority", err: x509.UnknownAuthorityError{}, want: true},
		{name: "wrapped unknown authority", err: &url.Error{Op: "Post", URL: testURL, Err: x509.UnknownAuthorityError{}}, want: true},
		{name: "verification", err: &tls.CertificateVerificationError{Err: errors.New("bad")}, want: true},
		{name: "record header", err: fmt.Errorf("dial: %w", tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"}), want: true},
		{name: "alert", err: tls.AlertError(40), want: true},
		{name: "plain http server", err: errors.New("http: server gave HTTP response to HTTPS client"), want: true},
		{name: "tls prefix", err: errors.New("remote error: tls: handshake failure"), want: true},
		{name: "refused", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}, want: false},
		{name: "timeout", err: errors.New("context deadline exceeded"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTLSError(tt.err))
		})
	}
}

func TestOutcomeKind(t *testing.T) {
	assert.Equal(t, "not_found", OutcomeNotFound.String())
	assert.Equal(t, "unknown", OutcomeKind(99).String())

	assert.True(t, OutcomeSuccess.Terminal())
	assert.True(t, OutcomeFatalHTTP.Terminal())
	assert.True(t, OutcomeFatalDecode.Terminal())
	assert.False(t, OutcomeNotFound.Terminal())
	assert.False(t, OutcomeSchemeFailure.Terminal())
	assert.False(t, OutcomeTransientConnection.Terminal())
}
