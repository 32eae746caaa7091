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
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

// OutcomeKind classifies the result of one attempt.
type OutcomeKind int

const (
	// OutcomeSuccess is a 2xx response with a JSON body.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeNotFound is a 404; the next candidate is tried.
	OutcomeNotFound
	// OutcomeSchemeFailure is a TLS-level failure; the scheme is abandoned.
	OutcomeSchemeFailure
	// OutcomeTransientConnection is any other failure to get a response.
	OutcomeTransientConnection
	// OutcomeFatalHTTP is a non-404 status that is not 2xx.
	OutcomeFatalHTTP
	// OutcomeFatalDecode is a 2xx response whose body is not JSON.
	OutcomeFatalDecode
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeSuccess:             "success",
	OutcomeNotFound:            "not_found",
	OutcomeSchemeFailure:       "scheme_failure",
	OutcomeTransientConnection: "connection",
	OutcomeFatalHTTP:           "fatal_http",
	OutcomeFatalDecode:         "fatal_decode",
}

// String returns a stable name suitable for logs and metric attributes.
func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the run stops at this outcome.
func (k OutcomeKind) Terminal() bool {
	switch k {
	case OutcomeSuccess, OutcomeFatalHTTP, OutcomeFatalDecode:
		return true
	default:
		return false
	}
}

// Outcome is the classified result of one attempt. Value and Raw are set
// only for OutcomeSuccess; Err is set for every other kind.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Value      any
	Raw        json.RawMessage
	Err        error
}

// maxErrorBody caps the response body kept on an HTTPStatusError.
const maxErrorBody = 512

// Classify maps a transport result onto an Outcome. Exactly one of resp and
// err is expected to be non-nil.
func Classify(url string, resp *Response, err error) Outcome {
	if err != nil {
		if IsTLSError(err) {
			return Outcome{
				Kind: OutcomeSchemeFailure,
				Err:  &cortensorerrors.SchemeError{URL: url, Cause: err},
			}
		}
		return Outcome{
			Kind: OutcomeTransientConnection,
			Err:  &cortensorerrors.ConnectionError{URL: url, Cause: err},
		}
	}

	status := resp.StatusCode
	switch {
	case status == http.StatusNotFound:
		return Outcome{
			Kind:       OutcomeNotFound,
			StatusCode: status,
			Err:        &cortensorerrors.HTTPStatusError{StatusCode: status, URL: url},
		}
	case status >= 200 && status < 300:
		var value any
		if err := json.Unmarshal(resp.Body, &value); err != nil {
			return Outcome{
				Kind:       OutcomeFatalDecode,
				StatusCode: status,
				Err:        &cortensorerrors.ResponseDecodeError{URL: url, Cause: err},
			}
		}
		return Outcome{
			Kind:       OutcomeSuccess,
			StatusCode: status,
			Value:      value,
			Raw:        json.RawMessage(resp.Body),
		}
	default:
		return Outcome{
			Kind:       OutcomeFatalHTTP,
			StatusCode: status,
			Err: &cortensorerrors.HTTPStatusError{
				StatusCode: status,
				URL:        url,
				Body:       truncate(string(resp.Body), maxErrorBody),
			},
		}
	}
}

// tlsMarkers match TLS failures that net/http reports as plain strings.
var tlsMarkers = []string{
	"tls:",
	"x509:",
	"server gave HTTP response to HTTPS client",
}

// IsTLSError reports whether err stems from TLS negotiation or certificate
// verification rather than from reaching the host at all.
func IsTLSError(err error) bool {
	if err == nil {
		return false
	}

	var (
		recordErr    tls.RecordHeaderError
		verifyErr    *tls.CertificateVerificationError
		alertErr     tls.AlertError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &recordErr),
		errors.As(err, &verifyErr),
		errors.As(err, &alertErr),
		errors.As(err, &authorityErr),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return true
	}

	msg := err.Error()
	for _, marker := range tlsMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
