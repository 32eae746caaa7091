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

package httpclient

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tombee/cortensor/internal/tracing"
)

// observed decorates each request with User-Agent and correlation ID and
// logs the outcome.
type observed struct {
	next      http.RoundTripper
	userAgent string
	logger    *slog.Logger
	verifyTLS bool
}

func (o *observed) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", o.userAgent)
	}
	if id := tracing.FromContextOrEmpty(req.Context()); id.IsValid() {
		req.Header.Set(tracing.HeaderCorrelationID, id.String())
	}

	start := time.Now()
	resp, err := o.next.RoundTrip(req)

	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("url", redactURL(req.URL)),
		slog.Bool("verify_tls", o.verifyTLS),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		o.logger.LogAttrs(req.Context(), slog.LevelDebug, "round trip failed", append(attrs, slog.String("error", err.Error()))...)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 500 {
		level = slog.LevelWarn
	}
	o.logger.LogAttrs(req.Context(), level, "round trip", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}

// credentialParams are query parameter names, lowercased with separators
// removed, whose values never reach a log line.
var credentialParams = map[string]bool{
	"apikey":       true,
	"key":          true,
	"token":        true,
	"accesstoken":  true,
	"auth":         true,
	"secret":       true,
	"clientsecret": true,
	"password":     true,
}

func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	safe := *u
	if _, ok := u.User.Password(); ok {
		safe.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isCredentialParam(name) {
				q.Set(name, "xxxxx")
			}
		}
		safe.RawQuery = q.Encode()
	}
	return safe.String()
}

func isCredentialParam(name string) bool {
	n := strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(name))
	return credentialParams[n]
}
