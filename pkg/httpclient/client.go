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
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// New returns a single client honouring cfg.InsecureSkipVerify.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newClient(cfg, !cfg.InsecureSkipVerify), nil
}

// Pool holds a verifying and a non-verifying client built from one Config.
type Pool struct {
	verify *http.Client
	skip   *http.Client
}

func NewPool(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pool{
		verify: newClient(cfg, true),
		skip:   newClient(cfg, false),
	}, nil
}

// Client returns the client for the requested certificate policy.
func (p *Pool) Client(verifyTLS bool) *http.Client {
	if verifyTLS {
		return p.verify
	}
	return p.skip
}

// CloseIdle drops keep-alive connections on both clients.
func (p *Pool) CloseIdle() {
	p.verify.CloseIdleConnections()
	p.skip.CloseIdleConnections()
}

func newClient(cfg Config, verifyTLS bool) *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			// #nosec G402 -- opt-in for self-signed router nodes
			InsecureSkipVerify: !verifyTLS,
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	return &http.Client{
		Transport: &observed{
			next:      base,
			userAgent: cfg.UserAgent,
			logger:    cfg.logger(),
			verifyTLS: verifyTLS,
		},
		Timeout: cfg.Timeout,
	}
}
