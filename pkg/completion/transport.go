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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tombee/cortensor/internal/tracing"
	"github.com/tombee/cortensor/pkg/httpclient"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 16 << 20

// Request is one POST issued by the Dispatcher.
type Request struct {
	URL       string
	Header    http.Header
	Body      []byte
	Timeout   time.Duration
	VerifyTLS bool
}

// Response is the raw result of a POST that reached the server.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs a single HTTP POST. Implementations return an error
// only when no HTTP response was received (DNS, connect, TLS, timeout,
// body read); every status code is reported through Response.
type Transport interface {
	Post(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	pool *httpclient.Pool
}

// NewHTTPTransport builds a client pool from cfg. cfg.InsecureSkipVerify
// is ignored; each Request selects verification with VerifyTLS.
func NewHTTPTransport(cfg httpclient.Config) (*HTTPTransport, error) {
	pool, err := httpclient.NewPool(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating http clients: %w", err)
	}
	return &HTTPTransport{pool: pool}, nil
}

// Post implements Transport.
func (t *HTTPTransport) Post(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}
	// net/http ignores Host in the header map
	if host := httpReq.Header.Get(HeaderHost); host != "" {
		httpReq.Host = host
		httpReq.Header.Del(HeaderHost)
	}
	tracing.InjectHeaders(ctx, httpReq.Header)

	resp, err := t.pool.Client(req.VerifyTLS).Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
