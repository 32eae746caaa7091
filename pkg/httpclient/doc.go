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

// Package httpclient builds the HTTP clients that carry completion
// requests to router nodes.
//
// A Pool holds two clients over identical settings, one verifying
// certificates and one not, so that a per-request TLS choice still
// reuses warm connections. Neither client retries: endpoint fallback in
// pkg/completion decides whether a second request is sent.
//
//	pool, err := httpclient.NewPool(httpclient.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	resp, err := pool.Client(verifyTLS).Do(req)
//
// Every round trip gets the configured User-Agent and the X-Correlation-ID
// of its context, and is logged at debug with credentials stripped from
// the URL.
package httpclient
