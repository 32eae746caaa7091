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

// Package completion delivers a prompt to a Cortensor-style completion
// service whose URL shape is not known in advance.
//
// From one configured base URL the Dispatcher derives an ordered plan of
// request targets (scheme × path shape × session placement) and probes them
// one at a time:
//
//   - 2xx: the body is parsed as JSON and returned
//   - 404: the next candidate is tried
//   - TLS failure: the remaining candidates of that scheme are skipped
//   - connection failure: the next candidate is tried
//   - any other status, or an unparsable 2xx body: the run stops
//
// When every candidate fails the caller receives an *errors.ExhaustedError
// wrapping the most recent failure. There is no backoff and no concurrency;
// each run issues at most one request at a time.
//
//	d, err := completion.NewDispatcher(settings, transport)
//	if err != nil {
//	    return err
//	}
//	res, err := d.Complete(ctx, prompt, "", "")
package completion
