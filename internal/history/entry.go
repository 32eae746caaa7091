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

package history

import (
	"errors"
	"time"

	"github.com/tombee/cortensor/pkg/completion"
	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

// Request describes what was asked of the dispatcher. On success the
// entry takes provider and model from the result instead, so configured
// defaults are recorded; a failed run keeps what the caller requested.
type Request struct {
	CorrelationID string
	Prompt        string
	Provider      string
	Model         string
}

// NewEntry builds an Entry from a completion call. Exactly one of res and
// err is expected to be non-nil.
func NewEntry(req Request, res *completion.Result, err error, elapsed time.Duration) *Entry {
	e := &Entry{
		CorrelationID: req.CorrelationID,
		Prompt:        req.Prompt,
		Provider:      req.Provider,
		Model:         req.Model,
		Duration:      elapsed,
	}

	if err == nil && res != nil {
		e.Success = true
		e.URL = res.URL
		e.Placement = res.Placement.String()
		e.StatusCode = res.StatusCode
		e.Attempts = res.Attempts
		e.Response = res.Raw
		if res.CorrelationID != "" {
			e.CorrelationID = res.CorrelationID
		}
		if res.Provider != "" {
			e.Provider = res.Provider
		}
		if res.Model != "" {
			e.Model = res.Model
		}
		return e
	}

	if err != nil {
		e.Error = err.Error()
	}

	var exhausted *cortensorerrors.ExhaustedError
	if errors.As(err, &exhausted) {
		e.Attempts = exhausted.Attempts
	}
	var statusErr *cortensorerrors.HTTPStatusError
	if errors.As(err, &statusErr) {
		e.URL = statusErr.URL
		e.StatusCode = statusErr.StatusCode
	}
	return e
}
