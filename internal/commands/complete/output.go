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

package complete

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/pkg/completion"
)

// completeResponse is the --json output of a successful completion.
type completeResponse struct {
	shared.JSONResponse
	CorrelationID string `json:"correlation_id"`
	URL           string `json:"url"`
	Placement     string `json:"placement"`
	StatusCode    int    `json:"status_code"`
	Attempts      int    `json:"attempts"`
	DurationMs    int64  `json:"duration_ms"`
	Result        any    `json:"result"`
}

func newCompleteResponse(res *completion.Result, value any, elapsed time.Duration) completeResponse {
	return completeResponse{
		JSONResponse:  shared.NewJSONResponse("complete"),
		CorrelationID: res.CorrelationID,
		URL:           res.URL,
		Placement:     res.Placement.String(),
		StatusCode:    res.StatusCode,
		Attempts:      res.Attempts,
		DurationMs:    elapsed.Milliseconds(),
		Result:        value,
	}
}

// jsonErrors converts a completion error for the --json envelope.
func jsonErrors(err error) []shared.JSONError {
	return []shared.JSONError{shared.JSONErrorFrom(err)}
}

// writeValue prints strings as plain text and everything else as
// indented JSON.
func writeValue(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	return shared.EmitJSON(w, v)
}

func writeRaw(w io.Writer, raw []byte) error {
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if !bytes.HasSuffix(raw, []byte("\n")) {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}
