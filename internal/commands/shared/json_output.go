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
	"encoding/json"
	"io"

	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

// JSONSchemaVersion is bumped when an envelope field changes meaning.
const JSONSchemaVersion = "1.0"

// JSONResponse heads every --json document. Commands embed it and add
// their own fields.
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// JSONError describes one failure in a --json document.
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewJSONResponse is the envelope of a command that succeeded.
func NewJSONResponse(command string) JSONResponse {
	return JSONResponse{Version: JSONSchemaVersion, Command: command, Success: true}
}

// JSONErrorFrom classifies err. Code is the error type name from
// pkg/errors; the suggestion is filled when err carries one.
func JSONErrorFrom(err error) JSONError {
	return JSONError{
		Code:       cortensorerrors.TypeOf(err),
		Message:    err.Error(),
		Suggestion: cortensorerrors.SuggestionOf(err),
	}
}

// EmitJSON pretty-prints v followed by a newline.
func EmitJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// EmitJSONLine writes v compactly on one line, for JSON Lines streams.
func EmitJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// EmitJSONError writes a failed envelope for command.
func EmitJSONError(w io.Writer, command string, errs []JSONError) error {
	resp := NewJSONResponse(command)
	resp.Success = false
	return EmitJSON(w, struct {
		JSONResponse
		Errors []JSONError `json:"errors"`
	}{resp, errs})
}
