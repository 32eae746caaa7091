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
	"strconv"
	"strings"
)

// Payload is the JSON body of a completion request.
type Payload struct {
	SessionID  string `json:"session_id,omitempty"`
	Prompt     string `json:"prompt"`
	Stream     bool   `json:"stream"`
	Timeout    int    `json:"timeout"`
	PromptType int    `json:"prompt_type"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
}

// ResolvePromptType parses a configured prompt type. Absent, unparsable
// and zero values all resolve to DefaultPromptType.
func ResolvePromptType(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		return DefaultPromptType
	}
	return n
}

// BuildPayload assembles the session-in-body form of the request body.
// Empty provider and model are left out of the encoded JSON.
func BuildPayload(s Settings, prompt, provider, model string) Payload {
	return Payload{
		SessionID:  s.SessionID,
		Prompt:     prompt,
		Stream:     false,
		Timeout:    ServerTimeoutHint,
		PromptType: ResolvePromptType(s.PromptType),
		Provider:   provider,
		Model:      model,
	}
}

// ForPlacement returns the payload to send for placement p. Session-in-path
// requests carry no session_id field.
func (p Payload) ForPlacement(placement Placement) Payload {
	if placement == PlacementPath {
		p.SessionID = ""
	}
	return p
}
