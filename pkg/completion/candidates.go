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
	"net/url"
	"strings"
)

// Placement says where the session identifier travels.
type Placement int

const (
	// PlacementBody sends session_id in the JSON body.
	PlacementBody Placement = iota
	// PlacementPath appends the session id to the URL and omits it from the body.
	PlacementPath
)

// String returns "body" or "path".
func (p Placement) String() string {
	if p == PlacementPath {
		return "path"
	}
	return "body"
}

// Candidate is one concrete request target.
type Candidate struct {
	URL       string
	Placement Placement
}

const (
	completionsSuffix = "/completions"
	apiVersionSuffix  = "/api/v1"
)

// Candidates returns the endpoint shapes to try for one scheme-resolved base
// URL, session-in-body first and session-in-path second. Trailing slashes on
// baseURL are stripped before its shape is inspected.
func Candidates(baseURL, sessionID string) []Candidate {
	base := strings.TrimRight(baseURL, "/")
	session := url.PathEscape(sessionID)

	var endpoint string
	switch {
	case strings.HasSuffix(base, completionsSuffix):
		endpoint = base
	case strings.HasSuffix(base, apiVersionSuffix):
		endpoint = base + completionsSuffix
	default:
		endpoint = base + apiVersionSuffix + completionsSuffix
	}

	return []Candidate{
		{URL: endpoint, Placement: PlacementBody},
		{URL: endpoint + "/" + session, Placement: PlacementPath},
	}
}

// Plan is the full probe order for a base URL: one candidate list per
// scheme variant, in scheme order.
type Plan [][]Candidate

// NewPlan expands baseURL into its scheme variants and their candidates.
func NewPlan(baseURL, sessionID string) Plan {
	schemes := ExpandSchemes(baseURL)
	plan := make(Plan, 0, len(schemes))
	for _, base := range schemes {
		plan = append(plan, Candidates(base, sessionID))
	}
	return plan
}

// Len returns the total number of candidates across all schemes.
func (p Plan) Len() int {
	n := 0
	for _, cands := range p {
		n += len(cands)
	}
	return n
}
