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

import "strings"

const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"
)

// ExpandSchemes returns the two base URLs to probe, differing only in
// transport scheme. A configured scheme is tried first and its opposite
// second; without a scheme, http:// is tried before https://.
func ExpandSchemes(baseURL string) []string {
	switch {
	case hasPrefixFold(baseURL, schemeHTTP):
		return []string{baseURL, schemeHTTPS + baseURL[len(schemeHTTP):]}
	case hasPrefixFold(baseURL, schemeHTTPS):
		return []string{baseURL, schemeHTTP + baseURL[len(schemeHTTPS):]}
	default:
		return []string{schemeHTTP + baseURL, schemeHTTPS + baseURL}
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// schemeOf returns "http" or "https" for a URL produced by ExpandSchemes.
func schemeOf(u string) string {
	if hasPrefixFold(u, schemeHTTPS) {
		return "https"
	}
	return "http"
}
