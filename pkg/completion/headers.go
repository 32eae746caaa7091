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

import "net/http"

// HeaderHost is the header name used to carry a Host override. The HTTP
// transport moves it into the request's Host field.
const HeaderHost = "Host"

// BuildHeaders returns the headers sent on every attempt.
func BuildHeaders(s Settings) http.Header {
	h := make(http.Header, 3)
	h.Set("Authorization", "Bearer "+s.APIKey)
	h.Set("Content-Type", "application/json")
	if s.HostHeader != "" {
		h.Set(HeaderHost, s.HostHeader)
	}
	return h
}
