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

package errors

import "errors"

// As is errors.As, re-exported so callers importing this package under
// another name need not import the standard one too.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// TypeOf is the ErrorType of the first classified error in err's chain.
// Unclassified errors report "unknown".
func TypeOf(err error) string {
	if c, ok := classifier(err); ok {
		return c.ErrorType()
	}
	return "unknown"
}

// IsRetryable reports whether another endpoint candidate could still
// succeed after err. Unclassified errors are final.
func IsRetryable(err error) bool {
	c, ok := classifier(err)
	return ok && c.IsRetryable()
}

// SuggestionOf returns the hint of the first user-visible error in the
// chain, or "".
func SuggestionOf(err error) string {
	var uv UserVisibleError
	if errors.As(err, &uv) && uv.IsUserVisible() {
		return uv.Suggestion()
	}
	return ""
}

// Attempts is the number of requests an exhausted run made, or 0 when
// err did not come from exhaustion.
func Attempts(err error) int {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex.Attempts
	}
	return 0
}

// UpstreamStatus is the HTTP status the router answered with, looking
// through an ExhaustedError to its last failure. It is 0 when no
// response was received.
func UpstreamStatus(err error) int {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func classifier(err error) (ErrorClassifier, bool) {
	var c ErrorClassifier
	ok := errors.As(err, &c)
	return c, ok
}
