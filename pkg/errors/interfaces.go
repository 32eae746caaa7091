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

// ErrorClassifier groups failures by what went wrong during a completion
// run. ErrorType is one of "validation", "not_found", "http_status",
// "tls", "connection", "decode" or "exhausted". IsRetryable is true when
// the dispatcher moves on to another candidate after the failure.
type ErrorClassifier interface {
	error
	ErrorType() string
	IsRetryable() bool
}

// UserVisibleError carries text safe to show an end user, free of URLs
// and response bodies, plus an optional hint on how to fix the cause.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string
	Suggestion() string
}

var (
	_ ErrorClassifier = (*ValidationError)(nil)
	_ ErrorClassifier = (*HTTPStatusError)(nil)
	_ ErrorClassifier = (*SchemeError)(nil)
	_ ErrorClassifier = (*ConnectionError)(nil)
	_ ErrorClassifier = (*ResponseDecodeError)(nil)
	_ ErrorClassifier = (*ExhaustedError)(nil)

	_ UserVisibleError = (*HTTPStatusError)(nil)
	_ UserVisibleError = (*ExhaustedError)(nil)
)
