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

package tracing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Correlation headers. X-Request-ID is accepted inbound only.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

// CorrelationID ties together the log lines, spans, history record and
// upstream requests of one completion run. It is a UUID string.
type CorrelationID string

type correlationKey struct{}

// NewCorrelationID returns a time-ordered (version 7) UUID so history
// rows sort by creation.
func NewCorrelationID() CorrelationID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return CorrelationID(id.String())
}

// ParseCorrelationID accepts any UUID form and returns its canonical
// lowercase spelling.
func ParseCorrelationID(s string) (CorrelationID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("correlation id %q: %w", s, err)
	}
	return CorrelationID(id.String()), nil
}

func (c CorrelationID) String() string { return string(c) }

// IsValid reports whether c is a UUID in the hyphenated 36-character form.
func (c CorrelationID) IsValid() bool {
	return len(c) == 36 && uuid.Validate(string(c)) == nil
}

func ToContext(ctx context.Context, id CorrelationID) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// FromContextOrEmpty returns the ID stored in ctx, or "".
func FromContextOrEmpty(ctx context.Context) CorrelationID {
	id, _ := ctx.Value(correlationKey{}).(CorrelationID)
	return id
}

// EnsureContext returns ctx with a correlation ID, minting one if needed.
func EnsureContext(ctx context.Context) (context.Context, CorrelationID) {
	if id := FromContextOrEmpty(ctx); id != "" {
		return ctx, id
	}
	id := NewCorrelationID()
	return ToContext(ctx, id), id
}

// ExtractFromRequest reads X-Correlation-ID, falling back to X-Request-ID.
func ExtractFromRequest(r *http.Request) (string, bool) {
	for _, h := range []string{HeaderCorrelationID, HeaderRequestID} {
		if v := r.Header.Get(h); v != "" {
			return v, true
		}
	}
	return "", false
}

// CorrelationMiddleware adopts the caller's correlation ID or mints one,
// stores it in the request context and echoes it on the response. A
// header that is not a UUID is rejected with 400.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id CorrelationID
		if raw, ok := ExtractFromRequest(r); ok {
			parsed, err := ParseCorrelationID(raw)
			if err != nil {
				http.Error(w, "invalid "+HeaderCorrelationID+": must be a UUID", http.StatusBadRequest)
				return
			}
			id = parsed
		} else {
			id = NewCorrelationID()
		}

		w.Header().Set(HeaderCorrelationID, id.String())
		next.ServeHTTP(w, r.WithContext(ToContext(r.Context(), id)))
	})
}
