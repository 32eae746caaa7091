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

package httpclient

import (
	"errors"
	"log/slog"
	"time"

	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
)

// DefaultUserAgent identifies the client to router nodes.
const DefaultUserAgent = "cortensor-go/1.0"

// Config is shared by every client a Pool hands out.
type Config struct {
	// Timeout bounds one request including the body read. Default: 320s.
	Timeout time.Duration

	// UserAgent is sent unless the request sets its own.
	UserAgent string

	// InsecureSkipVerify applies to New only. A Pool ignores it.
	InsecureSkipVerify bool

	// MaxIdleConnsPerHost sizes the keep-alive pool per node. Default: 8.
	MaxIdleConnsPerHost int

	// Logger receives round-trip records. Nil uses slog.Default().
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Timeout:             320 * time.Second,
		UserAgent:           DefaultUserAgent,
		MaxIdleConnsPerHost: 8,
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, &cortensorerrors.ValidationError{Field: "timeout", Message: "must be > 0, got " + c.Timeout.String()})
	}
	if c.UserAgent == "" {
		errs = append(errs, &cortensorerrors.ValidationError{Field: "user_agent", Message: "is required"})
	}
	if c.MaxIdleConnsPerHost < 0 {
		errs = append(errs, &cortensorerrors.ValidationError{Field: "max_idle_conns_per_host", Message: "must not be negative"})
	}
	return errors.Join(errs...)
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
