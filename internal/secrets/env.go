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

package secrets

import (
	"context"
	"os"
)

// envVars maps each credential to the variable that supplies it.
var envVars = map[string]string{
	APIKey:    "CORTENSOR_API_KEY",
	JWTSecret: "CORTENSOR_SERVE_JWT_SECRET",
}

// EnvBackend reads credentials from the process environment. It cannot
// be written.
type EnvBackend struct {
	getenv func(string) string
}

func NewEnvBackend() *EnvBackend {
	return &EnvBackend{getenv: os.Getenv}
}

func (e *EnvBackend) Name() string    { return "env" }
func (e *EnvBackend) Available() bool { return true }

func (e *EnvBackend) Get(_ context.Context, name string) (string, error) {
	if v, ok := envVars[name]; ok {
		if value := e.getenv(v); value != "" {
			return value, nil
		}
	}
	return "", notFound(name)
}

func (e *EnvBackend) Set(context.Context, string, string) error { return ErrReadOnly }
func (e *EnvBackend) Delete(context.Context, string) error      { return ErrReadOnly }

// Variable returns the environment variable consulted for name.
func Variable(name string) string {
	return envVars[name]
}
