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

// Package secrets resolves the credentials cortensor needs: the router
// API key and the serve JWT signing secret.
//
// A Resolver walks a chain of backends in the order it was built with.
// The default chain is env, keychain, then an encrypted file, so an
// exported variable always wins over a stored value.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Credential names.
const (
	APIKey    = "api_key"
	JWTSecret = "jwt_secret"
)

// Credentials lists every name the backends accept.
var Credentials = []string{APIKey, JWTSecret}

var (
	ErrNotFound    = errors.New("credential not found")
	ErrUnavailable = errors.New("backend unavailable")
	ErrReadOnly    = errors.New("backend is read-only")
)

// Backend stores credentials by name.
type Backend interface {
	// Name identifies the backend in `key status` output ("env",
	// "keychain", "file").
	Name() string
	// Get returns ErrNotFound when the credential is absent.
	Get(ctx context.Context, name string) (string, error)
	// Set returns ErrReadOnly on backends that cannot be written.
	Set(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
	// Available reports whether the backend works on this host.
	Available() bool
}

// CheckName rejects names outside Credentials.
func CheckName(name string) error {
	if slices.Contains(Credentials, name) {
		return nil
	}
	return fmt.Errorf("unknown credential %q (want one of %v)", name, Credentials)
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}
