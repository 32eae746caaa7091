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
	"errors"
	"fmt"
)

// Resolver looks credentials up across a chain of backends.
type Resolver struct {
	chain []Backend
}

// NewResolver keeps the available backends in the order given.
func NewResolver(backends ...Backend) *Resolver {
	r := &Resolver{}
	for _, b := range backends {
		if b != nil && b.Available() {
			r.chain = append(r.chain, b)
		}
	}
	return r
}

// NewDefaultResolver chains the environment, the system keychain and the
// encrypted file under the user config directory.
func NewDefaultResolver() (*Resolver, error) {
	file, err := NewFileBackend("", "")
	if err != nil {
		return nil, err
	}
	return NewResolver(NewEnvBackend(), NewKeychainBackend(), file), nil
}

// Backends returns the chain.
func (r *Resolver) Backends() []Backend {
	return r.chain
}

// Get returns the first value found for name.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	v, _, err := r.Lookup(ctx, name)
	return v, err
}

// Lookup is Get that also reports which backend held the value. A
// backend failure other than ErrNotFound is returned only if no later
// backend has the credential.
func (r *Resolver) Lookup(ctx context.Context, name string) (string, string, error) {
	if len(r.chain) == 0 {
		return "", "", fmt.Errorf("%w: no backends", ErrUnavailable)
	}

	var failure error
	for _, b := range r.chain {
		v, err := b.Get(ctx, name)
		switch {
		case err == nil:
			return v, b.Name(), nil
		case errors.Is(err, ErrNotFound):
		default:
			if failure == nil {
				failure = fmt.Errorf("%s: %w", b.Name(), err)
			}
		}
	}
	if failure != nil {
		return "", "", fmt.Errorf("lookup %s: %w", name, failure)
	}
	return "", "", notFound(name)
}

// Set writes name to the backend called target, or to the first backend
// that accepts the write when target is empty. It returns the backend
// written.
func (r *Resolver) Set(ctx context.Context, name, value, target string) (string, error) {
	if len(r.chain) == 0 {
		return "", fmt.Errorf("%w: no backends", ErrUnavailable)
	}

	if target != "" {
		b, err := r.find(target)
		if err != nil {
			return "", err
		}
		if err := b.Set(ctx, name, value); err != nil {
			return "", fmt.Errorf("store %s in %s: %w", name, target, err)
		}
		return target, nil
	}

	for _, b := range r.chain {
		err := b.Set(ctx, name, value)
		if err == nil {
			return b.Name(), nil
		}
		if !errors.Is(err, ErrReadOnly) && !errors.Is(err, ErrUnavailable) {
			return "", fmt.Errorf("store %s in %s: %w", name, b.Name(), err)
		}
	}
	return "", fmt.Errorf("%w: no writable backend", ErrReadOnly)
}

// Delete removes name from target, or from every writable backend that
// holds it when target is empty.
func (r *Resolver) Delete(ctx context.Context, name, target string) error {
	if len(r.chain) == 0 {
		return fmt.Errorf("%w: no backends", ErrUnavailable)
	}

	if target != "" {
		b, err := r.find(target)
		if err != nil {
			return err
		}
		if err := b.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete %s from %s: %w", name, target, err)
		}
		return nil
	}

	removed := 0
	for _, b := range r.chain {
		err := b.Delete(ctx, name)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrReadOnly):
		default:
			return fmt.Errorf("delete %s from %s: %w", name, b.Name(), err)
		}
	}
	if removed == 0 {
		return notFound(name)
	}
	return nil
}

func (r *Resolver) find(name string) (Backend, error) {
	for _, b := range r.chain {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, name)
}
