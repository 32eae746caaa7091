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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend is an in-memory Backend.
type memBackend struct {
	name     string
	down     bool
	readOnly bool
	values   map[string]string
	getErr   error
}

func newMem(name string) *memBackend {
	return &memBackend{name: name, values: map[string]string{}}
}

func (m *memBackend) Name() string    { return m.name }
func (m *memBackend) Available() bool { return !m.down }

func (m *memBackend) Get(_ context.Context, name string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[name]
	if !ok {
		return "", notFound(name)
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, name, value string) error {
	if m.readOnly {
		return ErrReadOnly
	}
	m.values[name] = value
	return nil
}

func (m *memBackend) Delete(_ context.Context, name string) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if _, ok := m.values[name]; !ok {
		return notFound(name)
	}
	delete(m.values, name)
	return nil
}

func names(r *Resolver) []string {
	var out []string
	for _, b := range r.Backends() {
		out = append(out, b.Name())
	}
	return out
}

func TestNewResolver_KeepsOrderAndDropsUnavailable(t *testing.T) {
	down := newMem("down")
	down.down = true

	r := NewResolver(newMem("env"), nil, down, newMem("file"))
	assert.Equal(t, []string{"env", "file"}, names(r))
}

func TestResolver_LookupFirstWins(t *testing.T) {
	first := newMem("first")
	second := newMem("second")
	second.values[APIKey] = "second-value"
	r := NewResolver(first, second)

	value, source, err := r.Lookup(context.Background(), APIKey)
	require.NoError(t, err)
	assert.Equal(t, "second-value", value)
	assert.Equal(t, "second", source)

	first.values[APIKey] = "first-value"
	value, err = r.Get(context.Background(), APIKey)
	require.NoError(t, err)
	assert.Equal(t, "first-value", value)

	_, err = r.Get(context.Background(), JWTSecret)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_LookupFailureShadowedByLaterHit(t *testing.T) {
	broken := newMem("broken")
	broken.getErr = errors.New("boom")
	ok := newMem("ok")
	r := NewResolver(broken, ok)

	_, err := r.Get(context.Background(), APIKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "broken: boom")

	ok.values[APIKey] = "v"
	value, err := r.Get(context.Background(), APIKey)
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

func TestResolver_SetSkipsReadOnly(t *testing.T) {
	env := newMem("env")
	env.readOnly = true
	store := newMem("store")
	r := NewResolver(env, store)

	used, err := r.Set(context.Background(), APIKey, "v", "")
	require.NoError(t, err)
	assert.Equal(t, "store", used)
	assert.Equal(t, "v", store.values[APIKey])

	_, err = r.Set(context.Background(), APIKey, "v", "env")
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = r.Set(context.Background(), APIKey, "v", "nope")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolver_SetAllReadOnly(t *testing.T) {
	env := newMem("env")
	env.readOnly = true

	_, err := NewResolver(env).Set(context.Background(), APIKey, "v", "")
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestResolver_Delete(t *testing.T) {
	a := newMem("a")
	b := newMem("b")
	a.values[APIKey] = "1"
	b.values[APIKey] = "2"
	r := NewResolver(a, b)

	require.NoError(t, r.Delete(context.Background(), APIKey, ""))
	assert.Empty(t, a.values)
	assert.Empty(t, b.values)

	assert.ErrorIs(t, r.Delete(context.Background(), APIKey, ""), ErrNotFound)
}

func TestResolver_Empty(t *testing.T) {
	r := NewResolver()

	_, err := r.Get(context.Background(), APIKey)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = r.Set(context.Background(), APIKey, "v", "")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, r.Delete(context.Background(), APIKey, ""), ErrUnavailable)
}
