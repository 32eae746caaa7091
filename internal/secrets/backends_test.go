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
	"github.com/zalando/go-keyring"
)

func TestCheckName(t *testing.T) {
	assert.NoError(t, CheckName(APIKey))
	assert.NoError(t, CheckName(JWTSecret))
	assert.ErrorContains(t, CheckName("password"), "unknown credential")
}

func TestEnvBackend(t *testing.T) {
	env := map[string]string{
		"CORTENSOR_API_KEY":          "from-env",
		"CORTENSOR_SERVE_JWT_SECRET": "signing",
	}
	backend := &EnvBackend{getenv: func(k string) string { return env[k] }}
	ctx := context.Background()

	value, err := backend.Get(ctx, APIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)

	value, err = backend.Get(ctx, JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "signing", value)

	_, err = backend.Get(ctx, "other")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, backend.Set(ctx, APIKey, "x"), ErrReadOnly)
	assert.ErrorIs(t, backend.Delete(ctx, APIKey), ErrReadOnly)
	assert.True(t, backend.Available())
	assert.Equal(t, "CORTENSOR_API_KEY", Variable(APIKey))
}

func TestNewEnvBackend_ReadsProcessEnv(t *testing.T) {
	t.Setenv("CORTENSOR_API_KEY", "process")

	value, err := NewEnvBackend().Get(context.Background(), APIKey)
	require.NoError(t, err)
	assert.Equal(t, "process", value)
}

func TestKeychainBackend(t *testing.T) {
	keyring.MockInit()
	backend := NewKeychainBackend()
	require.True(t, backend.Available())
	ctx := context.Background()

	_, err := backend.Get(ctx, APIKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, backend.Set(ctx, APIKey, "stored"))
	value, err := backend.Get(ctx, APIKey)
	require.NoError(t, err)
	assert.Equal(t, "stored", value)

	require.NoError(t, backend.Delete(ctx, APIKey))
	assert.ErrorIs(t, backend.Delete(ctx, APIKey), ErrNotFound)
}

func TestKeychainBackend_Unreachable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: connection refused"))
	t.Cleanup(keyring.MockInit)

	backend := NewKeychainBackend()
	assert.False(t, backend.Available())

	_, err := backend.Get(context.Background(), APIKey)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestKeychainLocked(t *testing.T) {
	assert.True(t, keychainLocked(errors.New("The keychain is LOCKED")))
	assert.True(t, keychainLocked(errors.New("failed to connect to dbus")))
	assert.False(t, keychainLocked(errors.New("something else")))
}
