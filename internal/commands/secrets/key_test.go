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
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/cortensor/internal/commands/shared"
	"github.com/tombee/cortensor/internal/secrets"
)

func newTestStore(t *testing.T) *secrets.Resolver {
	t.Helper()
	t.Setenv("CORTENSOR_API_KEY", "")
	t.Setenv("CORTENSOR_SERVE_JWT_SECRET", "")
	file, err := secrets.NewFileBackend(filepath.Join(t.TempDir(), "secrets.enc"), "test-master-key")
	require.NoError(t, err)
	return secrets.NewResolver(secrets.NewEnvBackend(), file)
}

func TestReadKey_Stdin(t *testing.T) {
	value, err := readKey(strings.NewReader("  sk-abcdef\n"), false, secrets.APIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdef", value)

	_, err = readKey(strings.NewReader("\n"), false, secrets.APIKey)
	require.Error(t, err)
	assert.Equal(t, shared.ExitInput, shared.ExitCode(err))
}

func TestSetStatusDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var out bytes.Buffer
	require.NoError(t, setKey(ctx, &out, s, secrets.APIKey, "sk-abcdef1234", ""))
	assert.Contains(t, out.String(), "...1234")
	assert.Contains(t, out.String(), "file")
	assert.NotContains(t, out.String(), "sk-abcdef")

	value, backend, err := s.Lookup(ctx, secrets.APIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdef1234", value)
	assert.Equal(t, "file", backend)

	out.Reset()
	require.NoError(t, keyStatus(ctx, &out, s, secrets.APIKey))
	assert.Contains(t, out.String(), "...1234")
	assert.Contains(t, out.String(), "env, file")

	out.Reset()
	require.NoError(t, deleteKey(ctx, &out, s, secrets.APIKey, ""))
	assert.Contains(t, out.String(), "API key deleted")

	err = deleteKey(ctx, &out, s, secrets.APIKey, "")
	require.Error(t, err)
	assert.Equal(t, shared.ExitInput, shared.ExitCode(err))

	out.Reset()
	require.NoError(t, keyStatus(ctx, &out, s, secrets.APIKey))
	assert.Contains(t, out.String(), "No API key stored")
}

func TestSetKey_ReadOnlyBackend(t *testing.T) {
	s := newTestStore(t)

	err := setKey(context.Background(), &bytes.Buffer{}, s, secrets.APIKey, "sk-abcdef1234", "env")
	require.Error(t, err)
	assert.Equal(t, shared.ExitConfig, shared.ExitCode(err))
}

func TestJWTSecretCredential(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var out bytes.Buffer
	require.NoError(t, keyStatus(ctx, &out, s, secrets.JWTSecret))
	assert.Contains(t, out.String(), "--credential jwt_secret")

	out.Reset()
	require.NoError(t, setKey(ctx, &out, s, secrets.JWTSecret, "0123456789abcdef", ""))
	assert.Contains(t, out.String(), "JWT secret")

	_, _, err := s.Lookup(ctx, secrets.APIKey)
	assert.ErrorIs(t, err, secrets.ErrNotFound)

	value, _, err := s.Lookup(ctx, secrets.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", value)
}

func TestKeyCommand_RejectsUnknownCredential(t *testing.T) {
	cmd := NewCommand()
	cmd.SetArgs([]string{"status", "--credential", "password"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, shared.ExitInput, shared.ExitCode(err))
}
