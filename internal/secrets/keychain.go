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
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const keychainService = "cortensor"

// KeychainBackend keeps credentials in the OS keychain under the
// "cortensor" service, one entry per credential name.
type KeychainBackend struct {
	probe  sync.Once
	usable bool
}

func NewKeychainBackend() *KeychainBackend {
	return &KeychainBackend{}
}

func (k *KeychainBackend) Name() string { return "keychain" }

// Available probes the keychain once. Headless Linux hosts without a
// secret service report false.
func (k *KeychainBackend) Available() bool {
	k.probe.Do(func() {
		_, err := keyring.Get(keychainService, "probe")
		k.usable = err == nil || errors.Is(err, keyring.ErrNotFound)
	})
	return k.usable
}

func (k *KeychainBackend) Get(_ context.Context, name string) (string, error) {
	if !k.Available() {
		return "", ErrUnavailable
	}
	v, err := keyring.Get(keychainService, name)
	if err != nil {
		return "", keychainError(name, err)
	}
	return v, nil
}

func (k *KeychainBackend) Set(_ context.Context, name, value string) error {
	if !k.Available() {
		return ErrUnavailable
	}
	return keychainError(name, keyring.Set(keychainService, name, value))
}

func (k *KeychainBackend) Delete(_ context.Context, name string) error {
	if !k.Available() {
		return ErrUnavailable
	}
	return keychainError(name, keyring.Delete(keychainService, name))
}

func keychainError(name string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return notFound(name)
	case keychainLocked(err):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("keychain: %w", err)
	}
}

// keychainLocked matches the errors platform keychains return when the
// store exists but cannot be used right now.
func keychainLocked(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"locked", "dbus", "secret service", "permission denied", "user canceled"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
