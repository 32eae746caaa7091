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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
)

// MasterKeyEnv supplies the passphrase for the encrypted file.
const MasterKeyEnv = "CORTENSOR_MASTER_KEY"

const sealVersion = 1

// sealed is the on-disk layout: a JSON map of credentials encrypted with
// AES-256-GCM under an Argon2id key derived from the master passphrase.
type sealed struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Box     []byte `json:"box"`
}

// FileBackend keeps credentials in an encrypted file, by default
// <config dir>/cortensor/secrets.enc. The master passphrase comes from
// the constructor, then CORTENSOR_MASTER_KEY, then a 0600
// <config dir>/cortensor/master.key. Without one the backend is
// unavailable.
type FileBackend struct {
	path   string
	master []byte
	mu     sync.Mutex
}

func NewFileBackend(path, masterKey string) (*FileBackend, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "cortensor", "secrets.enc")
	}

	f := &FileBackend{path: path, master: masterPassphrase(masterKey)}
	if f.master != nil {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create secrets dir: %w", err)
		}
	}
	return f, nil
}

func (f *FileBackend) Name() string    { return "file" }
func (f *FileBackend) Path() string    { return f.path }
func (f *FileBackend) Available() bool { return f.master != nil }

func (f *FileBackend) Get(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := creds[name]
	if !ok {
		return "", notFound(name)
	}
	return v, nil
}

func (f *FileBackend) Set(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.read()
	if err != nil {
		return err
	}
	creds[name] = value
	return f.write(creds)
}

func (f *FileBackend) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := creds[name]; !ok {
		return notFound(name)
	}
	delete(creds, name)
	return f.write(creds)
}

// read returns an empty map when the file does not exist yet.
func (f *FileBackend) read() (map[string]string, error) {
	if f.master == nil {
		return nil, fmt.Errorf("%w: no master key (set %s)", ErrUnavailable, MasterKeyEnv)
	}

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var s sealed
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	if s.Version != sealVersion {
		return nil, fmt.Errorf("%s: unsupported version %d", f.path, s.Version)
	}
	plain, err := unseal(f.master, s)
	if err != nil {
		return nil, err
	}
	defer clear(plain)

	creds := map[string]string{}
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return creds, nil
}

func (f *FileBackend) write(creds map[string]string) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	defer clear(plain)

	s, err := seal(f.master, plain)
	if err != nil {
		return err
	}
	out, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return writePrivate(f.path, out)
}

func seal(master, plain []byte) (sealed, error) {
	s := sealed{Version: sealVersion, Salt: make([]byte, 16)}
	if _, err := rand.Read(s.Salt); err != nil {
		return s, err
	}
	aead, err := newAEAD(master, s.Salt)
	if err != nil {
		return s, err
	}
	s.Nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(s.Nonce); err != nil {
		return s, err
	}
	s.Box = aead.Seal(nil, s.Nonce, plain, nil)
	return s, nil
}

func unseal(master []byte, s sealed) ([]byte, error) {
	aead, err := newAEAD(master, s.Salt)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, s.Nonce, s.Box, nil)
	if err != nil {
		return nil, errors.New("decryption failed: wrong master key or corrupted file")
	}
	return plain, nil
}

func newAEAD(master, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(master, salt, 3, 64*1024, 4, 32)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// writePrivate replaces path atomically with a 0600 file.
func writePrivate(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".secrets-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func masterPassphrase(explicit string) []byte {
	if explicit != "" {
		return []byte(explicit)
	}
	if v := os.Getenv(MasterKeyEnv); v != "" {
		return []byte(v)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(dir, "cortensor", "master.key")
	if checkPrivate(path) != nil {
		return nil
	}
	key, err := os.ReadFile(path)
	if err != nil || len(key) == 0 {
		return nil
	}
	return key
}

// checkPrivate rejects symlinks and files readable by group or other.
func checkPrivate(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%s is a symlink", path)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Errorf("%s has mode %o, want 0600", path, perm)
	}
	return nil
}
