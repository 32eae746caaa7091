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

package config

import (
	"os"
	"path/filepath"
)

// cortensor follows the XDG base directory layout on every platform,
// macOS included.

// ConfigDir returns $XDG_CONFIG_HOME/cortensor or ~/.config/cortensor.
func ConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// ConfigPath returns the default config file, ConfigDir()/config.yaml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDir returns $XDG_DATA_HOME/cortensor or ~/.local/share/cortensor.
// The history database lives here.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// EnsureDir creates dir as 0700 if missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o700)
}

func xdgDir(env string, homeRel ...string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, "cortensor"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, homeRel...), "cortensor")...), nil
}
