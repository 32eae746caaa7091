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

package shared

import (
	"github.com/spf13/pflag"
)

// globals holds the persistent flags bound on the root command.
var globals struct {
	verbose       bool
	quiet         bool
	json          bool
	noInteractive bool
	configPath    string
}

// build is set from ldflags by main.
var build = struct {
	version, commit, date string
}{"dev", "unknown", "unknown"}

// BindGlobalFlags registers the flags every command inherits.
func BindGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&globals.verbose, "verbose", "v", false, "Log at debug level")
	fs.BoolVarP(&globals.quiet, "quiet", "q", false, "Log errors only")
	fs.BoolVar(&globals.json, "json", false, "Write machine-readable JSON")
	fs.BoolVar(&globals.noInteractive, "no-interactive", false, "Never prompt; fail instead")
	fs.StringVar(&globals.configPath, "config", "", "Config file (default: ~/.config/cortensor/config.yaml)")
}

func SetVersion(version, commit, date string) {
	build.version, build.commit, build.date = version, commit, date
}

// GetVersion returns version, commit and build date.
func GetVersion() (string, string, string) {
	return build.version, build.commit, build.date
}

func GetVerbose() bool              { return globals.verbose }
func GetQuiet() bool                { return globals.quiet }
func GetJSON() bool                 { return globals.json }
func GetConfigPath() string         { return globals.configPath }
func SetJSONForTest(v bool)         { globals.json = v }
func SetConfigPathForTest(p string) { globals.configPath = p }
