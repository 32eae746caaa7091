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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tombee/cortensor/internal/log"
	"github.com/tombee/cortensor/internal/secrets"
	"github.com/tombee/cortensor/internal/tracing"
	"github.com/tombee/cortensor/internal/tracing/export"
	"github.com/tombee/cortensor/pkg/completion"
	cortensorerrors "github.com/tombee/cortensor/pkg/errors"
	"github.com/tombee/cortensor/pkg/httpclient"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config is the complete cortensor configuration. It is built once by Load
// and treated as read-only afterwards.
type Config struct {
	API     APIConfig      `yaml:"api"`
	Log     LogConfig      `yaml:"log"`
	Tracing tracing.Config `yaml:"tracing"`
	Serve   ServeConfig    `yaml:"serve"`
	History HistoryConfig  `yaml:"history"`

	// Path is the config file that was read, or "" when none was.
	Path string `yaml:"-"`

	// APIKeySource names where API.Key came from: "file", "env" or a
	// secrets backend name.
	APIKeySource string `yaml:"-"`
}

// APIConfig describes the remote completion service.
type APIConfig struct {
	// URL is the service base address, with or without scheme.
	URL string `yaml:"url"`

	// Key is the bearer token. Prefer 'cortensor key set' over storing it here.
	Key string `yaml:"key,omitempty"`

	// SessionID identifies the session on the service.
	SessionID string `yaml:"session_id"`

	// TLSInsecure disables certificate verification.
	TLSInsecure bool `yaml:"tls_insecure,omitempty"`

	// HostHeader overrides the Host sent on every request.
	HostHeader string `yaml:"host_header,omitempty"`

	// PromptType is sent as prompt_type; invalid or zero values mean 1.
	PromptType string `yaml:"prompt_type,omitempty"`

	// Provider and Model are defaults for requests that name none.
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`

	// CallTimeout bounds each HTTP call. Default: 320s.
	CallTimeout time.Duration `yaml:"call_timeout,omitempty"`

	// UserAgent is sent on every request.
	UserAgent string `yaml:"user_agent,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error. Default: info.
	Level string `yaml:"level,omitempty"`

	// Format is json or text. Default: json.
	Format string `yaml:"format,omitempty"`

	// AddSource adds file:line to every record.
	AddSource bool `yaml:"add_source,omitempty"`
}

// ServeConfig configures the HTTP front end started by 'cortensor serve'.
type ServeConfig struct {
	// Addr is the listen address. Default: 127.0.0.1:8080.
	Addr string `yaml:"addr,omitempty"`

	// RateLimit is the sustained requests per second. 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit,omitempty"`

	// Burst is the rate limiter bucket size. Default: 10.
	Burst int `yaml:"burst,omitempty"`

	// MaxBodyBytes caps request bodies. Default: 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes,omitempty"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// JWTSecret enables bearer-token authentication when set.
	JWTSecret string `yaml:"jwt_secret,omitempty"`

	// JWTIssuer, when set, must match the iss claim.
	JWTIssuer string `yaml:"jwt_issuer,omitempty"`

	// WatchConfig reloads the config file when it changes.
	WatchConfig bool `yaml:"watch_config,omitempty"`
}

// HistoryConfig configures the local completion history database.
type HistoryConfig struct {
	// Enabled turns on recording. Default: false.
	Enabled bool `yaml:"enabled,omitempty"`

	// Path is the SQLite file. Default: <data dir>/history.db.
	Path string `yaml:"path,omitempty"`
}

// Default returns a Config with every optional field set.
func Default() *Config {
	return &Config{
		API: APIConfig{
			CallTimeout: completion.DefaultCallTimeout,
			UserAgent:   httpclient.DefaultUserAgent,
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(log.FormatJSON),
		},
		Tracing: tracing.DefaultConfig(),
		Serve: ServeConfig{
			Addr:            "127.0.0.1:8080",
			Burst:           10,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// SecretLookup resolves a named secret and reports which backend held it.
type SecretLookup interface {
	Lookup(ctx context.Context, key string) (value, backend string, err error)
}

// Loader controls where Load looks for settings.
type Loader struct {
	// DotEnv lists .env files applied before the environment is read.
	// Missing files are skipped; existing variables are never overridden.
	DotEnv []string

	// Secrets resolves the API key and JWT secret when neither the file nor the
	// environment set it. Nil disables the lookup.
	Secrets SecretLookup
}

// Load reads configuration with the default Loader: ./.env and the
// env, keychain and encrypted-file secret backends.
func Load(configPath string) (*Config, error) {
	resolver, err := secrets.NewDefaultResolver()
	if err != nil {
		return nil, &cortensorerrors.ConfigError{
			Key:    "secrets",
			Reason: "failed to initialise secret backends",
			Cause:  err,
		}
	}
	l := &Loader{DotEnv: []string{".env"}, Secrets: resolver}
	return l.Load(configPath)
}

// Load builds a Config from, in increasing precedence: defaults, the YAML
// file, .env files, and the environment. The API key falls back to
// l.Secrets when still empty. An explicit configPath must exist; when
// configPath is empty the default path is used if present.
//
// Load does not validate; call Validate before use.
func (l *Loader) Load(configPath string) (*Config, error) {
	cfg := Default()

	path, explicit := configPath, configPath != ""
	if !explicit {
		if p, err := ConfigPath(); err == nil {
			path = p
		}
	}

	if path != "" {
		err := cfg.loadFromFile(path)
		switch {
		case err == nil:
			cfg.Path = expandHome(path)
		case !explicit && errors.Is(err, os.ErrNotExist):
		default:
			return nil, &cortensorerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}
	if cfg.API.Key != "" {
		cfg.APIKeySource = "file"
	}

	if err := loadDotEnv(l.DotEnv); err != nil {
		return nil, &cortensorerrors.ConfigError{
			Key:    "dotenv",
			Reason: "failed to load .env file",
			Cause:  err,
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if l.Secrets != nil {
		ctx := context.Background()
		if cfg.API.Key == "" {
			if key, backend, err := l.Secrets.Lookup(ctx, secrets.APIKey); err == nil && key != "" {
				cfg.API.Key = key
				cfg.APIKeySource = backend
			}
		}
		if cfg.Serve.JWTSecret == "" {
			if secret, _, err := l.Secrets.Lookup(ctx, secrets.JWTSecret); err == nil {
				cfg.Serve.JWTSecret = secret
			}
		}
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

func loadDotEnv(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// loadFromEnv applies environment overrides.
func (c *Config) loadFromEnv() error {
	if val := os.Getenv("CORTENSOR_API_URL"); val != "" {
		c.API.URL = strings.TrimSpace(val)
	}
	if val := os.Getenv("CORTENSOR_API_KEY"); val != "" {
		c.API.Key = val
		c.APIKeySource = "env"
	}
	if val := os.Getenv("CORTENSOR_SESSION_ID"); val != "" {
		c.API.SessionID = val
	}
	if val, ok := os.LookupEnv("CORTENSOR_TLS_INSECURE"); ok {
		c.API.TLSInsecure = ParseBool(val)
	}
	if val := os.Getenv("CORTENSOR_HOST_HEADER"); val != "" {
		c.API.HostHeader = val
	}
	if val := os.Getenv("CORTENSOR_PROMPT_TYPE"); val != "" {
		c.API.PromptType = val
	}
	if val := os.Getenv("CORTENSOR_PROVIDER"); val != "" {
		c.API.Provider = val
	}
	if val := os.Getenv("CORTENSOR_MODEL"); val != "" {
		c.API.Model = val
	}
	if val := os.Getenv("CORTENSOR_CALL_TIMEOUT"); val != "" {
		d, err := ParseDuration(val)
		if err != nil {
			return &cortensorerrors.ConfigError{
				Key:    "CORTENSOR_CALL_TIMEOUT",
				Reason: fmt.Sprintf("invalid duration %q", val),
				Cause:  err,
			}
		}
		c.API.CallTimeout = d
	}

	debug := os.Getenv("CORTENSOR_DEBUG")
	if ParseBool(debug) {
		c.Log.Level = "debug"
		c.Log.AddSource = true
	} else if val := os.Getenv("CORTENSOR_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	} else if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = ParseBool(val)
	}

	if val := os.Getenv("CORTENSOR_TRACING_EXPORTER"); val != "" {
		c.Tracing.Exporter = strings.ToLower(val)
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}

	if val := os.Getenv("CORTENSOR_SERVE_ADDR"); val != "" {
		c.Serve.Addr = val
	}
	if val := os.Getenv("CORTENSOR_SERVE_JWT_SECRET"); val != "" {
		c.Serve.JWTSecret = val
	}

	if val, ok := os.LookupEnv("CORTENSOR_HISTORY"); ok {
		c.History.Enabled = ParseBool(val)
	}
	if val := os.Getenv("CORTENSOR_HISTORY_PATH"); val != "" {
		c.History.Path = val
	}

	return nil
}

// applyDefaults fills zero values left by a minimal config file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.API.CallTimeout == 0 {
		c.API.CallTimeout = d.API.CallTimeout
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = d.API.UserAgent
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = d.Tracing.ServiceName
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = d.Tracing.Exporter
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = d.Tracing.SampleRate
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = d.Serve.Addr
	}
	if c.Serve.Burst == 0 {
		c.Serve.Burst = d.Serve.Burst
	}
	if c.Serve.MaxBodyBytes == 0 {
		c.Serve.MaxBodyBytes = d.Serve.MaxBodyBytes
	}
	if c.Serve.ShutdownTimeout == 0 {
		c.Serve.ShutdownTimeout = d.Serve.ShutdownTimeout
	}
	if c.History.Path == "" {
		if dir, err := DataDir(); err == nil {
			c.History.Path = filepath.Join(dir, "history.db")
		}
	}
}

// Validate checks everything a completion run needs.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.API.URL) == "" {
		errs = append(errs, "api.url is required (set CORTENSOR_API_URL)")
	}
	if c.API.Key == "" {
		errs = append(errs, "api.key is required (set CORTENSOR_API_KEY or run 'cortensor key set')")
	}
	if c.API.SessionID == "" {
		errs = append(errs, "api.session_id is required (set CORTENSOR_SESSION_ID)")
	}
	if c.API.CallTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("api.call_timeout must be positive, got %v", c.API.CallTimeout))
	}

	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if kinds := export.Kinds(); c.Tracing.Exporter != "" && !slices.Contains(kinds, c.Tracing.Exporter) {
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of %v, got %q", kinds, c.Tracing.Exporter))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}

	if c.Serve.RateLimit < 0 {
		errs = append(errs, fmt.Sprintf("serve.rate_limit must not be negative, got %v", c.Serve.RateLimit))
	}
	if c.Serve.Burst < 1 {
		errs = append(errs, fmt.Sprintf("serve.burst must be at least 1, got %d", c.Serve.Burst))
	}

	if len(errs) > 0 {
		return &cortensorerrors.ConfigError{
			Key:    "validation",
			Reason: strings.Join(errs, "; "),
			Cause:  ErrInvalidConfig,
		}
	}

	return nil
}

// CompletionSettings returns the values the completion core works from.
func (c *Config) CompletionSettings() completion.Settings {
	return completion.Settings{
		BaseURL:         c.API.URL,
		APIKey:          c.API.Key,
		SessionID:       c.API.SessionID,
		TLSInsecure:     c.API.TLSInsecure,
		HostHeader:      c.API.HostHeader,
		PromptType:      c.API.PromptType,
		CallTimeout:     c.API.CallTimeout,
		DefaultProvider: c.API.Provider,
		DefaultModel:    c.API.Model,
	}
}

// HTTPClientConfig returns the HTTP client settings for the transport.
func (c *Config) HTTPClientConfig() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.API.CallTimeout
	hc.UserAgent = c.API.UserAgent
	hc.InsecureSkipVerify = c.API.TLSInsecure
	return hc
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() *log.Config {
	return &log.Config{
		Level:     c.Log.Level,
		Format:    log.Format(c.Log.Format),
		AddSource: c.Log.AddSource,
	}
}

// Redacted returns a copy safe to print: the API key and JWT secret are masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.API.Key != "" {
		out.API.Key = log.SanitizeAPIKey(out.API.Key)
	}
	if out.Serve.JWTSecret != "" {
		out.Serve.JWTSecret = "[REDACTED]"
	}
	if len(c.Tracing.Headers) > 0 {
		out.Tracing.Headers = make(map[string]string, len(c.Tracing.Headers))
		for k := range c.Tracing.Headers {
			out.Tracing.Headers[k] = "[REDACTED]"
		}
	}
	return &out
}

// ParseBool reports whether s is one of 1, true, yes, on (case-insensitive).
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// ParseDuration accepts Go duration syntax or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
