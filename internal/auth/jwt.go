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

// Package auth issues and verifies the HS256 bearer tokens that protect
// 'cortensor serve'.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeComplete allows POST /v1/completions.
const ScopeComplete = "completions"

// DefaultTokenTTL applies to tokens issued without an expiry.
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrNoSigningKey = errors.New("no signing key configured")
	ErrEmptyToken   = errors.New("token is empty")
)

// JWTConfig holds the serve token settings.
type JWTConfig struct {
	// Secret is the HS256 key.
	Secret []byte
	// Issuer is stamped on issued tokens and, when set, required on
	// presented ones.
	Issuer string
	// Audience, when set, must be listed in a presented token.
	Audience string
	// ClockSkew is tolerated on exp and nbf.
	ClockSkew time.Duration
}

func (c JWTConfig) parser() *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(c.ClockSkew),
		jwt.WithIssuedAt(),
	}
	if c.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.Issuer))
	}
	if c.Audience != "" {
		opts = append(opts, jwt.WithAudience(c.Audience))
	}
	return jwt.NewParser(opts...)
}

func (c JWTConfig) key(*jwt.Token) (any, error) { return c.Secret, nil }

// Claims are carried by serve tokens.
type Claims struct {
	jwt.RegisteredClaims
	// Scopes limits what the bearer may call; none means all.
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope reports whether scope is granted.
func (c *Claims) HasScope(scope string) bool {
	return len(c.Scopes) == 0 || slices.Contains(c.Scopes, scope)
}

// ValidateJWT checks the signature and registered claims of raw.
func ValidateJWT(raw string, cfg JWTConfig) (*Claims, error) {
	switch {
	case len(cfg.Secret) == 0:
		return nil, ErrNoSigningKey
	case raw == "":
		return nil, ErrEmptyToken
	}

	var claims Claims
	if _, err := cfg.parser().ParseWithClaims(raw, &claims, cfg.key); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return &claims, nil
}

// GenerateJWT signs claims. IssuedAt defaults to now, ExpiresAt to
// DefaultTokenTTL later and Issuer to cfg.Issuer.
func GenerateJWT(claims Claims, cfg JWTConfig) (string, error) {
	if len(cfg.Secret) == 0 {
		return "", ErrNoSigningKey
	}

	now := time.Now()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(DefaultTokenTTL))
	}
	if claims.Issuer == "" {
		claims.Issuer = cfg.Issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
