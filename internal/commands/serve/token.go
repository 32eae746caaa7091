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

package serve

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/tombee/cortensor/internal/auth"
	"github.com/tombee/cortensor/internal/commands/shared"
)

// NewTokenCommand creates the token command.
func NewTokenCommand() *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create a bearer token for 'cortensor serve'",
		Annotations: map[string]string{
			"group": "server",
		},
		Long: `Token signs a JWT with serve.jwt_secret for clients of 'cortensor serve'.

The token is printed on stdout. With no --scope it carries the
"completions" scope.`,
		Example: `  cortensor token --subject ci --ttl 720h
  curl -H "Authorization: Bearer $(cortensor token)" http://127.0.0.1:8080/v1/candidates`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.Serve.JWTSecret == "" {
				return shared.NewConfigError("serve.jwt_secret is not set", nil)
			}
			if ttl <= 0 {
				return shared.NewInputError("--ttl must be positive", nil)
			}

			token, err := issueToken(JWTConfig(cfg), subject, scopes, ttl, time.Now())
			if err != nil {
				return shared.NewFailedError("failed to create token", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cortensor", "Token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeComplete}, "Granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime")

	return cmd
}

func issueToken(cfg *auth.JWTConfig, subject string, scopes []string, ttl time.Duration, now time.Time) (string, error) {
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scopes: scopes,
	}
	return auth.GenerateJWT(claims, *cfg)
}
