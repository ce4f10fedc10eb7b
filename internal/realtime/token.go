// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

package realtime

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/justinnewbold/scavengers-sub000/internal/logging"
)

// TokenProvider is the "get current token" capability the core reads. Token
// storage itself belongs to the excluded auth layer.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider serves a fixed token. Useful for wiring and tests.
type StaticTokenProvider string

// Token implements TokenProvider.
func (p StaticTokenProvider) Token(_ context.Context) (string, error) {
	return string(p), nil
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// warnIfExpired inspects a JWT's exp claim without verifying the signature
// and logs when the token is already stale. The server remains the authority;
// this only gives the embedding app an early, actionable log line instead of
// an opaque dial rejection.
func warnIfExpired(token string) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Not a JWT; opaque tokens are fine.
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	if exp.Before(time.Now()) {
		logging.Warn().Time("expired_at", exp.Time).Msg("Auth token is expired; server will likely reject the connection")
	}
}
