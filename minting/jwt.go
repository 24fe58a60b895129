// Copyright 2026 The OAuthForge Authors
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

// Package minting is the default, concrete implementation of the
// session.TokenMinter and session.RefreshTokenVerifier boundary: it signs
// bearer access and refresh tokens as HS256 JWTs and tracks the live
// refresh token's identifier in a session.Repository so a presented
// refresh token can be recognized as stale or reused.
package minting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/oauthforge/core/idgen"
	"github.com/oauthforge/core/session"
)

const jwtSigningMethod = "HS256"

var jwtParser = jwt.NewParser(jwt.WithValidMethods([]string{jwtSigningMethod}))

// tokenClaims is the claim set of both access and refresh tokens; dat carries
// whatever extra claims the caller or config.Config.CustomizeSessionUpsertArgs
// asked to be folded in.
type tokenClaims struct {
	jwt.RegisteredClaims
	ClientID    string         `json:"cid,omitempty"`
	SessionType string         `json:"styp,omitempty"`
	Type        string         `json:"type"`
	Data        map[string]any `json:"dat,omitempty"`
}

// DefaultMinter is the reference session.TokenMinter: it signs JWTs with a
// shared HMAC secret and persists a session row keyed by (user, session
// type) so a later refresh can be matched against the last-issued
// refresh token's jti.
//
// Purpose: Concrete default implementation of the pluggable token-factory
// boundary (spec.md §4.6), exercising golang-jwt and the session store.
// Domain: OAuth2
type DefaultMinter struct {
	secret       []byte
	issuer       string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	refreshGrace time.Duration
	sessions     session.Repository
	clientIDFor  func(ctx context.Context) string
}

// NewDefaultMinter builds a DefaultMinter. clientIDFor resolves the
// requesting client id for the current call's context, so it can be
// embedded in the "cid" claim without widening session.UpsertArgs.
func NewDefaultMinter(secret []byte, issuer string, accessTTL, refreshTTL, refreshGrace time.Duration, sessions session.Repository, clientIDFor func(ctx context.Context) string) *DefaultMinter {
	return &DefaultMinter{
		secret:       secret,
		issuer:       issuer,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		refreshGrace: refreshGrace,
		sessions:     sessions,
		clientIDFor:  clientIDFor,
	}
}

// Mint implements session.TokenMinter.
func (m *DefaultMinter) Mint(ctx context.Context, args session.UpsertArgs) (*session.TokenBundle, error) {
	now := time.Now()
	clientID := ""
	if m.clientIDFor != nil {
		clientID = m.clientIDFor(ctx)
	}

	accessExp := now.Add(m.accessTTL)
	access, err := m.sign(tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   args.UserID,
			ID:        idgen.New(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
		ClientID:    clientID,
		SessionType: args.SessionType,
		Type:        "access",
		Data:        args.AccessClaimOverrides,
	})
	if err != nil {
		return nil, fmt.Errorf("minting: sign access token: %w", err)
	}

	bundle := &session.TokenBundle{
		AccessToken:          access,
		AccessTokenExpiresAt: accessExp,
	}

	if !args.IssueRefreshToken {
		return bundle, nil
	}

	jti := idgen.New()
	refreshExp := now.Add(m.refreshTTL)

	existing, err := m.sessions.GetByUserAndType(ctx, args.UserID, args.SessionType)
	switch {
	case errors.Is(err, session.ErrNotFound):
		if _, err := m.sessions.Create(ctx, &session.Session{
			ID:              idgen.New(),
			UserID:          args.UserID,
			SessionType:     args.SessionType,
			RefreshTokenID:  jti,
			RefreshIssuedAt: now,
			ExpiresAt:       refreshExp,
		}); err != nil {
			return nil, fmt.Errorf("minting: create session: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("minting: lookup session: %w", err)
	default:
		if err := m.sessions.UpdateRefreshIndex(ctx, existing.ID, jti, now, now.Add(m.refreshGrace)); err != nil {
			return nil, fmt.Errorf("minting: update session: %w", err)
		}
	}

	refresh, err := m.sign(tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   args.UserID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
		ClientID:    clientID,
		SessionType: args.SessionType,
		Type:        "refresh",
		Data:        args.RefreshClaimOverrides,
	})
	if err != nil {
		return nil, fmt.Errorf("minting: sign refresh token: %w", err)
	}

	bundle.RefreshToken = refresh
	bundle.RefreshExpiresAt = refreshExp
	return bundle, nil
}

func (m *DefaultMinter) sign(claims tokenClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secret)
}

// DefaultVerifier is the reference session.RefreshTokenVerifier paired
// with DefaultMinter: it checks the JWT signature and expiry, then
// confirms the token's jti is still the session's live refresh token (or
// the immediately preceding one, within its recorded grace deadline),
// catching reuse of a rotated-out refresh token.
type DefaultVerifier struct {
	secret   []byte
	issuer   string
	sessions session.Repository
}

// NewDefaultVerifier builds a DefaultVerifier.
func NewDefaultVerifier(secret []byte, issuer string, sessions session.Repository) *DefaultVerifier {
	return &DefaultVerifier{secret: secret, issuer: issuer, sessions: sessions}
}

// Verify implements session.RefreshTokenVerifier.
func (v *DefaultVerifier) Verify(ctx context.Context, rawToken string) (*session.RefreshClaims, error) {
	var claims tokenClaims
	tok, err := jwtParser.ParseWithClaims(rawToken, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, session.ErrRefreshExpired
		}
		return nil, fmt.Errorf("%w: %s", session.ErrRefreshInvalid, err)
	}
	if !tok.Valid {
		return nil, session.ErrRefreshInvalid
	}
	if claims.Type != "refresh" || claims.Issuer != v.issuer {
		return nil, session.ErrRefreshInvalid
	}

	sess, err := v.sessions.GetByUserAndType(ctx, claims.Subject, claims.SessionType)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, session.ErrSessionGone
		}
		return nil, fmt.Errorf("minting: lookup session: %w", err)
	}

	if sess.RefreshTokenID != claims.ID {
		// Tolerate the immediately-preceding token until its recorded
		// grace deadline, so a client racing its own rotation doesn't
		// see a spurious failure; anything older is treated as reuse.
		if claims.ID == sess.PrevRefreshTokenID && time.Now().Before(sess.PrevRefreshExpiresAt) {
			return &session.RefreshClaims{
				Subject:     claims.Subject,
				ClientID:    claims.ClientID,
				SessionType: claims.SessionType,
				IssuedAt:    claims.IssuedAt.Time,
			}, nil
		}
		return nil, session.ErrRefreshReused
	}

	return &session.RefreshClaims{
		Subject:     claims.Subject,
		ClientID:    claims.ClientID,
		SessionType: claims.SessionType,
		IssuedAt:    claims.IssuedAt.Time,
	}, nil
}
