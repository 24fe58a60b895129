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

// Package session defines the abstraction boundary between this core and
// the host application's existing token factory (spec.md §4.6): the
// TokenMinter that signs bearer tokens and the RefreshTokenVerifier that
// checks them. The core depends only on these interfaces; package
// minting provides a concrete default implementation.
package session

import (
	"context"
	"errors"
	"time"
)

// TokenTransport identifies how the minted token is meant to be carried.
// Only bearer is used by this core.
const TokenTransportBearer = "bearer"

// TypeOAuth2 is the session_type namespace this core's sessions are
// upserted under, keeping bulk operations on other session kinds (e.g. a
// first-party web login) from disturbing OAuth2-issued sessions.
const TypeOAuth2 = "oauth2"

// Domain errors surfaced by a RefreshTokenVerifier.
var (
	ErrRefreshExpired = errors.New("session: refresh token expired")
	ErrRefreshReused  = errors.New("session: refresh token reused")
	ErrRefreshInvalid = errors.New("session: refresh token invalid")
	ErrSessionGone    = errors.New("session: underlying session no longer exists")
	ErrNotFound       = errors.New("session: not found")
)

// UpsertArgs is what the token endpoint asks a TokenMinter to persist and
// sign for.
//
// Purpose: Carries the session-upsert arguments spec.md §4.5 enumerates,
// plus room for integrator-added claims via
// config.Config.CustomizeSessionUpsertArgs.
// Domain: OAuth2
type UpsertArgs struct {
	UserID                string
	TokenTransport        string
	SessionType           string
	AccessClaimOverrides  map[string]any
	RefreshClaimOverrides map[string]any
	// IssueRefreshToken is false for flows that must not receive a
	// refresh token (spec.md §4.5, "one-shot extensions").
	IssueRefreshToken bool
}

// TokenBundle is what a TokenMinter returns on success.
type TokenBundle struct {
	AccessToken          string
	AccessTokenExpiresAt time.Time
	RefreshToken         string // empty if UpsertArgs.IssueRefreshToken was false
	RefreshExpiresAt     time.Time
}

// TokenMinter signs access (and, unless suppressed, refresh) tokens and
// persists whatever server-side session record the implementation needs
// to support revocation and refresh-token verification.
//
// Purpose: Pluggable token-factory boundary (spec.md §4.6).
// Domain: OAuth2
type TokenMinter interface {
	Mint(ctx context.Context, args UpsertArgs) (*TokenBundle, error)
}

// RefreshClaims is what a RefreshTokenVerifier extracts from a valid
// refresh token.
type RefreshClaims struct {
	Subject     string // resource owner id ("sub")
	ClientID    string // "cid"
	SessionType string // "styp"
	IssuedAt    time.Time
}

// RefreshTokenVerifier authenticates a raw refresh token string and
// returns its claims, or a descriptive error (expired, unknown session,
// reused).
//
// Purpose: Pluggable refresh-token verification boundary (spec.md §4.6).
// Domain: OAuth2
type RefreshTokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*RefreshClaims, error)
}

// Session is the server-side record DefaultMinter and DefaultVerifier use
// to track the currently live refresh token for a (user, session type)
// pair, plus the immediately preceding one: carrying the previous jti for
// a short grace window absorbs a client that raced its own rotation (two
// requests sent the same old refresh token back to back) without opening
// a window for genuine reuse by an attacker who captured an older token.
//
// Purpose: Refresh-token freshness and single-flight-rotation tracking.
// Domain: OAuth2
// Invariants: At most one Session exists per (UserID, SessionType).
type Session struct {
	ID                   string
	UserID               string
	SessionType          string
	RefreshTokenID       string // jti of the currently live refresh token
	RefreshIssuedAt      time.Time
	PrevRefreshTokenID   string // jti of the token this one rotated out, or ""
	PrevRefreshExpiresAt time.Time
	ExpiresAt            time.Time
	CreatedAt            time.Time
}

// Repository is the persistence surface DefaultMinter and DefaultVerifier
// require. It is internal to the minting package's default
// implementation, not part of the protocol core's own required surface:
// a host supplying its own TokenMinter never needs to implement this.
//
// Purpose: Storage for the default JWT minter's session bookkeeping.
// Domain: OAuth2
type Repository interface {
	Create(ctx context.Context, s *Session) (*Session, error)
	GetByUserAndType(ctx context.Context, userID, sessionType string) (*Session, error)

	// UpdateRefreshIndex rotates the session's live refresh token to
	// newJTI, demoting the current one to "previous" and honoring it
	// until prevGraceUntil so Verify can extend a short grace window to
	// a client that raced its own rotation.
	UpdateRefreshIndex(ctx context.Context, id, newJTI string, issuedAt, prevGraceUntil time.Time) error

	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
