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

// Package grant models the short-lived, one-time authorization code bound
// to an Authorization, and the operations the token endpoint needs to
// redeem it exactly once.
package grant

import (
	"context"
	"errors"
	"time"

	"github.com/oauthforge/core/consent"
)

// Type enumerates grant types this core issues. Only authorization codes
// are modeled; implicit, password, and device grants are non-goals.
const TypeAuthorizationCode = "authorization_code"

// Domain errors.
var (
	ErrNotFound = errors.New("grant not found")
	ErrExpired  = errors.New("grant expired")
)

// Grant is a short-lived, single-use code exchanged at the token
// endpoint.
//
// Purpose: Bridges the authorize and token endpoints: minted by the
// former, consumed exactly once by the latter.
// Domain: OAuth2
// Invariants: CodeHash is a keyed HMAC, never the plaintext code. Deleted
// on first successful redemption or once ExpiresAt has passed.
type Grant struct {
	ID                   string
	AuthorizationID      string
	ResourceOwnerID      string
	Type                 string
	RedirectURI          string
	RedirectURISpecified bool
	CodeChallengeEnc     string // empty if PKCE was not used
	CodeHash             string
	ExpiresAt            time.Time
	CreatedAt            time.Time
	Authorization        *consent.Authorization
}

// IsExpired reports whether the grant's lifetime has elapsed as of now.
func (g *Grant) IsExpired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// HasPKCE reports whether the grant was issued with a code_challenge.
func (g *Grant) HasPKCE() bool {
	return g.CodeChallengeEnc != ""
}

// Repository is the persistence surface the core requires for Grants.
//
// Purpose: Single-use code storage: insertion, hash lookup, and deletion.
// Domain: OAuth2
type Repository interface {
	// Insert stores a new grant. g.CodeHash must already be the keyed
	// HMAC of the plaintext code; the plaintext itself is never passed
	// to the repository.
	Insert(ctx context.Context, g *Grant) error

	// GetByCodeHash returns the grant (with its parent Authorization
	// preloaded) whose CodeHash equals hash, or ErrNotFound.
	GetByCodeHash(ctx context.Context, hash string) (*Grant, error)

	// DeleteByCodeHash removes the grant with the given hash and reports
	// whether a row was actually deleted. A conditional
	// delete-and-check-rowcount is how the store guarantees that two
	// concurrent redemptions of the same code produce exactly one
	// winner (spec.md §5).
	DeleteByCodeHash(ctx context.Context, hash string) (bool, error)

	// DeleteExpired bulk-removes every grant whose ExpiresAt has passed.
	// Idempotent; safe to call from a periodic sweep.
	DeleteExpired(ctx context.Context) (int64, error)
}
