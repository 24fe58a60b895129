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

package grant

import (
	"context"
	"fmt"
	"time"

	"github.com/oauthforge/core/crypto"
	"github.com/oauthforge/core/idgen"
)

// codeChallengeField is the Keyring field name code_challenge values are
// derived under when they're encrypted at rest.
const codeChallengeField = "code_challenge"

// IssueParams carries everything the authorize endpoint needs to mint a
// grant.
type IssueParams struct {
	AuthorizationID      string
	ResourceOwnerID      string
	RedirectURI          string
	RedirectURISpecified bool
	CodeChallenge        string // empty if the request didn't use PKCE
	TTL                  time.Duration
}

// Service wraps a Repository with code generation, hashing, and PKCE
// challenge encryption, so the repository layer never sees a plaintext
// code or verifier.
//
// Purpose: Business logic for issuing and redeeming authorization codes.
// Domain: OAuth2
type Service struct {
	repo    Repository
	keyring *crypto.Keyring
}

// NewService creates a new grant service.
func NewService(repo Repository, keyring *crypto.Keyring) *Service {
	return &Service{repo: repo, keyring: keyring}
}

// Issue generates a fresh authorization code, stores its hash (and, if
// PKCE was used, the encrypted challenge), and returns both the stored
// Grant and the one-time plaintext code to embed in the redirect.
func (s *Service) Issue(ctx context.Context, p IssueParams) (g *Grant, code string, err error) {
	code = crypto.RandomToken(crypto.DefaultTokenBytes)

	g = &Grant{
		ID:                   idgen.New(),
		AuthorizationID:      p.AuthorizationID,
		ResourceOwnerID:      p.ResourceOwnerID,
		Type:                 TypeAuthorizationCode,
		RedirectURI:          p.RedirectURI,
		RedirectURISpecified: p.RedirectURISpecified,
		CodeHash:             s.keyring.HMACCode(code),
		ExpiresAt:            time.Now().Add(p.TTL),
		CreatedAt:            time.Now(),
	}

	if p.CodeChallenge != "" {
		enc, err := s.keyring.Encrypt(codeChallengeField, []byte(p.CodeChallenge))
		if err != nil {
			return nil, "", fmt.Errorf("grant: encrypt code_challenge: %w", err)
		}
		g.CodeChallengeEnc = enc
	}

	if err := s.repo.Insert(ctx, g); err != nil {
		return nil, "", fmt.Errorf("grant: insert: %w", err)
	}

	return g, code, nil
}

// Lookup resolves the plaintext code to its stored Grant without
// consuming it, used by the token endpoint to run cross-checks (redirect
// URI, PKCE, grant-type support) before the grant is deleted.
func (s *Service) Lookup(ctx context.Context, code string) (*Grant, error) {
	g, err := s.repo.GetByCodeHash(ctx, s.keyring.HMACCode(code))
	if err != nil {
		return nil, err
	}
	if g.IsExpired(time.Now()) {
		return nil, ErrExpired
	}
	return g, nil
}

// DecryptChallenge returns the plaintext code_challenge stored on g, or
// "" if the grant was issued without PKCE.
func (s *Service) DecryptChallenge(g *Grant) (string, error) {
	if !g.HasPKCE() {
		return "", nil
	}
	plain, err := s.keyring.Decrypt(codeChallengeField, g.CodeChallengeEnc)
	if err != nil {
		return "", fmt.Errorf("grant: decrypt code_challenge: %w", err)
	}
	return string(plain), nil
}

// Redeem atomically deletes the grant identified by code's hash and
// reports whether this call actually consumed it: concurrent redemptions
// of the same code resolve to exactly one true and the rest false, per
// spec.md §5.
func (s *Service) Redeem(ctx context.Context, code string) (bool, error) {
	deleted, err := s.repo.DeleteByCodeHash(ctx, s.keyring.HMACCode(code))
	if err != nil {
		return false, fmt.Errorf("grant: redeem: %w", err)
	}
	return deleted, nil
}

// DeleteExpired sweeps expired grants. Intended to be driven by the host
// application's scheduler (e.g. a periodic job), not called inline from
// request handling.
func (s *Service) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}
