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

package validate

import (
	"context"
	"errors"

	"github.com/oauthforge/core/client"
	"github.com/oauthforge/core/consent"
	"github.com/oauthforge/core/crypto"
	"github.com/oauthforge/core/grant"
	"github.com/oauthforge/core/orderedset"
	"github.com/oauthforge/core/session"
)

// TokenError is a recognized OAuth error code the token endpoint can map
// directly to a response, distinguished from a generic validation message
// because some (invalid_client over Basic auth) change the HTTP status
// and headers, not just the body.
type TokenError string

const (
	ErrInvalidRequest       TokenError = "invalid_request"
	ErrUnsupportedGrantType TokenError = "unsupported_grant_type"
	ErrInvalidClient        TokenError = "invalid_client"
	ErrInvalidGrant         TokenError = "invalid_grant"
	ErrInvalidScope         TokenError = "invalid_scope"
	ErrUnauthorizedClient   TokenError = "unauthorized_client"
)

// RawTokenRequest is the untyped form-urlencoded input to POST /token.
type RawTokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Scope        string

	// Client credentials, already disambiguated by the caller per the
	// Basic-over-body precedence rule (spec.md §4.5).
	ClientID     string
	ClientSecret string
	UsedBasic    bool
}

// TokenRequest is the validated change set the token endpoint acts on.
type TokenRequest struct {
	GrantType     string
	Client        *client.Client
	Grant         *grant.Grant
	RefreshClaims *session.RefreshClaims
	Authorization *consent.Authorization
	Scope         []string // narrowed scope to issue, nil means "use existing"
}

// ClientAuthenticator authenticates secret against c, the way
// client.Service.Authenticate does.
type ClientAuthenticator func(c *client.Client, secret string) (bool, error)

// GrantLookup resolves a plaintext authorization code to its Grant,
// without consuming it.
type GrantLookup func(ctx context.Context, code string) (*grant.Grant, error)

// ChallengeDecrypter returns the plaintext code_challenge stored on g, or
// "" if none was set.
type ChallengeDecrypter func(g *grant.Grant) (string, error)

// RefreshVerifier authenticates a raw refresh token.
type RefreshVerifier func(ctx context.Context, raw string) (*session.RefreshClaims, error)

// Token runs the token-endpoint validation rules (spec.md §4.3) against
// raw. A non-empty TokenError return always means validation failed; the
// bool result reports whether the failure must be surfaced as HTTP 401
// (a failed Basic auth attempt) rather than HTTP 400.
func Token(
	ctx context.Context,
	raw RawTokenRequest,
	clients ClientLookup,
	authenticate ClientAuthenticator,
	authorizations AuthorizationLookup,
	grants GrantLookup,
	decryptChallenge ChallengeDecrypter,
	verifyRefresh RefreshVerifier,
) (*TokenRequest, TokenError, bool) {
	tr := &TokenRequest{GrantType: raw.GrantType}

	// Rule 1: grant_type.
	if raw.GrantType != client.GrantAuthorizationCode && raw.GrantType != client.GrantRefreshToken {
		return nil, ErrUnsupportedGrantType, false
	}

	// Rule 2: client authentication.
	if raw.ClientID == "" {
		return nil, ErrInvalidClient, raw.UsedBasic
	}
	c, err := clients(ctx, raw.ClientID)
	if err != nil {
		return nil, ErrInvalidClient, raw.UsedBasic
	}
	if c.ClientType == client.Confidential || raw.ClientSecret != "" {
		ok, err := authenticate(c, raw.ClientSecret)
		if err != nil || !ok {
			return nil, ErrInvalidClient, raw.UsedBasic
		}
	}
	tr.Client = c

	switch raw.GrantType {
	case client.GrantAuthorizationCode:
		if raw.Code == "" {
			return nil, ErrInvalidGrant, false
		}
		g, err := grants(ctx, raw.Code)
		if err != nil {
			if errors.Is(err, grant.ErrNotFound) || errors.Is(err, grant.ErrExpired) {
				return nil, ErrInvalidGrant, false
			}
			return nil, ErrInvalidGrant, false
		}
		if g.Authorization == nil || g.Authorization.ClientID != c.ID {
			return nil, ErrInvalidGrant, false
		}
		if !c.SupportsGrantType(client.GrantAuthorizationCode) {
			return nil, ErrUnauthorizedClient, false
		}
		if g.RedirectURISpecified != (raw.RedirectURI != "") || (raw.RedirectURI != "" && raw.RedirectURI != g.RedirectURI) {
			return nil, ErrInvalidGrant, false
		}

		challenge, err := decryptChallenge(g)
		if err != nil {
			return nil, ErrInvalidGrant, false
		}
		switch {
		case challenge != "" && raw.CodeVerifier == "":
			return nil, ErrInvalidGrant, false
		case challenge == "" && raw.CodeVerifier != "":
			return nil, ErrInvalidGrant, false
		case challenge != "":
			if !crypto.VerifyPKCE(raw.CodeVerifier, challenge) {
				return nil, ErrInvalidGrant, false
			}
		}

		tr.Grant = g
		tr.Authorization = g.Authorization

	case client.GrantRefreshToken:
		if raw.RefreshToken == "" {
			return nil, ErrInvalidGrant, false
		}
		claims, err := verifyRefresh(ctx, raw.RefreshToken)
		if err != nil {
			return nil, ErrInvalidGrant, false
		}
		if claims.ClientID != c.ID {
			return nil, ErrInvalidGrant, false
		}
		auth, err := authorizations(ctx, c.ID, claims.Subject)
		if err != nil {
			return nil, ErrInvalidGrant, false
		}
		if !c.SupportsGrantType(client.GrantRefreshToken) {
			return nil, ErrUnauthorizedClient, false
		}
		tr.RefreshClaims = claims
		tr.Authorization = auth
	}

	// Rule 5: optional scope narrowing, both flows.
	if raw.Scope != "" {
		requested := orderedset.ParseScope(raw.Scope)
		if !orderedset.Subset(requested, tr.Authorization.Scope) {
			return nil, ErrInvalidScope, false
		}
		tr.Scope = requested
	}

	return tr, "", false
}
