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

// Package client models the registered third-party applications
// (OAuth2 clients) that the authorization and token endpoints authenticate
// and authorize against. Client registration itself is application CRUD
// external to this core; this package only exposes what the protocol core
// needs to read and, for scope narrowing, to write transactionally.
package client

import (
	"context"
	"errors"
	"time"
)

// Type distinguishes clients that can keep a secret from those that
// cannot.
type Type string

const (
	Confidential Type = "confidential"
	Public       Type = "public"
)

// GrantType enumerates the grant types a client may be configured to use.
// Only these two are meaningful to this core; client-credentials and the
// other RFC 6749 grants are explicit non-goals.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// Domain errors.
var (
	ErrNotFound         = errors.New("client not found")
	ErrAlreadyExists    = errors.New("client already exists")
	ErrInvalidRedirect  = errors.New("invalid redirect_uri")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrInvalidGrantType = errors.New("invalid grant type")
)

// Client represents a registered third-party application.
//
// Purpose: The party the authorization and token endpoints authenticate
// and enforce redirect/scope/grant-type rules against.
// Domain: OAuth2
// Invariants: ID is a globally unique UUID. RedirectURIs, Scope, and
// GrantTypes are each non-empty ordered sets. SecretEncrypted holds the
// ciphertext produced by crypto.Keyring.Encrypt, never a plaintext secret.
type Client struct {
	ID              string
	Name            string
	Description     string
	SecretEncrypted string
	RedirectURIs    []string
	Scope           []string
	GrantTypes      []string
	ClientType      Type
	OwnerID         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SupportsGrantType reports whether the client is configured to use the
// given grant type.
func (c *Client) SupportsGrantType(grantType string) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// HasRedirectURI reports whether uri is one of the client's registered
// redirect URIs, compared by exact string (see DESIGN.md: no host/path
// normalization).
func (c *Client) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// Repository is the narrow persistence surface the core requires.
//
// Purpose: Abstraction over client storage; registration, listing, and
// deletion CRUD beyond these operations belongs to the host application.
// Domain: OAuth2
type Repository interface {
	// GetByID returns the client with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Client, error)

	// UpdateScope narrows a client's configured scope to newScope and, in
	// the same transaction, intersects every dependent authorization's
	// scope with newScope so no authorization can retain a scope entry
	// the client no longer grants.
	UpdateScope(ctx context.Context, clientID string, newScope []string) error
}
