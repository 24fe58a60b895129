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

// Package consent models a resource owner's standing authorization of a
// client: the Authorization entity from spec.md §3. It is named "consent"
// rather than "authorization" in this module to keep the Go identifier
// distinct from the HTTP Authorization header and the /authorize endpoint.
package consent

import (
	"context"
	"errors"
	"time"
)

// Domain errors.
var (
	ErrNotFound      = errors.New("authorization not found")
	ErrAlreadyExists = errors.New("authorization already exists for this client and owner")
)

// Authorization is a resource owner's standing consent for a specific
// client.
//
// Purpose: The record that binds a (client, resource owner) pair to a
// granted scope; at most one exists per pair.
// Domain: OAuth2
// Invariants: Scope is always a subset of the owning client's current
// scope. At most one Authorization exists per (ClientID, ResourceOwnerID).
type Authorization struct {
	ID              string
	ClientID        string
	ResourceOwnerID string
	Scope           []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository is the persistence surface the core requires for
// Authorizations.
//
// Purpose: Abstraction over authorization storage; the uniqueness
// invariant (at most one row per client/owner pair) is enforced by the
// store's unique index, not by application-level locking.
// Domain: OAuth2
type Repository interface {
	// Get returns the authorization for (clientID, ownerID), or
	// ErrNotFound.
	Get(ctx context.Context, clientID, ownerID string) (*Authorization, error)

	// Upsert inserts a new authorization with the given scope, or, if one
	// already exists for (clientID, ownerID), replaces its scope with the
	// union of its existing scope and scope. It never shrinks an existing
	// authorization's scope; narrowing is only ever done by
	// client.Repository.UpdateScope's cascade.
	Upsert(ctx context.Context, clientID, ownerID string, scope []string) (*Authorization, error)
}
