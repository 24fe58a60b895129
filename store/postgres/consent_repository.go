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

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oauthforge/core/consent"
	"github.com/oauthforge/core/idgen"
	"github.com/oauthforge/core/orderedset"
)

// ConsentRepository implements consent.Repository.
type ConsentRepository struct {
	db *DB
}

// NewConsentRepository creates a new consent repository.
func NewConsentRepository(db *DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

// Get retrieves the authorization for (clientID, ownerID).
func (r *ConsentRepository) Get(ctx context.Context, clientID, ownerID string) (*consent.Authorization, error) {
	var a consent.Authorization
	var scopeJSON []byte

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, client_id, resource_owner_id, scope, created_at, updated_at
		FROM authorizations
		WHERE client_id = $1 AND resource_owner_id = $2
	`, clientID, ownerID).Scan(
		&a.ID, &a.ClientID, &a.ResourceOwnerID, &scopeJSON, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, consent.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get authorization: %w", err)
	}

	if err := json.Unmarshal(scopeJSON, &a.Scope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
	}

	return &a, nil
}

// Upsert inserts a new authorization with scope, or, if one already
// exists for (clientID, ownerID), replaces its scope with the union of
// its existing scope and scope. The union is computed in SQL so the
// insert-or-update is a single round trip and races between concurrent
// authorize calls resolve through Postgres's own upsert row lock rather
// than a read-modify-write in application code.
func (r *ConsentRepository) Upsert(ctx context.Context, clientID, ownerID string, scope []string) (*consent.Authorization, error) {
	scope = orderedset.Dedup(scope)
	scopeJSON, err := json.Marshal(scope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scope: %w", err)
	}

	var a consent.Authorization
	var outScopeJSON []byte

	err = r.db.pool.QueryRow(ctx, `
		INSERT INTO authorizations (id, client_id, resource_owner_id, scope, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, NOW(), NOW())
		ON CONFLICT (client_id, resource_owner_id) DO UPDATE SET
			scope = (
				SELECT jsonb_agg(DISTINCT elem)
				FROM jsonb_array_elements_text(authorizations.scope || $4::jsonb) AS elem
			),
			updated_at = NOW()
		RETURNING id, client_id, resource_owner_id, scope, created_at, updated_at
	`, idgen.New(), clientID, ownerID, scopeJSON).Scan(
		&a.ID, &a.ClientID, &a.ResourceOwnerID, &outScopeJSON, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert authorization: %w", err)
	}

	if err := json.Unmarshal(outScopeJSON, &a.Scope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
	}
	// jsonb_agg(DISTINCT ...) returns the union in the order Postgres's
	// DISTINCT processing yields, not the insertion order of either the
	// stored or the requested scope; the Union call below only drops
	// duplicate and empty entries and keeps that order.
	a.Scope = orderedset.Union(a.Scope, nil)

	return &a, nil
}
