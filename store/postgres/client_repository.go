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

	"github.com/oauthforge/core/client"
	"github.com/oauthforge/core/orderedset"
)

// ClientRepository implements client.Repository.
type ClientRepository struct {
	db *DB
}

// NewClientRepository creates a new client repository.
func NewClientRepository(db *DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// GetByID retrieves a client by internal ID.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*client.Client, error) {
	var c client.Client
	var redirectURIsJSON, scopeJSON, grantTypesJSON []byte

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, description, client_secret_enc, redirect_uris, scope,
		       grant_types, client_type, owner_id, created_at, updated_at
		FROM oauth2_clients
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &c.Description, &c.SecretEncrypted, &redirectURIsJSON, &scopeJSON,
		&grantTypesJSON, &c.ClientType, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, client.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if err := json.Unmarshal(redirectURIsJSON, &c.RedirectURIs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal redirect uris: %w", err)
	}
	if err := json.Unmarshal(scopeJSON, &c.Scope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
	}
	if err := json.Unmarshal(grantTypesJSON, &c.GrantTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant types: %w", err)
	}

	return &c, nil
}

// UpdateScope narrows a client's configured scope to newScope and, in the
// same transaction, intersects every dependent authorization's scope with
// newScope so no authorization can retain a scope entry the client no
// longer grants.
func (r *ClientRepository) UpdateScope(ctx context.Context, clientID string, newScope []string) error {
	newScope = orderedset.Dedup(newScope)
	scopeJSON, err := json.Marshal(newScope)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE oauth2_clients SET scope = $2, updated_at = NOW()
		WHERE id = $1
	`, clientID, scopeJSON)
	if err != nil {
		return fmt.Errorf("failed to update client scope: %w", err)
	}
	if result.RowsAffected() == 0 {
		return client.ErrNotFound
	}

	rows, err := tx.Query(ctx, `
		SELECT client_id, resource_owner_id, scope FROM authorizations WHERE client_id = $1
	`, clientID)
	if err != nil {
		return fmt.Errorf("failed to load dependent authorizations: %w", err)
	}

	type authRow struct {
		clientID string
		ownerID  string
		scope    []string
	}
	var toNarrow []authRow
	for rows.Next() {
		var a authRow
		var raw []byte
		if err := rows.Scan(&a.clientID, &a.ownerID, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan authorization: %w", err)
		}
		if err := json.Unmarshal(raw, &a.scope); err != nil {
			rows.Close()
			return fmt.Errorf("failed to unmarshal authorization scope: %w", err)
		}
		toNarrow = append(toNarrow, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate authorizations: %w", err)
	}

	for _, a := range toNarrow {
		narrowed := orderedset.Intersect(a.scope, newScope)
		narrowedJSON, err := json.Marshal(narrowed)
		if err != nil {
			return fmt.Errorf("failed to marshal narrowed scope: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE authorizations SET scope = $3, updated_at = NOW()
			WHERE client_id = $1 AND resource_owner_id = $2
		`, a.clientID, a.ownerID, narrowedJSON)
		if err != nil {
			return fmt.Errorf("failed to narrow authorization scope: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
