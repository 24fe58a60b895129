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
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oauthforge/core/consent"
	"github.com/oauthforge/core/grant"
)

// GrantRepository implements grant.Repository.
type GrantRepository struct {
	db *DB
}

// NewGrantRepository creates a new grant repository.
func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Insert stores a new grant.
func (r *GrantRepository) Insert(ctx context.Context, g *grant.Grant) error {
	var challengeEnc sql.NullString
	if g.CodeChallengeEnc != "" {
		challengeEnc = sql.NullString{String: g.CodeChallengeEnc, Valid: true}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO grants (
			id, authorization_id, resource_owner_id, grant_type, redirect_uri,
			redirect_uri_specified, code_challenge_enc, code_hash, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		g.ID, g.AuthorizationID, g.ResourceOwnerID, g.Type, g.RedirectURI,
		g.RedirectURISpecified, challengeEnc, g.CodeHash, g.ExpiresAt, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert grant: %w", err)
	}

	return nil
}

// GetByCodeHash returns the grant (with its parent Authorization
// preloaded) whose CodeHash equals hash.
func (r *GrantRepository) GetByCodeHash(ctx context.Context, hash string) (*grant.Grant, error) {
	var g grant.Grant
	var a consent.Authorization
	var challengeEnc sql.NullString
	var scopeJSON []byte

	err := r.db.pool.QueryRow(ctx, `
		SELECT
			g.id, g.authorization_id, g.resource_owner_id, g.grant_type, g.redirect_uri,
			g.redirect_uri_specified, g.code_challenge_enc, g.code_hash, g.expires_at, g.created_at,
			a.id, a.client_id, a.resource_owner_id, a.scope, a.created_at, a.updated_at
		FROM grants g
		JOIN authorizations a ON a.id = g.authorization_id
		WHERE g.code_hash = $1
	`, hash).Scan(
		&g.ID, &g.AuthorizationID, &g.ResourceOwnerID, &g.Type, &g.RedirectURI,
		&g.RedirectURISpecified, &challengeEnc, &g.CodeHash, &g.ExpiresAt, &g.CreatedAt,
		&a.ID, &a.ClientID, &a.ResourceOwnerID, &scopeJSON, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, grant.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}

	if challengeEnc.Valid {
		g.CodeChallengeEnc = challengeEnc.String
	}
	if err := json.Unmarshal(scopeJSON, &a.Scope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization scope: %w", err)
	}
	g.Authorization = &a

	return &g, nil
}

// DeleteByCodeHash removes the grant with the given hash and reports
// whether a row was actually deleted. The conditional delete plus
// rows-affected check is what guarantees that two concurrent redemptions
// of the same code produce exactly one winner: only the transaction that
// actually deletes a row may proceed to issue tokens.
func (r *GrantRepository) DeleteByCodeHash(ctx context.Context, hash string) (bool, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM grants WHERE code_hash = $1
	`, hash)
	if err != nil {
		return false, fmt.Errorf("failed to delete grant: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// DeleteExpired bulk-removes every grant whose expiry has passed.
func (r *GrantRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM grants WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired grants: %w", err)
	}

	return result.RowsAffected(), nil
}
