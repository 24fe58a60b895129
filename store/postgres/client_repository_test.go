// Copyright 2026 The OAuthForge Authors
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/oauthforge/core/client"
)

func insertTestClient(t *testing.T, db *DB, c *client.Client) {
	t.Helper()

	redirectURIs, err := json.Marshal(c.RedirectURIs)
	if err != nil {
		t.Fatalf("failed to marshal redirect uris: %v", err)
	}
	scope, err := json.Marshal(c.Scope)
	if err != nil {
		t.Fatalf("failed to marshal scope: %v", err)
	}
	grantTypes, err := json.Marshal(c.GrantTypes)
	if err != nil {
		t.Fatalf("failed to marshal grant types: %v", err)
	}

	_, err = db.pool.Exec(context.Background(), `
		INSERT INTO oauth2_clients (
			id, name, description, client_secret_enc, redirect_uris, scope,
			grant_types, client_type, owner_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.Name, c.Description, c.SecretEncrypted, redirectURIs, scope,
		grantTypes, c.ClientType, c.OwnerID)
	if err != nil {
		t.Fatalf("failed to insert test client: %v", err)
	}
}

func TestClientRepository(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewClientRepository(db)

	c := &client.Client{
		ID:              "client-1",
		Name:            "Test Client",
		Description:     "A client used for repository tests",
		SecretEncrypted: "encrypted-secret",
		RedirectURIs:    []string{"https://app.example/cb"},
		Scope:           []string{"read", "write"},
		GrantTypes:      []string{client.GrantAuthorizationCode, client.GrantRefreshToken},
		ClientType:      client.Confidential,
		OwnerID:         "owner-1",
	}
	insertTestClient(t, db, c)

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, c.ID)
		if err != nil {
			t.Fatalf("failed to get client: %v", err)
		}
		if got.Name != c.Name {
			t.Errorf("expected name %s, got %s", c.Name, got.Name)
		}
		if len(got.RedirectURIs) != 1 || got.RedirectURIs[0] != c.RedirectURIs[0] {
			t.Errorf("expected redirect uris %v, got %v", c.RedirectURIs, got.RedirectURIs)
		}
		if len(got.Scope) != 2 {
			t.Errorf("expected 2 scopes, got %v", got.Scope)
		}
		if got.ClientType != client.Confidential {
			t.Errorf("expected confidential client type, got %s", got.ClientType)
		}
	})

	t.Run("GetByID unknown", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "does-not-exist")
		if err != client.ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateScope narrows dependent authorizations", func(t *testing.T) {
		consentRepo := NewConsentRepository(db)
		if _, err := consentRepo.Upsert(ctx, c.ID, "owner-42", []string{"read", "write"}); err != nil {
			t.Fatalf("failed to seed authorization: %v", err)
		}

		if err := repo.UpdateScope(ctx, c.ID, []string{"read"}); err != nil {
			t.Fatalf("failed to update scope: %v", err)
		}

		got, err := repo.GetByID(ctx, c.ID)
		if err != nil {
			t.Fatalf("failed to get client: %v", err)
		}
		if len(got.Scope) != 1 || got.Scope[0] != "read" {
			t.Errorf("expected scope narrowed to [read], got %v", got.Scope)
		}

		auth, err := consentRepo.Get(ctx, c.ID, "owner-42")
		if err != nil {
			t.Fatalf("failed to get authorization: %v", err)
		}
		if len(auth.Scope) != 1 || auth.Scope[0] != "read" {
			t.Errorf("expected authorization scope narrowed to [read], got %v", auth.Scope)
		}
	})

	t.Run("UpdateScope unknown client", func(t *testing.T) {
		err := repo.UpdateScope(ctx, "does-not-exist", []string{"read"})
		if err != client.ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
