// Copyright 2026 The OAuthForge Authors
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/oauthforge/core/audit"
)

func TestAuditRepository(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewAuditRepository(db)

	grantIssued := audit.Event{
		Type:      audit.TypeGrantIssued,
		ActorID:   "user-1",
		Resource:  audit.ResourceGrant,
		TargetID:  "grant-1",
		Metadata:  map[string]any{audit.AttrClientID: "client-1"},
		Timestamp: time.Now().Add(-time.Hour),
	}
	tokenIssued := audit.Event{
		Type:      audit.TypeTokenIssued,
		ActorID:   "user-1",
		Resource:  audit.ResourceToken,
		TargetID:  "token-1",
		Metadata:  map[string]any{audit.AttrGrantType: "authorization_code"},
		Timestamp: time.Now(),
	}

	t.Run("Log", func(t *testing.T) {
		if err := repo.Log(ctx, grantIssued); err != nil {
			t.Fatalf("failed to log event: %v", err)
		}
		if err := repo.Log(ctx, tokenIssued); err != nil {
			t.Fatalf("failed to log event: %v", err)
		}
	})

	t.Run("List all", func(t *testing.T) {
		events, total, err := repo.List(ctx, audit.Filter{Limit: 10})
		if err != nil {
			t.Fatalf("failed to list events: %v", err)
		}
		if total != 2 {
			t.Fatalf("expected 2 total events, got %d", total)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events returned, got %d", len(events))
		}
		if events[0].Type != audit.TypeTokenIssued {
			t.Errorf("expected most recent event first, got %s", events[0].Type)
		}
	})

	t.Run("List filtered by type", func(t *testing.T) {
		typeFilter := audit.TypeGrantIssued
		events, total, err := repo.List(ctx, audit.Filter{Type: &typeFilter, Limit: 10})
		if err != nil {
			t.Fatalf("failed to list events: %v", err)
		}
		if total != 1 {
			t.Fatalf("expected 1 matching event, got %d", total)
		}
		if len(events) != 1 || events[0].TargetID != "grant-1" {
			t.Errorf("expected the grant_issued event, got %v", events)
		}
	})

	t.Run("List filtered by actor", func(t *testing.T) {
		actor := "no-such-actor"
		events, total, err := repo.List(ctx, audit.Filter{ActorID: &actor, Limit: 10})
		if err != nil {
			t.Fatalf("failed to list events: %v", err)
		}
		if total != 0 || len(events) != 0 {
			t.Errorf("expected no events for an unknown actor, got %d/%d", total, len(events))
		}
	})

	t.Run("List respects limit and offset", func(t *testing.T) {
		events, total, err := repo.List(ctx, audit.Filter{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("failed to list events: %v", err)
		}
		if total != 2 {
			t.Fatalf("expected total to still report 2, got %d", total)
		}
		if len(events) != 1 {
			t.Fatalf("expected 1 event due to limit, got %d", len(events))
		}
		if events[0].Type != audit.TypeGrantIssued {
			t.Errorf("expected the older event after offsetting past the newest, got %s", events[0].Type)
		}
	})
}
