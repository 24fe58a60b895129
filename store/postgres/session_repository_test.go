// Copyright 2026 The OAuthForge Authors
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/oauthforge/core/idgen"
	"github.com/oauthforge/core/session"
)

func TestSessionRepository(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewSessionRepository(db)

	now := time.Now().Truncate(time.Second)
	sess := &session.Session{
		ID:              idgen.New(),
		UserID:          "user-1",
		SessionType:     "default",
		RefreshTokenID:  "jti-1",
		RefreshIssuedAt: now,
		ExpiresAt:       now.Add(24 * time.Hour),
	}

	t.Run("Create and GetByUserAndType", func(t *testing.T) {
		if _, err := repo.Create(ctx, sess); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := repo.GetByUserAndType(ctx, sess.UserID, sess.SessionType)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.RefreshTokenID != sess.RefreshTokenID {
			t.Errorf("expected refresh token id %s, got %s", sess.RefreshTokenID, got.RefreshTokenID)
		}
		if got.PrevRefreshTokenID != "" {
			t.Errorf("expected no previous refresh token on a fresh session, got %q", got.PrevRefreshTokenID)
		}
	})

	t.Run("GetByUserAndType unknown is ErrNotFound", func(t *testing.T) {
		_, err := repo.GetByUserAndType(ctx, "nobody", "default")
		if err != session.ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateRefreshIndex rotates and demotes", func(t *testing.T) {
		issuedAt := now.Add(time.Minute)
		grace := issuedAt.Add(30 * time.Second)

		if err := repo.UpdateRefreshIndex(ctx, sess.ID, "jti-2", issuedAt, grace); err != nil {
			t.Fatalf("failed to update refresh index: %v", err)
		}

		got, err := repo.GetByUserAndType(ctx, sess.UserID, sess.SessionType)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.RefreshTokenID != "jti-2" {
			t.Errorf("expected live refresh token jti-2, got %s", got.RefreshTokenID)
		}
		if got.PrevRefreshTokenID != "jti-1" {
			t.Errorf("expected previous refresh token jti-1, got %s", got.PrevRefreshTokenID)
		}
		if !got.PrevRefreshExpiresAt.Equal(grace) {
			t.Errorf("expected previous refresh grace %v, got %v", grace, got.PrevRefreshExpiresAt)
		}
	})

	t.Run("UpdateRefreshIndex unknown session is ErrNotFound", func(t *testing.T) {
		err := repo.UpdateRefreshIndex(ctx, "does-not-exist", "jti-3", now, now)
		if err != session.ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, sess.ID); err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}
		if _, err := repo.GetByUserAndType(ctx, sess.UserID, sess.SessionType); err != session.ErrNotFound {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("DeleteByUserID", func(t *testing.T) {
		a := &session.Session{ID: idgen.New(), UserID: "user-2", SessionType: "default", RefreshTokenID: "a", RefreshIssuedAt: now, ExpiresAt: now.Add(time.Hour)}
		b := &session.Session{ID: idgen.New(), UserID: "user-2", SessionType: "mobile", RefreshTokenID: "b", RefreshIssuedAt: now, ExpiresAt: now.Add(time.Hour)}
		if _, err := repo.Create(ctx, a); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if _, err := repo.Create(ctx, b); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if err := repo.DeleteByUserID(ctx, "user-2"); err != nil {
			t.Fatalf("failed to delete user sessions: %v", err)
		}
		if _, err := repo.GetByUserAndType(ctx, "user-2", "default"); err != session.ErrNotFound {
			t.Errorf("expected default session gone, got %v", err)
		}
		if _, err := repo.GetByUserAndType(ctx, "user-2", "mobile"); err != session.ErrNotFound {
			t.Errorf("expected mobile session gone, got %v", err)
		}
	})

	t.Run("DeleteExpired removes only expired sessions", func(t *testing.T) {
		live := &session.Session{ID: idgen.New(), UserID: "user-3", SessionType: "default", RefreshTokenID: "c", RefreshIssuedAt: now, ExpiresAt: now.Add(time.Hour)}
		expired := &session.Session{ID: idgen.New(), UserID: "user-4", SessionType: "default", RefreshTokenID: "d", RefreshIssuedAt: now, ExpiresAt: now.Add(-time.Hour)}
		if _, err := repo.Create(ctx, live); err != nil {
			t.Fatalf("failed to create live session: %v", err)
		}
		if _, err := repo.Create(ctx, expired); err != nil {
			t.Fatalf("failed to create expired session: %v", err)
		}

		n, err := repo.DeleteExpired(ctx)
		if err != nil {
			t.Fatalf("failed to delete expired sessions: %v", err)
		}
		if n != 1 {
			t.Errorf("expected exactly 1 expired session removed, got %d", n)
		}
		if _, err := repo.GetByUserAndType(ctx, "user-3", "default"); err != nil {
			t.Errorf("expected the live session to survive, got %v", err)
		}
		if _, err := repo.GetByUserAndType(ctx, "user-4", "default"); err != session.ErrNotFound {
			t.Errorf("expected the expired session to be gone, got %v", err)
		}
	})
}
