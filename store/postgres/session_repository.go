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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oauthforge/core/session"
)

// SessionRepository implements session.Repository, the bookkeeping store
// behind the minting package's default TokenMinter/RefreshTokenVerifier.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new session.
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) (*session.Session, error) {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO sessions (
			id, user_id, session_type, refresh_token_id, refresh_issued_at,
			prev_refresh_token_id, prev_refresh_expires_at, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		sess.ID, sess.UserID, sess.SessionType, sess.RefreshTokenID, sess.RefreshIssuedAt,
		nullIfEmpty(sess.PrevRefreshTokenID), sess.PrevRefreshExpiresAt, sess.ExpiresAt, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return sess, nil
}

// GetByUserAndType retrieves the session for (userID, sessionType).
func (r *SessionRepository) GetByUserAndType(ctx context.Context, userID, sessionType string) (*session.Session, error) {
	var sess session.Session
	var prevJTI sql.NullString
	var prevExpiresAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, session_type, refresh_token_id, refresh_issued_at,
		       prev_refresh_token_id, prev_refresh_expires_at, expires_at, created_at
		FROM sessions
		WHERE user_id = $1 AND session_type = $2
	`, userID, sessionType).Scan(
		&sess.ID, &sess.UserID, &sess.SessionType, &sess.RefreshTokenID, &sess.RefreshIssuedAt,
		&prevJTI, &prevExpiresAt, &sess.ExpiresAt, &sess.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if prevJTI.Valid {
		sess.PrevRefreshTokenID = prevJTI.String
	}
	if prevExpiresAt.Valid {
		sess.PrevRefreshExpiresAt = prevExpiresAt.Time
	}

	return &sess, nil
}

// UpdateRefreshIndex rotates the session's live refresh token to newJTI,
// demoting the current one to "previous" until prevGraceUntil.
func (r *SessionRepository) UpdateRefreshIndex(ctx context.Context, id, newJTI string, issuedAt, prevGraceUntil time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE sessions SET
			prev_refresh_token_id = refresh_token_id,
			prev_refresh_expires_at = $4,
			refresh_token_id = $2,
			refresh_issued_at = $3
		WHERE id = $1
	`, id, newJTI, issuedAt, prevGraceUntil)
	if err != nil {
		return fmt.Errorf("failed to update session refresh index: %w", err)
	}
	if result.RowsAffected() == 0 {
		return session.ErrNotFound
	}

	return nil
}

// Delete deletes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID deletes all sessions for a user.
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
