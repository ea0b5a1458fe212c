// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lexiduel/lexiduel/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
// Session rows are append-only: inserts and revocation timestamps only,
// never deletes, so the table doubles as an audit trail.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	var memberIDStr *string
	if session.MemberID != nil {
		s := session.MemberID.String()
		memberIDStr = &s
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (id, account_id, member_id, token_hash, created_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		session.ID.String(),
		session.AccountID.String(),
		memberIDStr,
		session.TokenHash,
		session.CreatedAt,
		session.ExpiresAt,
		session.RevokedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash regardless of
// validity; the service layer decides what a dead session means.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, account_id, member_id, token_hash, created_at, expires_at, revoked_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

// Revoke sets revoked_at on a session that has not been revoked yet.
// Revoking an already-revoked or unknown session is a no-op, which makes
// the operation idempotent.
func (r *SessionRepository) Revoke(ctx context.Context, id ulid.ULID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE sessions SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`, id.String(), at)
	if err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "revoke session").
			With("id", id.String()).
			Wrap(err)
	}
	return nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr       string
		accountID   string
		memberIDStr *string
		tokenHash   string
		createdAt   time.Time
		expiresAt   time.Time
		revokedAt   *time.Time
	)

	err := row.Scan(&idStr, &accountID, &memberIDStr, &tokenHash, &createdAt, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	accID, err := ulid.Parse(accountID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").With("account_id", accountID).Wrap(err)
	}

	var memberID *ulid.ULID
	if memberIDStr != nil {
		parsed, err := ulid.Parse(*memberIDStr)
		if err != nil {
			return nil, oops.Code("SESSION_INVALID_MEMBER_ID").With("member_id", *memberIDStr).Wrap(err)
		}
		memberID = &parsed
	}

	return &auth.Session{
		ID:        id,
		AccountID: accID,
		MemberID:  memberID,
		TokenHash: tokenHash,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		RevokedAt: revokedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
