// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32                 // raw entropy before encoding
	SessionTTL        = 7 * 24 * time.Hour // fixed lifetime computed at issuance
)

// Session represents one issued bearer credential. Rows are append-only:
// the only mutation ever applied is setting RevokedAt.
type Session struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	MemberID  *ulid.ULID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// NewSession creates a validated Session instance. MemberID is optional.
func NewSession(accountID ulid.ULID, memberID *ulid.ULID, tokenHash string, createdAt, expiresAt time.Time) (*Session, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if memberID != nil && memberID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_MEMBER").Errorf("member ID cannot be zero when provided")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &Session{
		ID:        ulid.Make(),
		AccountID: accountID,
		MemberID:  memberID,
		TokenHash: tokenHash,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// IsValid reports whether the session still carries authority: not revoked
// and not past expiry.
func (s *Session) IsValid() bool {
	return s.IsValidAt(time.Now())
}

// IsValidAt reports session validity at the given instant. Useful for
// testing with deterministic time values.
func (s *Session) IsValidAt(t time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is returned to the client exactly once; only the hash
// is stored, so a storage compromise cannot replay sessions.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = base64.RawURLEncoding.EncodeToString(tokenBytes)
	hash = HashSessionToken(token)

	return token, hash, nil
}

// HashSessionToken computes the SHA256 hex hash of a session token. This is
// the only form ever persisted.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// SessionRepository manages session persistence. Sessions are never
// deleted; expired and revoked rows remain as an audit trail.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash, regardless of
	// validity. Returns ErrNotFound if no row matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Revoke sets revoked_at on a session if it is not already set.
	// Revoking an already-revoked session is not an error.
	Revoke(ctx context.Context, id ulid.ULID, at time.Time) error
}
