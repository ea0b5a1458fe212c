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

// ChallengeRepository implements auth.ChallengeRepository using PostgreSQL.
type ChallengeRepository struct {
	db DB
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(db DB) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// GetByID retrieves a challenge by its ID.
func (r *ChallengeRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Challenge, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, identifier, member_id, created_at, expires_at, consumed_at
		FROM otp_challenges
		WHERE id = $1
	`, id.String())

	challenge, err := scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("OTP_CHALLENGE_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("OTP_CHALLENGE_GET_FAILED").
			With("operation", "get challenge by id").
			Wrap(err)
	}
	return challenge, nil
}

// CreateSuperseding inserts the challenge and invalidates any still-pending
// challenge for the same (member, identifier) pair in one transaction, so at
// most one consumable challenge exists for the pair at any time.
func (r *ChallengeRepository) CreateSuperseding(ctx context.Context, challenge *auth.Challenge) error {
	if challenge.MemberID == nil {
		return oops.Code("OTP_INVALID_MEMBER").Errorf("challenge must reference a member")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("OTP_CHALLENGE_CREATE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		UPDATE otp_challenges SET consumed_at = $3
		WHERE member_id = $1 AND identifier = $2 AND consumed_at IS NULL
	`, challenge.MemberID.String(), challenge.Identifier, challenge.CreatedAt)
	if err != nil {
		return oops.Code("OTP_CHALLENGE_CREATE_FAILED").
			With("operation", "supersede pending challenges").
			With("member_id", challenge.MemberID.String()).
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO otp_challenges (id, identifier, member_id, created_at, expires_at, consumed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		challenge.ID.String(),
		challenge.Identifier,
		challenge.MemberID.String(),
		challenge.CreatedAt,
		challenge.ExpiresAt,
		challenge.ConsumedAt,
	)
	if err != nil {
		return oops.Code("OTP_CHALLENGE_CREATE_FAILED").
			With("operation", "insert challenge").
			With("id", challenge.ID.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("OTP_CHALLENGE_CREATE_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// Consume marks a challenge consumed with a conditional update. The WHERE
// clause guards consumed_at so that concurrent verifications of the same
// challenge yield exactly one winner.
func (r *ChallengeRepository) Consume(ctx context.Context, id ulid.ULID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE otp_challenges SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL
	`, id.String(), at)
	if err != nil {
		return false, oops.Code("OTP_CHALLENGE_CONSUME_FAILED").
			With("operation", "consume challenge").
			With("id", id.String()).
			Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

// scanChallenge scans a single row into a Challenge.
// Callers are responsible for handling pgx.ErrNoRows.
func scanChallenge(row pgx.Row) (*auth.Challenge, error) {
	var (
		idStr       string
		identifier  string
		memberIDStr *string
		createdAt   time.Time
		expiresAt   time.Time
		consumedAt  *time.Time
	)

	err := row.Scan(&idStr, &identifier, &memberIDStr, &createdAt, &expiresAt, &consumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("OTP_CHALLENGE_SCAN_FAILED").
			With("operation", "scan challenge").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("OTP_CHALLENGE_INVALID_ID").With("id", idStr).Wrap(err)
	}

	var memberID *ulid.ULID
	if memberIDStr != nil {
		parsed, err := ulid.Parse(*memberIDStr)
		if err != nil {
			return nil, oops.Code("OTP_CHALLENGE_INVALID_MEMBER_ID").With("member_id", *memberIDStr).Wrap(err)
		}
		memberID = &parsed
	}

	return &auth.Challenge{
		ID:         id,
		Identifier: identifier,
		MemberID:   memberID,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		ConsumedAt: consumedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.ChallengeRepository = (*ChallengeRepository)(nil)
