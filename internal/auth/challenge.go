// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ChallengeTTL is the window within which an OTP challenge can be consumed.
const ChallengeTTL = 5 * time.Minute

// Challenge represents one OTP attempt dispatched through the gateway.
// Supersession and consumption both set ConsumedAt; a superseded challenge
// is semantically "used" for audit purposes.
type Challenge struct {
	ID         ulid.ULID
	Identifier string
	MemberID   *ulid.ULID
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// NewChallenge creates a validated pending Challenge for a member and the
// raw identifier the code was dispatched to.
func NewChallenge(identifier string, memberID ulid.ULID, createdAt time.Time) (*Challenge, error) {
	if identifier == "" {
		return nil, oops.Code("OTP_INVALID_IDENTIFIER").Errorf("identifier cannot be empty")
	}
	if memberID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("OTP_INVALID_MEMBER").Errorf("member ID cannot be zero")
	}

	return &Challenge{
		ID:         ulid.Make(),
		Identifier: identifier,
		MemberID:   &memberID,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(ChallengeTTL),
	}, nil
}

// IsValid reports whether the challenge can still be consumed.
func (c *Challenge) IsValid() bool {
	return c.IsValidAt(time.Now())
}

// IsValidAt reports challenge validity at the given instant.
func (c *Challenge) IsValidAt(t time.Time) bool {
	if c.ConsumedAt != nil {
		return false
	}
	return t.Before(c.ExpiresAt)
}

// ChallengeRepository manages OTP challenge persistence.
type ChallengeRepository interface {
	// GetByID retrieves a challenge by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Challenge, error)

	// CreateSuperseding inserts the new pending challenge and, in the same
	// transaction, marks any still-valid challenge for the same
	// (member, identifier) pair as consumed. After it returns, at most one
	// pending challenge exists for the pair.
	CreateSuperseding(ctx context.Context, challenge *Challenge) error

	// Consume transitions a challenge to consumed with a conditional
	// update that only succeeds while consumed_at is still null. Returns
	// false when another caller won the race or the challenge was already
	// used.
	Consume(ctx context.Context, id ulid.ULID, at time.Time) (bool, error)
}
