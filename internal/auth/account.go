// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// StartingCoins is the balance a member receives at registration.
const StartingCoins = 100

var nonDigits = regexp.MustCompile(`\D+`)

// NormalizePhone strips every non-digit character from a raw phone number.
// Returns the empty string if nothing remains.
func NormalizePhone(raw string) string {
	return nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
}

// IsEmailIdentifier reports whether a login identifier should be treated as
// an email address rather than a phone number.
func IsEmailIdentifier(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// Account is a team-level principal holding the password credential.
type Account struct {
	ID                 ulid.ULID
	TeamNo             *int
	Username           string
	Email              *string
	Phone              *string
	PasswordSaltB64    string
	PasswordHashB64    string
	PasswordIterations int
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Member is an individual under an Account and the holder of a coin balance.
type Member struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	MemberRef *string
	Name      string
	Email     *string
	Phone     string
	Coins     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates a validated Account with a freshly derived password
// digest.
func NewAccount(username, email, phone, password string) (*Account, error) {
	if username == "" {
		return nil, oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	derived, err := DeriveSecret(password, "", PasswordIterations)
	if err != nil {
		return nil, oops.Code("AUTH_ACCOUNT_CREATE_FAILED").
			With("operation", "derive password").
			Wrap(err)
	}

	now := time.Now()
	a := &Account{
		ID:                 ulid.Make(),
		Username:           username,
		PasswordSaltB64:    derived.SaltB64,
		PasswordHashB64:    derived.HashB64,
		PasswordIterations: derived.Iterations,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if email != "" {
		a.Email = &email
	}
	if phone != "" {
		a.Phone = &phone
	}
	return a, nil
}

// VerifyPassword checks a candidate password against the account's stored
// digest.
func (a *Account) VerifyPassword(password string) (bool, error) {
	return VerifySecret(password, a.PasswordSaltB64, a.PasswordHashB64, a.PasswordIterations)
}

// NewMember creates a validated Member under an account.
func NewMember(accountID ulid.ULID, name, email, phone string) (*Member, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if name == "" {
		return nil, oops.Code("AUTH_INVALID_MEMBER").Errorf("member name cannot be empty")
	}
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return nil, oops.Code("AUTH_INVALID_MEMBER").Errorf("member phone cannot be empty")
	}

	now := time.Now()
	m := &Member{
		ID:        ulid.Make(),
		AccountID: accountID,
		Name:      name,
		Phone:     normalized,
		Coins:     StartingCoins,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if email != "" {
		m.Email = &email
	}
	return m, nil
}

// Candidate pairs a member with its owning account during login resolution.
type Candidate struct {
	Account *Account
	Member  *Member
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByUsername retrieves an account by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Account, error)
}

// MemberRepository manages member persistence and login resolution lookups.
type MemberRepository interface {
	// Create stores a new member.
	Create(ctx context.Context, member *Member) error

	// GetByID retrieves a member by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Member, error)

	// FindByEmail returns candidates whose member email matches
	// (case-insensitive), restricted to active accounts, in creation order.
	FindByEmail(ctx context.Context, email string) ([]Candidate, error)

	// FindByPhone returns candidates whose member phone matches the
	// normalized number, restricted to active accounts, in creation order.
	FindByPhone(ctx context.Context, phone string) ([]Candidate, error)
}
