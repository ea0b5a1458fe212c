// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service provides password login, session validation, and registration.
type Service struct {
	accounts AccountRepository
	members  MemberRepository
	sessions SessionRepository
	resolver *IdentityResolver
}

// NewService creates a new auth Service.
func NewService(accounts AccountRepository, members MemberRepository, sessions SessionRepository) *Service {
	return &Service{
		accounts: accounts,
		members:  members,
		sessions: sessions,
		resolver: NewIdentityResolver(members),
	}
}

// Fake credential verified when no candidate matched, so a miss costs the
// same PBKDF2 work as a hit. This is NOT a real credential.
//
//nolint:gosec // G101: intentionally fake digest for timing attack prevention.
const (
	dummySaltB64 = "AAAAAAAAAAAAAAAAAAAAAA=="
	dummyHashB64 = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
)

// LoginResult carries everything a successful login produces. Token is the
// plaintext session token, returned to the caller exactly once.
type LoginResult struct {
	Session *Session
	Token   string
	Account *Account
	Member  *Member
}

// Login authenticates an identifier/password pair and issues a session.
// Candidates are tried in stable order and the first account whose password
// verifies wins. Every failure mode maps to ErrInvalidCredentials so a
// caller cannot enumerate identifiers.
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if identifier == "" || password == "" {
		return nil, oops.Code("AUTH_VALIDATION").Errorf("identifier and password are required")
	}

	candidates, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		// Burn the same derivation cost as a real verification.
		_, _ = VerifySecret(password, dummySaltB64, dummyHashB64, PasswordIterations) //nolint:errcheck // timing padding only
		return nil, ErrInvalidCredentials
	}

	var matched *Candidate
	for i := range candidates {
		ok, verifyErr := candidates[i].Account.VerifyPassword(password)
		if verifyErr != nil {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "verify password").
				Wrap(verifyErr)
		}
		if ok {
			matched = &candidates[i]
			break
		}
	}
	if matched == nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, matched.Account, matched.Member)
}

// issue creates and persists a fresh session for an account/member pair.
// A new row is always inserted; concurrent devices each hold their own.
func (s *Service) issue(ctx context.Context, account *Account, member *Member) (*LoginResult, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	now := time.Now()
	session, err := NewSession(account.ID, memberIDOf(member), tokenHash, now, now.Add(SessionTTL))
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return &LoginResult{
		Session: session,
		Token:   token,
		Account: account,
		Member:  member,
	}, nil
}

// IssueSession creates a session for a known account/member pair. Used by
// the OTP flow after a challenge has been consumed.
func (s *Service) IssueSession(ctx context.Context, account *Account, member *Member) (*LoginResult, error) {
	return s.issue(ctx, account, member)
}

// ValidateSession hashes the presented token and returns the matching valid
// session, or nil when the token is unknown, expired, or revoked. The nil
// result is not an error; callers map it uniformly to an authentication
// failure.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if !session.IsValid() {
		return nil, nil
	}
	return session, nil
}

// Logout revokes the session behind a bearer token. Unknown or already
// revoked tokens are not errors; logout is idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.ValidateSession(ctx, token)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	if err := s.sessions.Revoke(ctx, session.ID, time.Now()); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "revoke session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// Register creates a new account with one member. The username is derived
// from the email local part and uniquified with a numeric suffix when
// taken. Duplicate email or phone surfaces as ErrDuplicateIdentifier from
// the repository layer.
func (s *Service) Register(ctx context.Context, displayName, email, phone, password string) (*Account, *Member, error) {
	displayName = strings.TrimSpace(displayName)
	email = strings.ToLower(strings.TrimSpace(email))
	normalizedPhone := NormalizePhone(phone)

	switch {
	case displayName == "":
		return nil, nil, oops.Code("AUTH_VALIDATION").Errorf("display name is required")
	case email == "":
		return nil, nil, oops.Code("AUTH_VALIDATION").Errorf("email is required")
	case !IsEmailIdentifier(email) || !strings.Contains(strings.SplitN(email, "@", 2)[1], "."):
		return nil, nil, oops.Code("AUTH_VALIDATION").Errorf("invalid email format")
	case normalizedPhone == "":
		return nil, nil, oops.Code("AUTH_VALIDATION").Errorf("phone number is required")
	case len(password) < 6:
		return nil, nil, oops.Code("AUTH_VALIDATION").Errorf("password must be at least 6 characters")
	}

	username, err := s.uniqueUsername(ctx, strings.SplitN(email, "@", 2)[0])
	if err != nil {
		return nil, nil, err
	}

	account, err := NewAccount(username, email, normalizedPhone, password)
	if err != nil {
		return nil, nil, err
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, nil, err
	}

	member, err := NewMember(account.ID, displayName, email, normalizedPhone)
	if err != nil {
		return nil, nil, err
	}
	if err := s.members.Create(ctx, member); err != nil {
		return nil, nil, err
	}

	return account, member, nil
}

// uniqueUsername finds the first free username of base, base1, base2, ...
func (s *Service) uniqueUsername(ctx context.Context, base string) (string, error) {
	username := base
	for counter := 1; ; counter++ {
		_, err := s.accounts.GetByUsername(ctx, username)
		if errors.Is(err, ErrNotFound) {
			return username, nil
		}
		if err != nil {
			return "", oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "check username").
				Wrap(err)
		}
		username = fmt.Sprintf("%s%d", base, counter)
	}
}

// memberIDOf returns the ID pointer for an optional member.
func memberIDOf(m *Member) *ulid.ULID {
	if m == nil {
		return nil
	}
	id := m.ID
	return &id
}
