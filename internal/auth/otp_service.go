// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lexiduel/lexiduel/internal/otpgateway"
)

// OTPGateway is the slice of the gateway client the OTP flow needs.
type OTPGateway interface {
	Dispatch(ctx context.Context, channel otpgateway.Channel, identifier string) error
	VerifyCode(ctx context.Context, identifier, otp string) (bool, error)
}

// OTPService drives the OTP challenge lifecycle: request dispatches a code
// and records a pending challenge; verify consumes the challenge exactly
// once and issues a session.
type OTPService struct {
	gateway    OTPGateway
	accounts   AccountRepository
	members    MemberRepository
	challenges ChallengeRepository
	sessions   *Service
	resolver   *IdentityResolver
}

// NewOTPService creates a new OTPService.
func NewOTPService(
	gateway OTPGateway,
	accounts AccountRepository,
	members MemberRepository,
	challenges ChallengeRepository,
	sessions *Service,
) *OTPService {
	return &OTPService{
		gateway:    gateway,
		accounts:   accounts,
		members:    members,
		challenges: challenges,
		sessions:   sessions,
		resolver:   NewIdentityResolver(members),
	}
}

// Request validates the channel/identifier pair, resolves it to exactly one
// member, dispatches a code through the gateway, and only after successful
// dispatch records the pending challenge. The gateway call happens strictly
// before the transaction; a dispatch failure leaves no row behind.
//
// teamNo optionally disambiguates identifiers shared across team accounts.
func (s *OTPService) Request(ctx context.Context, channel otpgateway.Channel, identifier string, teamNo *int) (*Challenge, error) {
	if !channel.Valid() {
		return nil, oops.Code("OTP_INVALID_CHANNEL").
			With("channel", string(channel)).
			Errorf("invalid OTP channel")
	}

	identifier = strings.TrimSpace(identifier)
	switch channel {
	case otpgateway.ChannelWhatsApp:
		if NormalizePhone(identifier) == "" {
			return nil, oops.Code("AUTH_VALIDATION").Errorf("mobile number is required")
		}
	case otpgateway.ChannelEmail:
		if !IsEmailIdentifier(identifier) {
			return nil, oops.Code("AUTH_VALIDATION").Errorf("email id is required")
		}
	}

	candidates, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	candidates = FilterByTeam(candidates, teamNo)

	if len(candidates) == 0 {
		return nil, ErrIdentifierNotFound
	}
	if DistinctAccounts(candidates) > 1 {
		return nil, ambiguityError(candidates)
	}

	member := candidates[0].Member

	// The dispatch identifier is what the gateway will later verify
	// against: the normalized phone, or the member's stored email.
	dispatchID := NormalizePhone(identifier)
	if channel == otpgateway.ChannelEmail {
		dispatchID = strings.ToLower(identifier)
		if member.Email != nil {
			dispatchID = *member.Email
		}
	}

	if err := s.gateway.Dispatch(ctx, channel, dispatchID); err != nil {
		return nil, err
	}

	challenge, err := NewChallenge(dispatchID, member.ID, time.Now())
	if err != nil {
		return nil, oops.Code("OTP_REQUEST_FAILED").
			With("operation", "create challenge").
			Wrap(err)
	}

	if err := s.challenges.CreateSuperseding(ctx, challenge); err != nil {
		return nil, oops.Code("OTP_REQUEST_FAILED").
			With("operation", "persist challenge").
			Wrap(err)
	}

	return challenge, nil
}

// Verify checks a submitted code against a pending challenge. Gateway
// rejection and a dead challenge are deliberately indistinguishable: both
// return ErrInvalidOrExpired. Only the winner of the conditional consume
// proceeds to issue a session.
func (s *OTPService) Verify(ctx context.Context, challengeID ulid.ULID, otp string) (*LoginResult, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, oops.Code("AUTH_VALIDATION").Errorf("OTP is required")
	}

	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidOrExpired
		}
		return nil, oops.Code("OTP_VERIFY_FAILED").
			With("operation", "load challenge").
			Wrap(err)
	}

	if !challenge.IsValid() || challenge.MemberID == nil {
		return nil, ErrInvalidOrExpired
	}

	// Gateway verification runs outside any transaction; the worker may
	// block here for the full gateway timeout without holding locks.
	ok, err := s.gateway.VerifyCode(ctx, challenge.Identifier, otp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidOrExpired
	}

	// Conditional consume: exactly one concurrent verifier wins.
	won, err := s.challenges.Consume(ctx, challenge.ID, time.Now())
	if err != nil {
		return nil, oops.Code("OTP_VERIFY_FAILED").
			With("operation", "consume challenge").
			Wrap(err)
	}
	if !won {
		return nil, ErrInvalidOrExpired
	}

	member, err := s.members.GetByID(ctx, *challenge.MemberID)
	if err != nil {
		return nil, oops.Code("OTP_VERIFY_FAILED").
			With("operation", "load member").
			Wrap(err)
	}
	account, err := s.accounts.GetByID(ctx, member.AccountID)
	if err != nil {
		return nil, oops.Code("OTP_VERIFY_FAILED").
			With("operation", "load account").
			Wrap(err)
	}

	return s.sessions.IssueSession(ctx, account, member)
}

// ambiguityError builds an AmbiguousIdentityError listing the distinct
// candidate teams, team numbers first, in ascending order.
func ambiguityError(candidates []Candidate) *AmbiguousIdentityError {
	seen := make(map[string]struct{}, len(candidates))
	teams := make([]TeamCandidate, 0, len(candidates))
	for _, c := range candidates {
		key := c.Account.ID.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		teams = append(teams, TeamCandidate{
			TeamNo:   c.Account.TeamNo,
			Username: c.Account.Username,
		})
	}
	sort.Slice(teams, func(i, j int) bool {
		switch {
		case teams[i].TeamNo == nil:
			return false
		case teams[j].TeamNo == nil:
			return true
		default:
			return *teams[i].TeamNo < *teams[j].TeamNo
		}
	})
	return &AmbiguousIdentityError{Teams: teams}
}
