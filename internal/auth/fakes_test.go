// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lexiduel/lexiduel/internal/otpgateway"
)

// Function-field fakes. A nil field means the call is unexpected and panics,
// which surfaces wiring mistakes immediately.

type fakeAccountRepo struct {
	create        func(ctx context.Context, account *Account) error
	getByID       func(ctx context.Context, id ulid.ULID) (*Account, error)
	getByUsername func(ctx context.Context, username string) (*Account, error)
}

func (f *fakeAccountRepo) Create(ctx context.Context, account *Account) error {
	return f.create(ctx, account)
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id ulid.ULID) (*Account, error) {
	return f.getByID(ctx, id)
}

func (f *fakeAccountRepo) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return f.getByUsername(ctx, username)
}

type fakeMemberRepo struct {
	create      func(ctx context.Context, member *Member) error
	getByID     func(ctx context.Context, id ulid.ULID) (*Member, error)
	findByEmail func(ctx context.Context, email string) ([]Candidate, error)
	findByPhone func(ctx context.Context, phone string) ([]Candidate, error)
}

func (f *fakeMemberRepo) Create(ctx context.Context, member *Member) error {
	return f.create(ctx, member)
}

func (f *fakeMemberRepo) GetByID(ctx context.Context, id ulid.ULID) (*Member, error) {
	return f.getByID(ctx, id)
}

func (f *fakeMemberRepo) FindByEmail(ctx context.Context, email string) ([]Candidate, error) {
	return f.findByEmail(ctx, email)
}

func (f *fakeMemberRepo) FindByPhone(ctx context.Context, phone string) ([]Candidate, error) {
	return f.findByPhone(ctx, phone)
}

type fakeSessionRepo struct {
	create         func(ctx context.Context, session *Session) error
	getByTokenHash func(ctx context.Context, tokenHash string) (*Session, error)
	revoke         func(ctx context.Context, id ulid.ULID, at time.Time) error
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *Session) error {
	return f.create(ctx, session)
}

func (f *fakeSessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	return f.getByTokenHash(ctx, tokenHash)
}

func (f *fakeSessionRepo) Revoke(ctx context.Context, id ulid.ULID, at time.Time) error {
	return f.revoke(ctx, id, at)
}

type fakeChallengeRepo struct {
	getByID           func(ctx context.Context, id ulid.ULID) (*Challenge, error)
	createSuperseding func(ctx context.Context, challenge *Challenge) error
	consume           func(ctx context.Context, id ulid.ULID, at time.Time) (bool, error)
}

func (f *fakeChallengeRepo) GetByID(ctx context.Context, id ulid.ULID) (*Challenge, error) {
	return f.getByID(ctx, id)
}

func (f *fakeChallengeRepo) CreateSuperseding(ctx context.Context, challenge *Challenge) error {
	return f.createSuperseding(ctx, challenge)
}

func (f *fakeChallengeRepo) Consume(ctx context.Context, id ulid.ULID, at time.Time) (bool, error) {
	return f.consume(ctx, id, at)
}

type fakeGateway struct {
	dispatch   func(ctx context.Context, channel otpgateway.Channel, identifier string) error
	verifyCode func(ctx context.Context, identifier, otp string) (bool, error)
}

func (f *fakeGateway) Dispatch(ctx context.Context, channel otpgateway.Channel, identifier string) error {
	return f.dispatch(ctx, channel, identifier)
}

func (f *fakeGateway) VerifyCode(ctx context.Context, identifier, otp string) (bool, error) {
	return f.verifyCode(ctx, identifier, otp)
}

// candidateFixture builds an active account with one member sharing the
// given contact details.
func candidateFixture(teamNo int, username, email, phone string) Candidate {
	no := teamNo
	account := &Account{
		ID:       ulid.Make(),
		TeamNo:   &no,
		Username: username,
		Active:   true,
	}
	member := &Member{
		ID:        ulid.Make(),
		AccountID: account.ID,
		Name:      username,
		Phone:     phone,
	}
	if email != "" {
		e := email
		account.Email = &e
		member.Email = &e
	}
	return Candidate{Account: account, Member: member}
}
