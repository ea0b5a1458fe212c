// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

// Package httpapi exposes the game backend over JSON HTTP.
//
// Handlers own the coin tariffs and the error-to-status mapping; all domain
// decisions live in the auth, ledger, and otpgateway packages.
package httpapi

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/lexiduel/lexiduel/internal/auth"
	"github.com/lexiduel/lexiduel/internal/observability"
	"github.com/lexiduel/lexiduel/internal/otpgateway"
)

// Coin tariffs. The ledger enforces balance rules; the amounts are an HTTP
// layer policy.
const (
	WinReward       = 10
	HintCost        = 10
	MeaningClueCost = 5
)

// AuthService is the slice of auth.Service the API needs.
type AuthService interface {
	Login(ctx context.Context, identifier, password string) (*auth.LoginResult, error)
	Register(ctx context.Context, displayName, email, phone, password string) (*auth.Account, *auth.Member, error)
	ValidateSession(ctx context.Context, token string) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
}

// OTPService is the slice of auth.OTPService the API needs.
type OTPService interface {
	Request(ctx context.Context, channel otpgateway.Channel, identifier string, teamNo *int) (*auth.Challenge, error)
	Verify(ctx context.Context, challengeID ulid.ULID, otp string) (*auth.LoginResult, error)
}

// CoinLedger is the slice of ledger.Ledger the API needs.
type CoinLedger interface {
	Credit(ctx context.Context, memberID ulid.ULID, amount int) (int, error)
	Debit(ctx context.Context, memberID ulid.ULID, amount int) (int, error)
	Balance(ctx context.Context, memberID ulid.ULID) (int, error)
}

// API bundles the services behind the HTTP handlers.
type API struct {
	auth     AuthService
	otp      OTPService
	ledger   CoinLedger
	accounts auth.AccountRepository
	members  auth.MemberRepository
	metrics  *observability.Metrics
}

// NewAPI creates the handler set. metrics may be nil.
func NewAPI(
	authSvc AuthService,
	otpSvc OTPService,
	coinLedger CoinLedger,
	accounts auth.AccountRepository,
	members auth.MemberRepository,
	metrics *observability.Metrics,
) *API {
	return &API{
		auth:     authSvc,
		otp:      otpSvc,
		ledger:   coinLedger,
		accounts: accounts,
		members:  members,
		metrics:  metrics,
	}
}
