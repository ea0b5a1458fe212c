// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is the uniform failure for any password login
// problem. It deliberately does not distinguish an unknown identifier from
// a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidOrExpired is the uniform failure for any OTP verification
// problem: missing challenge, consumed challenge, past expiry, or a code
// the gateway rejected. The caller cannot tell which party said no.
var ErrInvalidOrExpired = errors.New("invalid or expired OTP")

// ErrIdentifierNotFound is returned when an OTP login identifier matches no
// member under an active account.
var ErrIdentifierNotFound = errors.New("identifier not registered")

// ErrDuplicateIdentifier is returned when registration collides with an
// existing unique email, phone, or username.
var ErrDuplicateIdentifier = errors.New("identifier already registered")

// TeamCandidate identifies one account that matched an ambiguous login
// identifier.
type TeamCandidate struct {
	TeamNo   *int   `json:"team_no"`
	Username string `json:"username"`
}

// AmbiguousIdentityError is returned when an OTP login identifier resolves
// to members under more than one account. The candidate teams are surfaced
// so the caller can retry with an explicit team selector.
type AmbiguousIdentityError struct {
	Teams []TeamCandidate
}

func (e *AmbiguousIdentityError) Error() string {
	return fmt.Sprintf("identifier matches %d team accounts", len(e.Teams))
}
