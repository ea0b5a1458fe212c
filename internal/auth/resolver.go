// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package auth

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// IdentityResolver maps a login identifier to the candidate (Account,
// Member) pairs it may belong to. An identifier containing '@' is treated
// as an email address; anything else is normalized to digits and matched
// as a phone number. Only members under active accounts are considered.
type IdentityResolver struct {
	members MemberRepository
}

// NewIdentityResolver creates a new IdentityResolver.
func NewIdentityResolver(members MemberRepository) *IdentityResolver {
	return &IdentityResolver{members: members}
}

// Resolve returns candidates for the identifier in a stable order
// (member creation order). An identifier that strips down to nothing is a
// validation error; an identifier that matches nothing yields an empty
// slice, not an error, so callers choose their own uniform failure.
func (r *IdentityResolver) Resolve(ctx context.Context, identifier string) ([]Candidate, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, oops.Code("AUTH_INVALID_IDENTIFIER").Errorf("identifier cannot be empty")
	}

	if IsEmailIdentifier(identifier) {
		candidates, err := r.members.FindByEmail(ctx, strings.ToLower(identifier))
		if err != nil {
			return nil, oops.Code("AUTH_RESOLVE_FAILED").
				With("operation", "find by email").
				Wrap(err)
		}
		return candidates, nil
	}

	phone := NormalizePhone(identifier)
	if phone == "" {
		return nil, oops.Code("AUTH_INVALID_IDENTIFIER").Errorf("identifier is not a valid phone number")
	}

	candidates, err := r.members.FindByPhone(ctx, phone)
	if err != nil {
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("operation", "find by phone").
			Wrap(err)
	}
	return candidates, nil
}

// FilterByTeam narrows candidates to those under the account with the given
// team number. A nil teamNo returns the input unchanged.
func FilterByTeam(candidates []Candidate, teamNo *int) []Candidate {
	if teamNo == nil {
		return candidates
	}
	var filtered []Candidate
	for _, c := range candidates {
		if c.Account.TeamNo != nil && *c.Account.TeamNo == *teamNo {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// DistinctAccounts counts how many distinct accounts appear among the
// candidates.
func DistinctAccounts(candidates []Candidate) int {
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		seen[c.Account.ID.String()] = struct{}{}
	}
	return len(seen)
}
