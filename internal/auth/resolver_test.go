// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_EmailIdentifier(t *testing.T) {
	want := []Candidate{candidateFixture(1, "alpha", "player@example.com", "15551234567")}

	var gotEmail string
	members := &fakeMemberRepo{
		findByEmail: func(_ context.Context, email string) ([]Candidate, error) {
			gotEmail = email
			return want, nil
		},
	}

	resolver := NewIdentityResolver(members)
	candidates, err := resolver.Resolve(context.Background(), "  Player@Example.COM ")
	require.NoError(t, err)

	assert.Equal(t, "player@example.com", gotEmail, "email lookup should be lowercased and trimmed")
	assert.Equal(t, want, candidates)
}

func TestResolver_PhoneIdentifier(t *testing.T) {
	want := []Candidate{candidateFixture(1, "alpha", "", "15551234567")}

	var gotPhone string
	members := &fakeMemberRepo{
		findByPhone: func(_ context.Context, phone string) ([]Candidate, error) {
			gotPhone = phone
			return want, nil
		},
	}

	resolver := NewIdentityResolver(members)
	candidates, err := resolver.Resolve(context.Background(), "+1 (555) 123-4567")
	require.NoError(t, err)

	assert.Equal(t, "15551234567", gotPhone, "phone lookup should be digits only")
	assert.Equal(t, want, candidates)
}

func TestResolver_NoMatchIsNotAnError(t *testing.T) {
	members := &fakeMemberRepo{
		findByPhone: func(_ context.Context, _ string) ([]Candidate, error) {
			return nil, nil
		},
	}

	resolver := NewIdentityResolver(members)
	candidates, err := resolver.Resolve(context.Background(), "15551234567")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestResolver_InvalidIdentifiers(t *testing.T) {
	resolver := NewIdentityResolver(&fakeMemberRepo{})

	_, err := resolver.Resolve(context.Background(), "")
	require.Error(t, err)

	_, err = resolver.Resolve(context.Background(), "   ")
	require.Error(t, err)

	// Contains no digits and no '@', so it is neither identifier kind.
	_, err = resolver.Resolve(context.Background(), "not-a-phone")
	require.Error(t, err)
}

func TestResolver_RepositoryError(t *testing.T) {
	members := &fakeMemberRepo{
		findByEmail: func(_ context.Context, _ string) ([]Candidate, error) {
			return nil, errors.New("connection lost")
		},
	}

	resolver := NewIdentityResolver(members)
	_, err := resolver.Resolve(context.Background(), "player@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
}

func TestFilterByTeam(t *testing.T) {
	a := candidateFixture(1, "alpha", "", "15551234567")
	b := candidateFixture(2, "beta", "", "15551234567")
	noTeam := candidateFixture(0, "gamma", "", "15551234567")
	noTeam.Account.TeamNo = nil

	candidates := []Candidate{a, b, noTeam}

	assert.Equal(t, candidates, FilterByTeam(candidates, nil), "nil team returns input unchanged")

	one := 1
	assert.Equal(t, []Candidate{a}, FilterByTeam(candidates, &one))

	three := 3
	assert.Empty(t, FilterByTeam(candidates, &three))
}

func TestDistinctAccounts(t *testing.T) {
	a := candidateFixture(1, "alpha", "", "15551234567")
	b := candidateFixture(2, "beta", "", "15551234567")

	// Second member under account a.
	sibling := Candidate{Account: a.Account, Member: &Member{ID: b.Member.ID, AccountID: a.Account.ID}}

	assert.Equal(t, 0, DistinctAccounts(nil))
	assert.Equal(t, 1, DistinctAccounts([]Candidate{a, sibling}))
	assert.Equal(t, 2, DistinctAccounts([]Candidate{a, sibling, b}))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+1 (555) 123-4567", "15551234567"},
		{"15551234567", "15551234567"},
		{"  555.123.4567 ", "5551234567"},
		{"no digits", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), "input %q", tt.in)
	}
}

func TestIsEmailIdentifier(t *testing.T) {
	assert.True(t, IsEmailIdentifier("player@example.com"))
	assert.False(t, IsEmailIdentifier("15551234567"))
}
