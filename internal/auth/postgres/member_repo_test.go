// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiduel/lexiduel/internal/auth"
)

func testMember(t *testing.T, accountID ulid.ULID) *auth.Member {
	t.Helper()
	email := "rose@example.com"
	now := time.Now().UTC().Truncate(time.Second)
	return &auth.Member{
		ID:        ulid.Make(),
		AccountID: accountID,
		Name:      "Rose",
		Email:     &email,
		Phone:     "15551230001",
		Coins:     auth.StartingCoins,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemberRepository_Create(t *testing.T) {
	account := testAccount(t)
	member := testMember(t, account.ID)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		errMsg    string
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO members`).
					WithArgs(
						member.ID.String(), member.AccountID.String(),
						member.MemberRef, member.Name, member.Email,
						member.Phone, member.Coins,
						member.CreatedAt, member.UpdatedAt,
					).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate phone within account",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO members`).
					WithArgs(
						member.ID.String(), member.AccountID.String(),
						member.MemberRef, member.Name, member.Email,
						member.Phone, member.Coins,
						member.CreatedAt, member.UpdatedAt,
					).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: auth.ErrDuplicateIdentifier,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO members`).
					WithArgs(
						member.ID.String(), member.AccountID.String(),
						member.MemberRef, member.Name, member.Email,
						member.Phone, member.Coins,
						member.CreatedAt, member.UpdatedAt,
					).
					WillReturnError(errors.New("connection refused"))
			},
			errMsg: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewMemberRepository(mock)
			err = repo.Create(context.Background(), member)

			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestMemberRepository_GetByID(t *testing.T) {
	account := testAccount(t)
	member := testMember(t, account.ID)

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		rows := memberRows().AddRow(
			member.ID.String(), member.AccountID.String(),
			member.MemberRef, member.Name, member.Email,
			member.Phone, member.Coins, member.CreatedAt, member.UpdatedAt,
		)
		mock.ExpectQuery(`SELECT .+ FROM members WHERE id = \$1`).
			WithArgs(member.ID.String()).
			WillReturnRows(rows)

		repo := NewMemberRepository(mock)
		got, err := repo.GetByID(context.Background(), member.ID)

		require.NoError(t, err)
		assert.Equal(t, member.ID, got.ID)
		assert.Equal(t, member.Phone, got.Phone)
		assert.Equal(t, auth.StartingCoins, got.Coins)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM members WHERE id = \$1`).
			WithArgs(member.ID.String()).
			WillReturnRows(memberRows())

		repo := NewMemberRepository(mock)
		_, err = repo.GetByID(context.Background(), member.ID)

		require.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestMemberRepository_FindByEmail(t *testing.T) {
	account := testAccount(t)
	member := testMember(t, account.ID)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantLen   int
		wantErr   bool
		errMsg    string
	}{
		{
			name: "one candidate",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := candidateRows().AddRow(candidateRow(member, account)...)
				mock.ExpectQuery(`FROM members m\s+JOIN accounts a ON a\.id = m\.account_id`).
					WithArgs("rose@example.com").
					WillReturnRows(rows)
			},
			wantLen: 1,
		},
		{
			name: "no candidates",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM members m\s+JOIN accounts a ON a\.id = m\.account_id`).
					WithArgs("rose@example.com").
					WillReturnRows(candidateRows())
			},
			wantLen: 0,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM members m\s+JOIN accounts a ON a\.id = m\.account_id`).
					WithArgs("rose@example.com").
					WillReturnError(errors.New("timeout"))
			},
			wantErr: true,
			errMsg:  "timeout",
		},
		{
			name: "row iteration error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := candidateRows().
					AddRow(candidateRow(member, account)...).
					RowError(0, errors.New("row iteration error"))
				mock.ExpectQuery(`FROM members m\s+JOIN accounts a ON a\.id = m\.account_id`).
					WithArgs("rose@example.com").
					WillReturnRows(rows)
			},
			wantErr: true,
			errMsg:  "row iteration error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewMemberRepository(mock)
			got, err := repo.FindByEmail(context.Background(), "rose@example.com")

			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
				assert.Len(t, got, tt.wantLen)
				if tt.wantLen > 0 {
					assert.Equal(t, member.ID, got[0].Member.ID)
					assert.Equal(t, account.ID, got[0].Account.ID)
				}
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestMemberRepository_FindByPhone(t *testing.T) {
	account := testAccount(t)
	member := testMember(t, account.ID)

	t.Run("candidates across accounts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		other := testAccount(t)
		other.ID = ulid.Make()
		sibling := testMember(t, other.ID)
		sibling.Phone = member.Phone

		rows := candidateRows().
			AddRow(candidateRow(member, account)...).
			AddRow(candidateRow(sibling, other)...)
		mock.ExpectQuery(`FROM members m\s+JOIN accounts a ON a\.id = m\.account_id`).
			WithArgs(member.Phone).
			WillReturnRows(rows)

		repo := NewMemberRepository(mock)
		got, err := repo.FindByPhone(context.Background(), member.Phone)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, account.ID, got[0].Account.ID)
		assert.Equal(t, other.ID, got[1].Account.ID)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func candidateRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"m_id", "m_account_id", "m_member_ref", "m_name", "m_email", "m_phone", "m_coins", "m_created_at", "m_updated_at",
		"a_id", "a_team_no", "a_username", "a_email", "a_phone", "a_password_salt", "a_password_hash", "a_password_iterations", "a_active", "a_created_at", "a_updated_at",
	})
}

func candidateRow(member *auth.Member, account *auth.Account) []any {
	return []any{
		member.ID.String(), member.AccountID.String(), member.MemberRef,
		member.Name, member.Email, member.Phone, member.Coins,
		member.CreatedAt, member.UpdatedAt,
		account.ID.String(), account.TeamNo, account.Username,
		account.Email, account.Phone, account.PasswordSaltB64,
		account.PasswordHashB64, account.PasswordIterations, account.Active,
		account.CreatedAt, account.UpdatedAt,
	}
}

func memberRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "account_id", "member_ref", "name", "email", "phone", "coins", "created_at", "updated_at",
	})
}
