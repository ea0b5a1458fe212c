// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lexiduel/lexiduel/internal/auth"
)

// MemberRepository implements auth.MemberRepository using PostgreSQL.
type MemberRepository struct {
	db DB
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(db DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Create stores a new member. A duplicate phone within the same account
// surfaces as auth.ErrDuplicateIdentifier.
func (r *MemberRepository) Create(ctx context.Context, member *auth.Member) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO members (id, account_id, member_ref, name, email, phone, coins, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		member.ID.String(),
		member.AccountID.String(),
		member.MemberRef,
		member.Name,
		member.Email,
		member.Phone,
		member.Coins,
		member.CreatedAt,
		member.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("MEMBER_DUPLICATE").
				With("phone", member.Phone).
				Wrap(auth.ErrDuplicateIdentifier)
		}
		return oops.Code("MEMBER_CREATE_FAILED").
			With("operation", "insert member").
			With("account_id", member.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a member by ID.
func (r *MemberRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Member, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, account_id, member_ref, name, email, phone, coins, created_at, updated_at
		FROM members
		WHERE id = $1
	`, id.String())

	member, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("MEMBER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("MEMBER_GET_BY_ID_FAILED").
			With("operation", "get member by id").
			With("id", id.String()).
			Wrap(err)
	}
	return member, nil
}

// FindByEmail returns candidates whose member email matches, restricted to
// active accounts.
func (r *MemberRepository) FindByEmail(ctx context.Context, email string) ([]auth.Candidate, error) {
	rows, err := r.db.Query(ctx, candidateSQL(`LOWER(m.email) = LOWER($1)`), email)
	if err != nil {
		return nil, oops.Code("MEMBER_FIND_BY_EMAIL_FAILED").
			With("operation", "find candidates by email").
			Wrap(err)
	}
	return collectCandidates(rows)
}

// FindByPhone returns candidates whose member phone matches, restricted to
// active accounts.
func (r *MemberRepository) FindByPhone(ctx context.Context, phone string) ([]auth.Candidate, error) {
	rows, err := r.db.Query(ctx, candidateSQL(`m.phone = $1`), phone)
	if err != nil {
		return nil, oops.Code("MEMBER_FIND_BY_PHONE_FAILED").
			With("operation", "find candidates by phone").
			With("phone", phone).
			Wrap(err)
	}
	return collectCandidates(rows)
}

// candidateSQL fills the match predicate into the candidate join.
func candidateSQL(predicate string) string {
	return `
	SELECT m.id, m.account_id, m.member_ref, m.name, m.email, m.phone, m.coins, m.created_at, m.updated_at,
	       a.id, a.team_no, a.username, a.email, a.phone, a.password_salt, a.password_hash, a.password_iterations, a.active, a.created_at, a.updated_at
	FROM members m
	JOIN accounts a ON a.id = m.account_id
	WHERE a.active AND ` + predicate + `
	ORDER BY m.created_at, m.id`
}

// collectCandidates drains a candidate join result set.
func collectCandidates(rows pgx.Rows) ([]auth.Candidate, error) {
	defer rows.Close()

	var candidates []auth.Candidate
	for rows.Next() {
		var (
			mIDStr    string
			aIDFk     string
			memberRef *string
			mName     string
			mEmail    *string
			mPhone    string
			coins     int
			mCreated  time.Time
			mUpdated  time.Time

			aIDStr     string
			teamNo     *int
			username   string
			aEmail     *string
			aPhone     *string
			salt       string
			hash       string
			iterations int
			active     bool
			aCreated   time.Time
			aUpdated   time.Time
		)

		err := rows.Scan(
			&mIDStr, &aIDFk, &memberRef, &mName, &mEmail, &mPhone, &coins, &mCreated, &mUpdated,
			&aIDStr, &teamNo, &username, &aEmail, &aPhone, &salt, &hash, &iterations, &active, &aCreated, &aUpdated,
		)
		if err != nil {
			return nil, oops.Code("MEMBER_SCAN_FAILED").
				With("operation", "scan candidate row").
				Wrap(err)
		}

		memberID, err := ulid.Parse(mIDStr)
		if err != nil {
			return nil, oops.Code("MEMBER_INVALID_ID").With("id", mIDStr).Wrap(err)
		}
		accountID, err := ulid.Parse(aIDStr)
		if err != nil {
			return nil, oops.Code("ACCOUNT_INVALID_ID").With("id", aIDStr).Wrap(err)
		}

		candidates = append(candidates, auth.Candidate{
			Member: &auth.Member{
				ID:        memberID,
				AccountID: accountID,
				MemberRef: memberRef,
				Name:      mName,
				Email:     mEmail,
				Phone:     mPhone,
				Coins:     coins,
				CreatedAt: mCreated,
				UpdatedAt: mUpdated,
			},
			Account: &auth.Account{
				ID:                 accountID,
				TeamNo:             teamNo,
				Username:           username,
				Email:              aEmail,
				Phone:              aPhone,
				PasswordSaltB64:    salt,
				PasswordHashB64:    hash,
				PasswordIterations: iterations,
				Active:             active,
				CreatedAt:          aCreated,
				UpdatedAt:          aUpdated,
			},
		})
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("MEMBER_ROWS_ERROR").
			With("operation", "iterate candidate rows").
			Wrap(err)
	}

	return candidates, nil
}

// scanMember scans a single members row.
// Callers are responsible for handling pgx.ErrNoRows.
func scanMember(row pgx.Row) (*auth.Member, error) {
	var (
		idStr     string
		accIDStr  string
		memberRef *string
		name      string
		email     *string
		phone     string
		coins     int
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&idStr, &accIDStr, &memberRef, &name, &email, &phone, &coins, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("MEMBER_SCAN_FAILED").
			With("operation", "scan member").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("MEMBER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	accountID, err := ulid.Parse(accIDStr)
	if err != nil {
		return nil, oops.Code("MEMBER_INVALID_ACCOUNT_ID").With("account_id", accIDStr).Wrap(err)
	}

	return &auth.Member{
		ID:        id,
		AccountID: accountID,
		MemberRef: memberRef,
		Name:      name,
		Email:     email,
		Phone:     phone,
		Coins:     coins,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.MemberRepository = (*MemberRepository)(nil)
