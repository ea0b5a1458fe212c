// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

// Package ledger mutates member coin balances under row locks.
//
// Every mutation runs in its own transaction: lock the member row with
// SELECT ... FOR UPDATE, re-check the balance under the lock, write the new
// value, commit. Postgres row locks give a per-member total order on
// mutations without any in-process coordination.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ErrInsufficientFunds signals a debit larger than the locked balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrMemberNotFound signals a mutation against an unknown member.
var ErrMemberNotFound = errors.New("member not found")

// InsufficientFundsError carries the shortfall details for the caller.
type InsufficientFundsError struct {
	Required  int
	Available int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %d, available %d", e.Required, e.Available)
}

// Unwrap lets errors.Is match ErrInsufficientFunds.
func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// DB is the subset of pgxpool.Pool the ledger needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger performs coin credits and debits for members.
type Ledger struct {
	db DB
}

// New creates a Ledger backed by the given database.
func New(db DB) *Ledger {
	return &Ledger{db: db}
}

// Credit adds amount coins to a member and returns the new balance.
// The amount must be positive.
func (l *Ledger) Credit(ctx context.Context, memberID ulid.ULID, amount int) (int, error) {
	if amount <= 0 {
		return 0, oops.Code("LEDGER_INVALID_AMOUNT").
			With("amount", amount).
			Errorf("credit amount must be positive")
	}
	return l.mutate(ctx, memberID, amount)
}

// Debit removes amount coins from a member and returns the new balance.
// The amount must be positive. Returns an InsufficientFundsError when the
// locked balance cannot cover the debit.
func (l *Ledger) Debit(ctx context.Context, memberID ulid.ULID, amount int) (int, error) {
	if amount <= 0 {
		return 0, oops.Code("LEDGER_INVALID_AMOUNT").
			With("amount", amount).
			Errorf("debit amount must be positive")
	}
	return l.mutate(ctx, memberID, -amount)
}

// Balance returns the current coin balance without taking a lock.
func (l *Ledger) Balance(ctx context.Context, memberID ulid.ULID) (int, error) {
	var balance int
	err := l.db.QueryRow(ctx, `
		SELECT coins FROM members WHERE id = $1
	`, memberID.String()).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("LEDGER_MEMBER_NOT_FOUND").
			With("member_id", memberID.String()).
			Wrap(ErrMemberNotFound)
	}
	if err != nil {
		return 0, oops.Code("LEDGER_BALANCE_FAILED").
			With("operation", "read balance").
			With("member_id", memberID.String()).
			Wrap(err)
	}
	return balance, nil
}

// mutate applies a signed delta to the member's balance under a row lock.
func (l *Ledger) mutate(ctx context.Context, memberID ulid.ULID, delta int) (int, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, oops.Code("LEDGER_MUTATE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var balance int
	err = tx.QueryRow(ctx, `
		SELECT coins FROM members WHERE id = $1 FOR UPDATE
	`, memberID.String()).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("LEDGER_MEMBER_NOT_FOUND").
			With("member_id", memberID.String()).
			Wrap(ErrMemberNotFound)
	}
	if err != nil {
		return 0, oops.Code("LEDGER_MUTATE_FAILED").
			With("operation", "lock member row").
			With("member_id", memberID.String()).
			Wrap(err)
	}

	next := balance + delta
	if next < 0 {
		return 0, oops.Code("LEDGER_INSUFFICIENT_FUNDS").
			With("member_id", memberID.String()).
			With("required", -delta).
			With("available", balance).
			Wrap(&InsufficientFundsError{Required: -delta, Available: balance})
	}

	_, err = tx.Exec(ctx, `
		UPDATE members SET coins = $2, updated_at = now() WHERE id = $1
	`, memberID.String(), next)
	if err != nil {
		return 0, oops.Code("LEDGER_MUTATE_FAILED").
			With("operation", "write balance").
			With("member_id", memberID.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, oops.Code("LEDGER_MUTATE_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return next, nil
}
