// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

//go:build integration

package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiduel/lexiduel/internal/store"
)

// databaseURL returns the connection string for integration tests, skipping
// the test when DATABASE_URL is not set.
func databaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	return url
}

func TestConnect_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := store.Connect(ctx, databaseURL(t))
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, pool.Ping(ctx))
}

func TestMigrator_Integration_UpDownCycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	url := databaseURL(t)

	migrator, err := store.NewMigrator(url)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, migrator.Close())
	}()

	require.NoError(t, migrator.Up())

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.False(t, dirty, "schema should not be dirty after Up")
	assert.Positive(t, version)

	pending, err := migrator.PendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending, "no migrations should be pending after Up")

	// Exercise the schema with a round trip through the core tables.
	pool, err := store.Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	accountID := ulid.Make().String()
	memberID := ulid.Make().String()

	_, err = pool.Exec(ctx,
		`INSERT INTO accounts (id, team_no, username, password_salt, password_hash, password_iterations)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		accountID, 90001, "store_itest_"+accountID[20:], "73616c74", "pbkdf2:itest", 100000)
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO members (id, account_id, member_ref, name, phone, coins)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		memberID, accountID, "itest-"+memberID[20:], "Integration Tester", "+15550001111", 100)
	require.NoError(t, err)

	var coins int64
	err = pool.QueryRow(ctx, `SELECT coins FROM members WHERE id = $1`, memberID).Scan(&coins)
	require.NoError(t, err)
	assert.Equal(t, int64(100), coins)

	_, err = pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	require.NoError(t, err)

	require.NoError(t, migrator.Down())

	applied, err := migrator.AppliedMigrations()
	require.NoError(t, err)
	assert.Empty(t, applied, "no migrations should remain applied after Down")

	require.NoError(t, migrator.Up())
}
