// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", newFlags(t))

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"listen_addr: \":9000\"\nlog_format: text\notp_gateway_url: https://gateway.example.com/otp\n",
	), 0o600))

	cfg, err := Load(path, newFlags(t))

	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "https://gateway.example.com/otp", cfg.OTPGatewayURL)
	// Untouched keys keep flag defaults.
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9000\"\n"), 0o600))

	flags := newFlags(t)
	require.NoError(t, flags.Parse([]string{"--listen-addr", ":7000"}))

	cfg, err := Load(path, flags)

	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddr)
}

func TestLoad_DatabaseURLEnvFallback(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-fallback:5432/lexiduel")

	cfg, err := Load("", newFlags(t))

	require.NoError(t, err)
	assert.Equal(t, "postgres://env-fallback:5432/lexiduel", cfg.DatabaseURL)
}

func TestLoad_FileBeatsEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env:5432/lexiduel")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_url: postgres://file:5432/lexiduel\n"), 0o600))

	cfg, err := Load(path, newFlags(t))

	require.NoError(t, err)
	assert.Equal(t, "postgres://file:5432/lexiduel", cfg.DatabaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), newFlags(t))

	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad log format", args: []string{"--log-format", "xml"}},
		{name: "bad log level", args: []string{"--log-level", "verbose"}},
		{name: "empty listen addr", args: []string{"--listen-addr", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := newFlags(t)
			require.NoError(t, flags.Parse(tt.args))

			_, err := Load("", flags)

			assert.Error(t, err)
		})
	}
}
