// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Lexiduel CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lexiduel",
		Short: "Lexiduel - word duel game backend",
		Long: `Lexiduel is the backend for a turn-based word-guessing game:
team accounts, member identities, OTP login, and the coin ledger
behind hints and clues.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
