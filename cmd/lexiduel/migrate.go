// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lexiduel/lexiduel/internal/config"
	"github.com/lexiduel/lexiduel/internal/store"
)

// NewMigrateCmd creates the migrate subcommand with its actions.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, and inspect schema migrations on the PostgreSQL database.`,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, nil, func(m SchemaMigrator) error {
				if steps > 0 {
					if err := m.Steps(steps); err != nil {
						return err
					}
					cmd.Printf("Applied %d migration step(s)\n", steps)
					return nil
				}
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations applied")
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 0, "apply at most N migrations (0 = all)")

	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var steps int
	var all bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long: `Roll back migrations. By default rolls back a single migration;
--all drops every schema object, destroying all data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, nil, func(m SchemaMigrator) error {
				if all {
					if err := m.Down(); err != nil {
						return err
					}
					cmd.Println("All migrations rolled back")
					return nil
				}
				n := steps
				if n <= 0 {
					n = 1
				}
				if err := m.Steps(-n); err != nil {
					return err
				}
				cmd.Printf("Rolled back %d migration step(s)\n", n)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "roll back at most N migrations")
	cmd.Flags().BoolVar(&all, "all", false, "roll back everything (destructive)")

	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, nil, func(m SchemaMigrator) error {
				return printMigrationStatus(cmd, m)
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version without running migrations.
Use only to recover from a dirty state after fixing the database by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrator(cmd, nil, func(m SchemaMigrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Schema version forced to %d\n", version)
				return nil
			})
		},
	}
}

// withMigrator loads the configuration, opens a migrator, runs fn, and
// closes the migrator. If deps is nil, default implementations are used.
func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(SchemaMigrator) error) error {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = config.Load
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(databaseURL string) (SchemaMigrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}

	cfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (flag, config file, or DATABASE_URL)")
	}

	migrator, err := deps.MigratorFactory(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			cmd.PrintErrf("warning: failed to close migrator: %v\n", closeErr)
		}
	}()

	return fn(migrator)
}

// printMigrationStatus reports the current version plus the applied and
// pending migration lists.
func printMigrationStatus(cmd *cobra.Command, m SchemaMigrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	applied, err := m.AppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to list applied migrations: %w", err)
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to list pending migrations: %w", err)
	}

	cmd.Printf("Schema version: %d (dirty: %v)\n", version, dirty)

	cmd.Printf("Applied (%d):\n", len(applied))
	for _, v := range applied {
		name, err := store.MigrationName(v)
		if err != nil {
			return fmt.Errorf("failed to resolve migration name: %w", err)
		}
		cmd.Printf("  %s\n", name)
	}

	cmd.Printf("Pending (%d):\n", len(pending))
	for _, v := range pending {
		name, err := store.MigrationName(v)
		if err != nil {
			return fmt.Errorf("failed to resolve migration name: %w", err)
		}
		cmd.Printf("  %s\n", name)
	}

	return nil
}
